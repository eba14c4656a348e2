package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/maheshrc27/autopost/internal/queue"
	"github.com/maheshrc27/autopost/internal/service"
)

type ProcessorHandler struct {
	s           service.ProcessorService
	AsynqClient *asynq.Client
}

func NewProcessorHandler(service service.ProcessorService, asynqClient *asynq.Client) *ProcessorHandler {
	return &ProcessorHandler{s: service, AsynqClient: asynqClient}
}

// TriggerRun queues a processing pass; the worker picks it up. The pass
// itself coordinates with any concurrently running instance.
func (h *ProcessorHandler) TriggerRun(c *fiber.Ctx) error {
	if err := queue.EnqueueProcessDue(h.AsynqClient, 0); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Error scheduling processing run",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "Processing run scheduled",
	})
}

func (h *ProcessorHandler) ProcessItem(c *fiber.Ctx) error {
	itemID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid item id",
		})
	}

	if err := h.s.ProcessSingleItem(c.Context(), int64(itemID)); err != nil {
		return jsonError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *ProcessorHandler) GetStatus(c *fiber.Ctx) error {
	status, err := h.s.GetStatus(c.Context())
	if err != nil {
		return jsonError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(status)
}
