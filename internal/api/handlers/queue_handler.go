package handlers

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/maheshrc27/autopost/internal/queue"
	"github.com/maheshrc27/autopost/internal/service"
	"github.com/maheshrc27/autopost/internal/transfer"
)

type QueueHandler struct {
	s           service.QueueService
	AsynqClient *asynq.Client
}

func NewQueueHandler(service service.QueueService, asynqClient *asynq.Client) *QueueHandler {
	return &QueueHandler{s: service, AsynqClient: asynqClient}
}

func (h *QueueHandler) AddToQueue(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var qc transfer.QueueItemCreation
	if err := c.BodyParser(&qc); err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	itemID, err := h.s.AddToQueue(c.Context(), userID, &qc)
	if err != nil {
		return jsonError(c, err)
	}

	// Items already due get picked up right away instead of waiting for the
	// next periodic pass. A premature task is harmless, the claim protects it.
	if err := queue.EnqueueProcessItem(h.AsynqClient, queue.ProcessItemPayload{ItemID: itemID}); err != nil {
		slog.Info(err.Error())
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"id": itemID,
	})
}

func (h *QueueHandler) ListQueueItems(c *fiber.Ctx) error {
	userID := GetUserID(c)

	filter, err := parseQueueFilter(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	items, err := h.s.GetQueueItems(c.Context(), userID, filter)
	if err != nil {
		return jsonError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(items)
}

func (h *QueueHandler) BulkUpdateStatus(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var update transfer.BulkStatusUpdate
	if err := c.BodyParser(&update); err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	if err := h.s.BulkUpdateStatus(c.Context(), userID, &update); err != nil {
		return jsonError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *QueueHandler) RetryFailedItem(c *fiber.Ctx) error {
	userID := GetUserID(c)
	itemID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid item id",
		})
	}

	if err := h.s.RetryFailedItem(c.Context(), userID, int64(itemID)); err != nil {
		return jsonError(c, err)
	}

	if err := queue.EnqueueProcessItem(h.AsynqClient, queue.ProcessItemPayload{ItemID: int64(itemID)}); err != nil {
		slog.Info(err.Error())
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *QueueHandler) CancelItem(c *fiber.Ctx) error {
	userID := GetUserID(c)
	itemID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid item id",
		})
	}

	if err := h.s.CancelItem(c.Context(), userID, int64(itemID)); err != nil {
		return jsonError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *QueueHandler) GetQueueStatus(c *fiber.Ctx) error {
	userID := GetUserID(c)

	status, err := h.s.GetQueueStatus(c.Context(), userID)
	if err != nil {
		return jsonError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(status)
}

func parseQueueFilter(c *fiber.Ctx) (*transfer.QueueItemFilter, error) {
	filter := &transfer.QueueItemFilter{}

	if statuses := c.Query("status"); statuses != "" {
		filter.Statuses = strings.Split(statuses, ",")
	}

	if from := c.Query("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return nil, err
		}
		filter.From = &t
	}

	if to := c.Query("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return nil, err
		}
		filter.To = &t
	}

	if accounts := c.Query("account_ids"); accounts != "" {
		for _, part := range strings.Split(accounts, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				return nil, err
			}
			filter.AccountIDs = append(filter.AccountIDs, id)
		}
	}

	return filter, nil
}
