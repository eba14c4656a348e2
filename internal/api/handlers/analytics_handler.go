package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/autopost/internal/service"
)

type AnalyticsHandler struct {
	s service.AnalyticsService
}

func NewAnalyticsHandler(service service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{s: service}
}

func (h *AnalyticsHandler) GetPostingPatterns(c *fiber.Ctx) error {
	userID := GetUserID(c)
	days := c.QueryInt("days", 30)

	patterns, err := h.s.GetPostingPatterns(c.Context(), userID, days)
	if err != nil {
		return jsonError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(patterns)
}

func (h *AnalyticsHandler) GetOptimalTimes(c *fiber.Ctx) error {
	userID := GetUserID(c)
	platform := c.Query("platform")

	times, err := h.s.CalculateOptimalTimes(c.Context(), userID, platform)
	if err != nil {
		return jsonError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(times)
}

func (h *AnalyticsHandler) GetContentPerformance(c *fiber.Ctx) error {
	userID := GetUserID(c)
	days := c.QueryInt("days", 30)

	performance, err := h.s.GetContentPerformance(c.Context(), userID, days)
	if err != nil {
		return jsonError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(performance)
}
