package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/autopost/internal/service"
)

type AssetsHandler struct {
	s service.AssetService
}

func NewAssetsHandler(service service.AssetService) *AssetsHandler {
	return &AssetsHandler{s: service}
}

func (h *AssetsHandler) UploadFiles(c *fiber.Ctx) error {
	userID := GetUserID(c)

	form, err := c.MultipartForm()
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse form",
		})
	}

	folderID := c.QueryInt("folder_id", 0)
	files := form.File["files"]
	if len(files) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No files selected",
		})
	}

	fileIDs, err := h.s.UploadFiles(c.Context(), userID, int64(folderID), files)
	if err != nil {
		return jsonError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ids": fileIDs,
	})
}

func (h *AssetsHandler) BlacklistFile(c *fiber.Ctx) error {
	userID := GetUserID(c)
	fileID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid file id",
		})
	}
	blacklisted := c.QueryBool("blacklisted", true)

	if err := h.s.BlacklistFile(c.Context(), userID, int64(fileID), blacklisted); err != nil {
		return jsonError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *AssetsHandler) RemoveFile(c *fiber.Ctx) error {
	userID := GetUserID(c)
	fileID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid file id",
		})
	}

	if err := h.s.RemoveFile(c.Context(), userID, int64(fileID)); err != nil {
		return jsonError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}
