package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/walkweek/walkweek/internal/domain"
)

// SettingsStore reads and writes runtime settings.
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

type SettingsHandler struct {
	settings SettingsStore
}

func NewSettingsHandler(settings SettingsStore) (*SettingsHandler, error) {
	if settings == nil {
		return nil, fmt.Errorf("settings store is required")
	}
	return &SettingsHandler{settings: settings}, nil
}

func RegisterSettingsRoutes(router fiber.Router, settings SettingsStore) error {
	h, err := NewSettingsHandler(settings)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/settings/:key", h.GetSetting)
	v1.Put("/settings/:key", h.PutSetting)

	return nil
}

type putSettingRequest struct {
	Value string `json:"value"`
}

type settingResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (h *SettingsHandler) GetSetting(c *fiber.Ctx) error {
	key := strings.TrimSpace(c.Params("key"))
	value, err := h.settings.Get(c.Context(), key)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(settingResponse{Key: key, Value: value})
}

func (h *SettingsHandler) PutSetting(c *fiber.Ctx) error {
	key := strings.TrimSpace(c.Params("key"))
	if key == "" {
		return toHTTPError(fmt.Errorf("%w: key is required", domain.ErrValidation))
	}

	var req putSettingRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Value) == "" {
		return toHTTPError(fmt.Errorf("%w: value is required", domain.ErrValidation))
	}

	if err := h.settings.Set(c.Context(), key, req.Value); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(settingResponse{Key: key, Value: req.Value})
}
