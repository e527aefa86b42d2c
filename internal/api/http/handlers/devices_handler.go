package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/service"
)

// DevicesHandler registers push endpoints.
type DevicesHandler struct {
	devices *service.DeviceService
}

// NewDevicesHandler constructs handler.
func NewDevicesHandler(devices *service.DeviceService) *DevicesHandler {
	return &DevicesHandler{devices: devices}
}

// Register POST /api/devices/register.
func (h *DevicesHandler) Register(c *fiber.Ctx) error {
	identity, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	var req dto.RegisterDeviceRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	device, err := h.devices.Register(c.UserContext(), identity, req.DeviceID, req.FCMToken)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Device registered",
		"device":  dto.NewDeviceResponse(device),
	})
}
