package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// DeviceService registers push endpoints for the caller.
type DeviceService struct {
	devices repository.DeviceRepository
}

// NewDeviceService builds the service.
func NewDeviceService(devices repository.DeviceRepository) *DeviceService {
	return &DeviceService{devices: devices}
}

// Register upserts on (user, deviceId); a repeat call replaces the FCM token.
func (s *DeviceService) Register(ctx context.Context, identity auth.Identity, deviceID string, fcmToken *string) (*domain.Device, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, apperrors.NewValidationError("deviceId is required", nil)
	}
	device := &domain.Device{
		UserID:   identity.UserID,
		DeviceID: deviceID,
		FCMToken: nonEmpty(fcmToken),
	}
	if err := s.devices.Upsert(ctx, device); err != nil {
		return nil, fmt.Errorf("register device: %w", err)
	}
	return device, nil
}
