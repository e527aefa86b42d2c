package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// Required fields are checked by the services so their messages stay stable;
// tags here only reject malformed values.

// RegisterRequest payload for new customers.
type RegisterRequest struct {
	Name     string `json:"name" validate:"omitempty,min=2,max=100"`
	Phone    string `json:"phone" validate:"omitempty,len=10,numeric"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"omitempty,min=6,max=72"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest exchanges a refresh token for an access token.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// UpdateProfileRequest holds optional profile fields.
type UpdateProfileRequest struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
}

// ChangePasswordRequest payload.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword" validate:"omitempty,max=72"`
}

// RegisterDeviceRequest payload.
type RegisterDeviceRequest struct {
	DeviceID string  `json:"deviceId" validate:"omitempty,max=255"`
	FCMToken *string `json:"fcmToken"`
}

// UserSummary is the identity block returned on login.
type UserSummary struct {
	ID    string      `json:"id"`
	Email string      `json:"email"`
	Name  string      `json:"name"`
	Role  domain.Role `json:"role"`
}

// UserResponse is the full profile.
type UserResponse struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Phone     string      `json:"phone"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// LoginResponse is returned on successful login.
type LoginResponse struct {
	Success      bool        `json:"success"`
	Message      string      `json:"message"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	ExpiresAt    time.Time   `json:"expiresAt"`
	User         UserSummary `json:"user"`
}

// RefreshResponse carries a new access token only.
type RefreshResponse struct {
	Success     bool      `json:"success"`
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// DeviceResponse is a registered push endpoint.
type DeviceResponse struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"device_id"`
	FCMToken  *string   `json:"fcm_token"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUserSummary maps a user onto the login identity block.
func NewUserSummary(u *domain.User) UserSummary {
	return UserSummary{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}

// NewUserResponse maps a user onto the profile response.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// NewDeviceResponse maps a device.
func NewDeviceResponse(d *domain.Device) DeviceResponse {
	return DeviceResponse{ID: d.ID, DeviceID: d.DeviceID, FCMToken: d.FCMToken, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}
}
