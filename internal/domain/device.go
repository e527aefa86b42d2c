package domain

import "time"

// Device is a push-notification endpoint registered by a user.
type Device struct {
	ID        string
	UserID    string
	DeviceID  string
	FCMToken  *string
	CreatedAt time.Time
	UpdatedAt time.Time
}
