package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

// DeviceRepository stores push endpoints.
type DeviceRepository interface {
	Upsert(ctx context.Context, device *domain.Device) error
	ListByUser(ctx context.Context, userID string) ([]domain.Device, error)
}

type deviceRepository struct {
	pool *pgxpool.Pool
}

// NewDeviceRepository builds repository.
func NewDeviceRepository(pool *pgxpool.Pool) DeviceRepository {
	return &deviceRepository{pool: pool}
}

// Upsert registers the device or refreshes its token when (user_id, device_id) exists.
func (r *deviceRepository) Upsert(ctx context.Context, device *domain.Device) error {
	const query = `
        INSERT INTO devices (user_id, device_id, fcm_token)
        VALUES ($1,$2,$3)
        ON CONFLICT (user_id, device_id)
        DO UPDATE SET fcm_token = EXCLUDED.fcm_token, updated_at = NOW()
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		device.UserID,
		device.DeviceID,
		device.FCMToken,
	).Scan(&device.ID, &device.CreatedAt, &device.UpdatedAt)
}

func (r *deviceRepository) ListByUser(ctx context.Context, userID string) ([]domain.Device, error) {
	const query = `
        SELECT id, user_id, device_id, fcm_token, created_at, updated_at
        FROM devices WHERE user_id=$1 ORDER BY updated_at DESC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Device
	for rows.Next() {
		var device domain.Device
		if err := rows.Scan(
			&device.ID,
			&device.UserID,
			&device.DeviceID,
			&device.FCMToken,
			&device.CreatedAt,
			&device.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, device)
	}
	return result, rows.Err()
}
