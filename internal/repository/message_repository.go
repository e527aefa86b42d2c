package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

// MessageRepository manages ticket thread messages. Messages are append-only.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Message, error)
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository builds repository.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	const query = `
        WITH inserted AS (
            INSERT INTO messages (ticket_id, sender_id, text)
            VALUES ($1,$2,$3)
            RETURNING id, sender_id, created_at
        )
        SELECT inserted.id, inserted.created_at, u.name, u.email
        FROM inserted JOIN users u ON u.id = inserted.sender_id`
	return r.pool.QueryRow(ctx, query,
		msg.TicketID,
		msg.SenderID,
		msg.Text,
	).Scan(&msg.ID, &msg.CreatedAt, &msg.SenderName, &msg.SenderEmail)
}

func (r *messageRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	const query = `
        SELECT m.id, m.ticket_id, m.sender_id, u.name, u.email, m.text, m.created_at
        FROM messages m
        JOIN users u ON u.id = m.sender_id
        WHERE m.id=$1`
	var msg domain.Message
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&msg.ID,
		&msg.TicketID,
		&msg.SenderID,
		&msg.SenderName,
		&msg.SenderEmail,
		&msg.Text,
		&msg.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListByTicket returns the thread oldest first with sender details. Attachments are not loaded.
func (r *messageRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Message, error) {
	const query = `
        SELECT m.id, m.ticket_id, m.sender_id, u.name, u.email, m.text, m.created_at
        FROM messages m
        JOIN users u ON u.id = m.sender_id
        WHERE m.ticket_id=$1
        ORDER BY m.created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.TicketID,
			&msg.SenderID,
			&msg.SenderName,
			&msg.SenderEmail,
			&msg.Text,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}
