package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

// AttachmentRepository persists attachment metadata. Blobs live in storage.Store.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *domain.Attachment) error
	GetByID(ctx context.Context, id string) (*domain.Attachment, error)
	Delete(ctx context.Context, id string) error
	ListByMessage(ctx context.Context, messageID string) ([]domain.Attachment, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Attachment, error)
}

type attachmentRepository struct {
	pool *pgxpool.Pool
}

// NewAttachmentRepository constructs repository.
func NewAttachmentRepository(pool *pgxpool.Pool) AttachmentRepository {
	return &attachmentRepository{pool: pool}
}

const attachmentColumns = `id, ticket_id, message_id, storage_key, file_url, file_name, file_type, file_size, uploaded_by, uploaded_at`

func (r *attachmentRepository) Create(ctx context.Context, attachment *domain.Attachment) error {
	const query = `
        INSERT INTO attachments (id, ticket_id, message_id, storage_key, file_url, file_name, file_type, file_size, uploaded_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, uploaded_at`
	return r.pool.QueryRow(ctx, query,
		attachment.ID,
		attachment.TicketID,
		attachment.MessageID,
		attachment.StorageKey,
		attachment.FileURL,
		attachment.FileName,
		attachment.FileType,
		attachment.FileSize,
		attachment.UploadedBy,
	).Scan(&attachment.ID, &attachment.UploadedAt)
}

func (r *attachmentRepository) GetByID(ctx context.Context, id string) (*domain.Attachment, error) {
	const query = `SELECT ` + attachmentColumns + ` FROM attachments WHERE id=$1`
	return scanAttachment(r.pool.QueryRow(ctx, query, id))
}

func (r *attachmentRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM attachments WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *attachmentRepository) ListByMessage(ctx context.Context, messageID string) ([]domain.Attachment, error) {
	const query = `SELECT ` + attachmentColumns + ` FROM attachments WHERE message_id=$1 ORDER BY uploaded_at ASC`
	return r.list(ctx, query, messageID)
}

// ListByTicket returns attachments on the ticket itself and on any of its messages.
func (r *attachmentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Attachment, error) {
	const query = `
        SELECT ` + attachmentColumns + ` FROM attachments
        WHERE ticket_id=$1 OR message_id IN (SELECT id FROM messages WHERE ticket_id=$1)
        ORDER BY uploaded_at ASC`
	return r.list(ctx, query, ticketID)
}

func (r *attachmentRepository) list(ctx context.Context, query string, arg any) ([]domain.Attachment, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Attachment
	for rows.Next() {
		attachment, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *attachment)
	}
	return result, rows.Err()
}

func scanAttachment(row pgx.Row) (*domain.Attachment, error) {
	var attachment domain.Attachment
	if err := row.Scan(
		&attachment.ID,
		&attachment.TicketID,
		&attachment.MessageID,
		&attachment.StorageKey,
		&attachment.FileURL,
		&attachment.FileName,
		&attachment.FileType,
		&attachment.FileSize,
		&attachment.UploadedBy,
		&attachment.UploadedAt,
	); err != nil {
		return nil, err
	}
	return &attachment, nil
}
