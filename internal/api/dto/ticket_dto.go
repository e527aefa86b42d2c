package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Category    string                `json:"category" validate:"omitempty,max=100"`
	Title       string                `json:"title" validate:"omitempty,max=200"`
	Description string                `json:"description" validate:"omitempty,max=10000"`
	Priority    domain.TicketPriority `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// UpdateTicketRequest is the admin patch. Absent fields are left untouched.
type UpdateTicketRequest struct {
	Title       *string                `json:"title" validate:"omitempty,max=200"`
	Description *string                `json:"description" validate:"omitempty,max=10000"`
	Category    *string                `json:"category" validate:"omitempty,max=100"`
	Priority    *domain.TicketPriority `json:"priority"`
	Status      *domain.TicketStatus   `json:"status"`
}

// RatingRequest payload.
type RatingRequest struct {
	Rating   int     `json:"rating"`
	Feedback *string `json:"feedback" validate:"omitempty,max=2000"`
}

// SendMessageRequest payload.
type SendMessageRequest struct {
	Text string `json:"text" validate:"omitempty,max=10000"`
}

// TicketResponse mirrors a ticket row.
type TicketResponse struct {
	ID          string                `json:"id"`
	UserID      string                `json:"user_id"`
	Category    string                `json:"category"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Status      domain.TicketStatus   `json:"status"`
	Priority    domain.TicketPriority `json:"priority"`
	Rating      *int                  `json:"rating"`
	Feedback    *string               `json:"feedback"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// HistoryResponse is one audit entry.
type HistoryResponse struct {
	ID         string                  `json:"id"`
	ChangedBy  string                  `json:"changed_by"`
	ChangeType domain.TicketChangeType `json:"change_type"`
	OldValue   map[string]any          `json:"old_value"`
	NewValue   map[string]any          `json:"new_value"`
	CreatedAt  time.Time               `json:"created_at"`
}

// MessageResponse represents a thread message.
type MessageResponse struct {
	ID          string               `json:"id"`
	TicketID    string               `json:"ticket_id"`
	SenderID    string               `json:"sender_id"`
	SenderName  string               `json:"sender_name"`
	SenderEmail string               `json:"sender_email"`
	Text        string               `json:"text"`
	Attachments []AttachmentResponse `json:"attachments"`
	CreatedAt   time.Time            `json:"created_at"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID         string    `json:"id"`
	TicketID   *string   `json:"ticket_id"`
	MessageID  *string   `json:"message_id"`
	FileURL    string    `json:"fileUrl"`
	FileName   string    `json:"fileName"`
	FileType   string    `json:"fileType"`
	FileSize   int64     `json:"fileSize"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// NewTicketResponse maps a ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:          t.ID,
		UserID:      t.UserID,
		Category:    t.Category,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		Rating:      t.Rating,
		Feedback:    t.Feedback,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// NewTicketList maps a slice, never returning nil.
func NewTicketList(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i]))
	}
	return out
}

// NewHistoryList maps audit entries.
func NewHistoryList(entries []domain.TicketHistory) []HistoryResponse {
	out := make([]HistoryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryResponse{
			ID:         e.ID,
			ChangedBy:  e.ChangedBy,
			ChangeType: e.ChangeType,
			OldValue:   e.OldValue,
			NewValue:   e.NewValue,
			CreatedAt:  e.CreatedAt,
		})
	}
	return out
}

// NewMessageResponse maps a message with its attachments.
func NewMessageResponse(m *domain.Message) MessageResponse {
	atts := make([]AttachmentResponse, 0, len(m.Attachments))
	for i := range m.Attachments {
		atts = append(atts, NewAttachmentResponse(&m.Attachments[i]))
	}
	return MessageResponse{
		ID:          m.ID,
		TicketID:    m.TicketID,
		SenderID:    m.SenderID,
		SenderName:  m.SenderName,
		SenderEmail: m.SenderEmail,
		Text:        m.Text,
		Attachments: atts,
		CreatedAt:   m.CreatedAt,
	}
}

// NewAttachmentResponse maps attachment metadata.
func NewAttachmentResponse(a *domain.Attachment) AttachmentResponse {
	return AttachmentResponse{
		ID:         a.ID,
		TicketID:   a.TicketID,
		MessageID:  a.MessageID,
		FileURL:    a.FileURL,
		FileName:   a.FileName,
		FileType:   a.FileType,
		FileSize:   a.FileSize,
		UploadedAt: a.UploadedAt,
	}
}
