package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// MessageService manages ticket threads.
type MessageService struct {
	tickets     *TicketService
	messages    repository.MessageRepository
	attachments repository.AttachmentRepository
	dispatcher  events.Dispatcher
}

// MessageDependencies wires MessageService.
type MessageDependencies struct {
	Tickets        *TicketService
	MessageRepo    repository.MessageRepository
	AttachmentRepo repository.AttachmentRepository
	Dispatcher     events.Dispatcher
}

// NewMessageService builds the service.
func NewMessageService(deps MessageDependencies) *MessageService {
	return &MessageService{
		tickets:     deps.Tickets,
		messages:    deps.MessageRepo,
		attachments: deps.AttachmentRepo,
		dispatcher:  deps.Dispatcher,
	}
}

// List returns the thread oldest first, each message with its attachments.
func (s *MessageService) List(ctx context.Context, identity auth.Identity, ticketID string) ([]domain.Message, error) {
	if _, err := s.tickets.authorizeTicket(ctx, identity, ticketID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	attachments, err := s.attachments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}

	byMessage := make(map[string][]domain.Attachment)
	for _, a := range attachments {
		if a.MessageID != nil {
			byMessage[*a.MessageID] = append(byMessage[*a.MessageID], a)
		}
	}
	result := make([]domain.Message, 0, len(msgs))
	for _, m := range msgs {
		m.Attachments = byMessage[m.ID]
		if m.Attachments == nil {
			m.Attachments = []domain.Attachment{}
		}
		result = append(result, m)
	}
	return result, nil
}

// Send appends a message to the thread. Messages are never edited afterwards.
func (s *MessageService) Send(ctx context.Context, identity auth.Identity, ticketID, text string) (*domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewValidationError("Message text is required", nil)
	}
	ticket, err := s.tickets.authorizeTicket(ctx, identity, ticketID)
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		TicketID: ticket.ID,
		SenderID: identity.UserID,
		Text:     text,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	msg.Attachments = []domain.Attachment{}

	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.NewEvent(events.EventTicketMessageAdded, ticket, actorOf(identity), events.TicketMessageAddedPayload{
			MessageID:   msg.ID,
			SenderID:    msg.SenderID,
			BodyPreview: events.Preview(msg.Text, 120),
		}))
	}
	return msg, nil
}
