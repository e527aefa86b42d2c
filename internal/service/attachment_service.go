package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/storage"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// AttachmentURL is the guarded download route for an attachment.
func AttachmentURL(id string) string {
	return "/api/attachments/" + id
}

// AttachmentService stores files against tickets or messages.
type AttachmentService struct {
	tickets      *TicketService
	messages     repository.MessageRepository
	attachments  repository.AttachmentRepository
	store        storage.Store
	logger       *zap.Logger
	maxFileSize  int64
	allowedTypes map[string]struct{}
}

// AttachmentDependencies wires AttachmentService.
type AttachmentDependencies struct {
	Tickets        *TicketService
	MessageRepo    repository.MessageRepository
	AttachmentRepo repository.AttachmentRepository
	Store          storage.Store
	Logger         *zap.Logger
}

// NewAttachmentService builds the service.
func NewAttachmentService(cfg config.StorageConfig, deps AttachmentDependencies) *AttachmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedTypes))
	for _, t := range cfg.AllowedTypes {
		allowed[strings.ToLower(t)] = struct{}{}
	}
	return &AttachmentService{
		tickets:      deps.Tickets,
		messages:     deps.MessageRepo,
		attachments:  deps.AttachmentRepo,
		store:        deps.Store,
		logger:       logger,
		maxFileSize:  cfg.MaxFileSize,
		allowedTypes: allowed,
	}
}

// UploadInput describes one uploaded file.
type UploadInput struct {
	TicketID    *string
	MessageID   *string
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// MaxFileSize is the configured upload limit in bytes.
func (s *AttachmentService) MaxFileSize() int64 {
	return s.maxFileSize
}

// Upload checks type, size and ticket access, then writes the blob and its metadata row.
func (s *AttachmentService) Upload(ctx context.Context, identity auth.Identity, in UploadInput) (*domain.Attachment, error) {
	in.TicketID = nonEmpty(in.TicketID)
	in.MessageID = nonEmpty(in.MessageID)
	if in.TicketID == nil && in.MessageID == nil {
		return nil, apperrors.NewValidationError("ticketId or messageId is required", nil)
	}
	if in.Body == nil {
		return nil, apperrors.NewValidationError("No file uploaded", nil)
	}
	contentType := strings.ToLower(strings.TrimSpace(strings.Split(in.ContentType, ";")[0]))
	if _, ok := s.allowedTypes[contentType]; !ok {
		return nil, apperrors.NewValidationError("Invalid file type", map[string]any{"file_type": in.ContentType})
	}
	if s.maxFileSize > 0 && in.Size > s.maxFileSize {
		return nil, apperrors.NewValidationError("File too large", map[string]any{"max_bytes": s.maxFileSize})
	}

	ticketID, err := s.owningTicket(ctx, in.TicketID, in.MessageID)
	if err != nil {
		return nil, err
	}
	if _, err := s.tickets.authorizeTicket(ctx, identity, ticketID); err != nil {
		return nil, err
	}

	key := storage.NewKey(in.FileName)
	if err := s.store.Put(ctx, key, contentType, in.Size, in.Body); err != nil {
		return nil, fmt.Errorf("store attachment: %w", err)
	}

	id := uuid.NewString()
	attachment := &domain.Attachment{
		ID:         id,
		TicketID:   in.TicketID,
		MessageID:  in.MessageID,
		StorageKey: key,
		FileURL:    AttachmentURL(id),
		FileName:   in.FileName,
		FileType:   contentType,
		FileSize:   in.Size,
		UploadedBy: identity.UserID,
	}
	if err := s.attachments.Create(ctx, attachment); err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			s.logger.Warn("orphaned attachment blob", zap.String("key", key), zap.Error(delErr))
		}
		return nil, fmt.Errorf("create attachment: %w", err)
	}
	return attachment, nil
}

// Download opens the blob for an attachment on a ticket the caller can access.
func (s *AttachmentService) Download(ctx context.Context, identity auth.Identity, id string) (*domain.Attachment, *storage.Object, error) {
	attachment, err := s.authorizeAttachment(ctx, identity, id)
	if err != nil {
		return nil, nil, err
	}
	obj, err := s.store.Open(ctx, attachment.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, apperrors.NewNotFound("File", nil)
		}
		return nil, nil, fmt.Errorf("open attachment: %w", err)
	}
	if obj.ContentType == "" {
		obj.ContentType = attachment.FileType
	}
	return attachment, obj, nil
}

// Delete removes the blob then the metadata row.
func (s *AttachmentService) Delete(ctx context.Context, identity auth.Identity, id string) error {
	attachment, err := s.authorizeAttachment(ctx, identity, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, attachment.StorageKey); err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	if err := s.attachments.Delete(ctx, attachment.ID); err != nil {
		if apperrors.IsNotFound(err) {
			return apperrors.NewNotFound("Attachment", nil)
		}
		return fmt.Errorf("delete attachment: %w", err)
	}
	return nil
}

func (s *AttachmentService) authorizeAttachment(ctx context.Context, identity auth.Identity, id string) (*domain.Attachment, error) {
	if !validID(id) {
		return nil, apperrors.NewNotFound("Attachment", nil)
	}
	attachment, err := s.attachments.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("Attachment", nil)
		}
		return nil, fmt.Errorf("load attachment: %w", err)
	}
	ticketID, err := s.owningTicket(ctx, attachment.TicketID, attachment.MessageID)
	if err != nil {
		return nil, err
	}
	if _, err := s.tickets.authorizeTicket(ctx, identity, ticketID); err != nil {
		return nil, err
	}
	return attachment, nil
}

// owningTicket resolves the ticket an attachment hangs off. When both ids are given
// the message must belong to the ticket.
func (s *AttachmentService) owningTicket(ctx context.Context, ticketID, messageID *string) (string, error) {
	if messageID == nil {
		if !validID(*ticketID) {
			return "", apperrors.NewNotFound("Ticket", nil)
		}
		return *ticketID, nil
	}
	if !validID(*messageID) {
		return "", apperrors.NewNotFound("Message", nil)
	}
	msg, err := s.messages.GetByID(ctx, *messageID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return "", apperrors.NewNotFound("Message", nil)
		}
		return "", fmt.Errorf("load message: %w", err)
	}
	if ticketID != nil && *ticketID != msg.TicketID {
		return "", apperrors.NewValidationError("Message does not belong to ticket", nil)
	}
	return msg.TicketID, nil
}

func nonEmpty(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
