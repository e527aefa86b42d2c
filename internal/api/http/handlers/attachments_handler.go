package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/service"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// AttachmentsHandler handles multipart uploads and downloads.
type AttachmentsHandler struct {
	attachments *service.AttachmentService
}

// NewAttachmentsHandler constructs handler.
func NewAttachmentsHandler(attachments *service.AttachmentService) *AttachmentsHandler {
	return &AttachmentsHandler{attachments: attachments}
}

// Upload POST /api/attachments/upload (multipart field "file").
func (h *AttachmentsHandler) Upload(c *fiber.Ctx) error {
	identity, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("No file uploaded", nil)
	}
	if limit := h.attachments.MaxFileSize(); limit > 0 && fh.Size > limit {
		return apperrors.NewValidationError("File too large", map[string]any{"max_bytes": limit})
	}
	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	ticketID := c.FormValue("ticketId")
	messageID := c.FormValue("messageId")
	attachment, err := h.attachments.Upload(c.UserContext(), identity, service.UploadInput{
		TicketID:    &ticketID,
		MessageID:   &messageID,
		FileName:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Size:        fh.Size,
		Body:        f,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"success":    true,
		"message":    "File uploaded successfully",
		"attachment": dto.NewAttachmentResponse(attachment),
	})
}

// Download GET /api/attachments/:id streams the blob.
func (h *AttachmentsHandler) Download(c *fiber.Ctx) error {
	identity, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	attachment, obj, err := h.attachments.Download(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, obj.ContentType)
	c.Set(fiber.HeaderContentDisposition, "attachment; filename="+strconv.Quote(attachment.FileName))
	size := -1
	if obj.Size > 0 {
		size = int(obj.Size)
	}
	return c.SendStream(obj.Body, size)
}

// Delete DELETE /api/attachments/:id.
func (h *AttachmentsHandler) Delete(c *fiber.Ctx) error {
	identity, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	if err := h.attachments.Delete(c.UserContext(), identity, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "Attachment deleted"})
}
