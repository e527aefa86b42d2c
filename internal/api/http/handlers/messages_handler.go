package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/service"
)

// MessagesHandler serves ticket threads.
type MessagesHandler struct {
	messages *service.MessageService
}

// NewMessagesHandler constructs handler.
func NewMessagesHandler(messages *service.MessageService) *MessagesHandler {
	return &MessagesHandler{messages: messages}
}

// List GET /api/messages/ticket/:ticketId.
func (h *MessagesHandler) List(c *fiber.Ctx) error {
	identity, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	msgs, err := h.messages.List(c.UserContext(), identity, c.Params("ticketId"))
	if err != nil {
		return err
	}
	out := make([]dto.MessageResponse, 0, len(msgs))
	for i := range msgs {
		out = append(out, dto.NewMessageResponse(&msgs[i]))
	}
	return c.JSON(fiber.Map{"success": true, "messages": out})
}

// Send POST /api/messages/:ticketId.
func (h *MessagesHandler) Send(c *fiber.Ctx) error {
	identity, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	var req dto.SendMessageRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	msg, err := h.messages.Send(c.UserContext(), identity, c.Params("ticketId"), req.Text)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"success":   true,
		"message":   "Message sent",
		"messageId": msg.ID,
		"data":      dto.NewMessageResponse(msg),
	})
}
