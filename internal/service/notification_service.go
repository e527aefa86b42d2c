package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/repository"
)

// PushMessage is one notification addressed to one device.
type PushMessage struct {
	UserID    string
	DeviceID  string
	FCMToken  string
	TicketID  string
	EventType events.EventType
	Title     string
	Body      string
}

// PushSender delivers push messages. The notification worker implements it.
type PushSender interface {
	Send(ctx context.Context, msg PushMessage) error
}

// NotificationService turns ticket events into pushes for the ticket owner.
type NotificationService struct {
	dispatcher events.Dispatcher
	devices    repository.DeviceRepository
	sender     PushSender
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NotificationDependencies wires NotificationService.
type NotificationDependencies struct {
	Dispatcher events.Dispatcher
	DeviceRepo repository.DeviceRepository
	Sender     PushSender
	Logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(cfg config.NotificationConfig, deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: deps.Dispatcher,
		devices:    deps.DeviceRepo,
		sender:     deps.Sender,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketMessageAdded, n.handleTicketMessageAdded)
	n.dispatcher.Subscribe(events.EventTicketRated, n.handleTicketRated)
}

func (n *NotificationService) handleTicketCreated(_ context.Context, event events.Event) error {
	n.logger.Info("ticket created", zap.String("ticket_id", event.TicketID), zap.String("owner_id", event.OwnerID))
	return nil
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	return n.notifyOwner(ctx, event, "Ticket status updated",
		fmt.Sprintf("Your ticket is now %s", statusLabel(payload.NewStatus)))
}

func (n *NotificationService) handleTicketMessageAdded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketMessageAddedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	return n.notifyOwner(ctx, event, "New reply on your ticket", payload.BodyPreview)
}

func (n *NotificationService) handleTicketRated(_ context.Context, event events.Event) error {
	n.logger.Info("ticket rated", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}

// notifyOwner pushes to every device of the ticket owner that has an FCM token.
// The owner is never notified about their own actions.
func (n *NotificationService) notifyOwner(ctx context.Context, event events.Event, title, body string) error {
	if !n.cfg.PushEnabled || n.devices == nil || n.sender == nil {
		return nil
	}
	if event.OwnerID == "" || event.Actor.UserID == event.OwnerID {
		return nil
	}
	devices, err := n.devices.ListByUser(ctx, event.OwnerID)
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}
	for _, device := range devices {
		if device.FCMToken == nil || *device.FCMToken == "" {
			continue
		}
		msg := PushMessage{
			UserID:    event.OwnerID,
			DeviceID:  device.DeviceID,
			FCMToken:  *device.FCMToken,
			TicketID:  event.TicketID,
			EventType: event.Type,
			Title:     title,
			Body:      body,
		}
		if err := n.sender.Send(ctx, msg); err != nil {
			n.logger.Warn("push enqueue failed", zap.String("device_id", device.DeviceID), zap.Error(err))
		}
	}
	return nil
}

func statusLabel(status domain.TicketStatus) string {
	if status == domain.TicketStatusInProgress {
		return "in progress"
	}
	return string(status)
}
