package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/support-desk/internal/service"
)

// ErrQueueFull is returned when the push queue cannot accept more work.
var ErrQueueFull = errors.New("push queue full")

// ErrStopped is returned by Send after the worker has shut down.
var ErrStopped = errors.New("push worker stopped")

// Deliverer performs the actual push delivery.
type Deliverer func(ctx context.Context, msg service.PushMessage) error

// NotificationWorker drains push messages off the request path.
type NotificationWorker struct {
	queue   chan service.PushMessage
	workers int
	deliver Deliverer
	logger  *zap.Logger

	mu      sync.RWMutex
	stopped bool
}

// NewNotificationWorker builds a worker pool. A nil deliverer logs each push.
func NewNotificationWorker(logger *zap.Logger, workers, queueSize int, deliver Deliverer) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	w := &NotificationWorker{
		queue:   make(chan service.PushMessage, queueSize),
		workers: workers,
		deliver: deliver,
		logger:  logger,
	}
	if w.deliver == nil {
		w.deliver = w.logDelivery
	}
	return w
}

// Send enqueues msg without blocking.
func (w *NotificationWorker) Send(_ context.Context, msg service.PushMessage) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return ErrStopped
	}
	select {
	case w.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run processes the queue until ctx is cancelled, then drains what is left.
func (w *NotificationWorker) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(context.Background())
	for i := 0; i < w.workers; i++ {
		g.Go(func() error {
			for msg := range w.queue {
				if err := w.deliver(gctx, msg); err != nil {
					w.logger.Warn("push delivery failed",
						zap.String("user_id", msg.UserID),
						zap.String("device_id", msg.DeviceID),
						zap.Error(err))
				}
			}
			return nil
		})
	}

	<-ctx.Done()
	w.mu.Lock()
	w.stopped = true
	close(w.queue)
	w.mu.Unlock()
	return g.Wait()
}

func (w *NotificationWorker) logDelivery(_ context.Context, msg service.PushMessage) error {
	w.logger.Info("push dispatched",
		zap.String("user_id", msg.UserID),
		zap.String("device_id", msg.DeviceID),
		zap.String("ticket_id", msg.TicketID),
		zap.String("event_type", string(msg.EventType)),
		zap.String("title", msg.Title))
	return nil
}

// StartNotificationWorker registers notification handlers and starts the pool in the background.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService, w *NotificationWorker) <-chan error {
	done := make(chan error, 1)
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	if w == nil {
		close(done)
		return done
	}
	go func() {
		done <- w.Run(ctx)
		close(done)
	}()
	return done
}
