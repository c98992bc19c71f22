package alerts

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"clinical-alert-engine/internal/metrics"
)

// SubscriberFunc receives each newly created alert. A returned error or a
// panic is logged and never reaches other subscribers or the publisher.
type SubscriberFunc func(ctx context.Context, alert Alert) error

// Hub fans new alerts out to registered subscribers. Publish works on a
// snapshot, so subscriptions made during a publish do not receive it and
// delivery happens outside the lock.
type Hub struct {
	mu     sync.Mutex
	subs   map[uuid.UUID]SubscriberFunc
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		subs:   make(map[uuid.UUID]SubscriberFunc),
		logger: logger,
	}
}

func (h *Hub) Subscribe(fn SubscriberFunc) uuid.UUID {
	handle := uuid.New()
	h.mu.Lock()
	h.subs[handle] = fn
	h.mu.Unlock()
	h.logger.Info("alert subscriber registered", slog.String("handle", handle.String()))
	return handle
}

func (h *Hub) Unsubscribe(handle uuid.UUID) {
	h.mu.Lock()
	_, ok := h.subs[handle]
	delete(h.subs, handle)
	h.mu.Unlock()
	if ok {
		h.logger.Info("alert subscriber removed", slog.String("handle", handle.String()))
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) Publish(ctx context.Context, alert Alert) {
	h.mu.Lock()
	snapshot := make([]SubscriberFunc, 0, len(h.subs))
	for _, fn := range h.subs {
		snapshot = append(snapshot, fn)
	}
	h.mu.Unlock()
	for _, fn := range snapshot {
		h.deliver(ctx, fn, alert)
	}
}

func (h *Hub) deliver(ctx context.Context, fn SubscriberFunc, alert Alert) {
	defer func() {
		if r := recover(); r != nil {
			metrics.SubscriberErrors.Inc()
			h.logger.Error("alert subscriber panicked", slog.Any("panic", r))
		}
	}()
	if err := fn(ctx, alert); err != nil {
		metrics.SubscriberErrors.Inc()
		h.logger.Error("alert subscriber failed", slog.String("error", err.Error()))
	}
}
