package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bissquit/orgstatus/internal/pkg/ctxlog"
	"github.com/google/uuid"
)

const defaultSubscriberBuffer = 64

// Sink receives every published event after the subscribers. Enqueue must
// not block; it returns false when the event was dropped.
type Sink interface {
	Enqueue(event Event) bool
}

// Subscriber is a single registered consumer with its own FIFO buffer.
type Subscriber struct {
	id       string
	channels map[string]struct{}
	events   chan Event
}

// ID returns the subscriber id.
func (s *Subscriber) ID() string {
	return s.id
}

// Events returns the subscriber's event stream. The channel is closed when
// the subscriber is removed from the hub.
func (s *Subscriber) Events() <-chan Event {
	return s.events
}

// Hub is the process-wide registry of subscribers.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]*Subscriber
	sinks       []Sink
	buffer      int
	now         func() time.Time
}

// NewHub creates a hub. buffer is the per-subscriber queue length.
func NewHub(buffer int, sinks ...Sink) *Hub {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Hub{
		subscribers: make(map[string]*Subscriber),
		sinks:       sinks,
		buffer:      buffer,
		now:         time.Now,
	}
}

// Subscribe registers a new subscriber listening on the given channels.
func (h *Hub) Subscribe(channels ...string) *Subscriber {
	sub := &Subscriber{
		id:       uuid.NewString(),
		channels: make(map[string]struct{}, len(channels)),
		events:   make(chan Event, h.buffer),
	}
	for _, ch := range channels {
		sub.channels[ch] = struct{}{}
	}

	h.mu.Lock()
	h.subscribers[sub.id] = sub
	h.mu.Unlock()

	subscribersConnected.Inc()
	return sub
}

// Join adds channels to a registered subscriber.
func (h *Hub) Join(sub *Subscriber, channels ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range channels {
		sub.channels[ch] = struct{}{}
	}
}

// Leave removes channels from a registered subscriber.
func (h *Hub) Leave(sub *Subscriber, channels ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range channels {
		delete(sub.channels, ch)
	}
}

// Unsubscribe removes the subscriber and closes its stream. Calling it
// twice is a no-op.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

func (h *Hub) removeLocked(sub *Subscriber) bool {
	if _, ok := h.subscribers[sub.id]; !ok {
		return false
	}
	delete(h.subscribers, sub.id)
	close(sub.events)
	subscribersConnected.Dec()
	return true
}

// Publish delivers the event to every subscriber of its channel and to
// every sink. Events reach each subscriber in Publish call order. A
// subscriber whose buffer is full is dropped.
func (h *Hub) Publish(ctx context.Context, event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if event.PublishedAt.IsZero() {
		event.PublishedAt = h.now().UTC()
	}

	for _, sub := range h.subscribers {
		if _, ok := sub.channels[event.Channel]; !ok {
			continue
		}
		select {
		case sub.events <- event:
		default:
			h.removeLocked(sub)
			subscribersDropped.Inc()
			ctxlog.FromContext(ctx).Warn("dropping slow realtime subscriber",
				slog.String("subscriber_id", sub.id),
				slog.String("channel", event.Channel))
		}
	}

	for _, sink := range h.sinks {
		if !sink.Enqueue(event) {
			ctxlog.FromContext(ctx).Warn("realtime sink queue full, event dropped",
				slog.String("channel", event.Channel),
				slog.String("action", string(event.Action)))
		}
	}

	_, kind, err := ParseChannel(event.Channel)
	if err == nil {
		recordPublished(kind, event.Action)
	}
}

// SubscriberCount returns the number of registered subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Close removes every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subscribers {
		h.removeLocked(sub)
	}
}
