package pipeline

import (
	"log/slog"
	"sync"

	"github.com/skypro1111/mic-stt-service/internal/metrics"
	"github.com/skypro1111/mic-stt-service/internal/stt"
)

// subscriberBufferSize is the per-subscriber event buffer. A subscriber
// that falls this far behind starts losing events rather than stalling
// the publisher.
const subscriberBufferSize = 32

// Broadcaster fans transcription events out to independent subscribers.
// Publish order is preserved per subscriber; subscribers only see
// events published after they joined.
type Broadcaster struct {
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	subs   map[uint64]chan stt.Event
	nextID uint64
	closed bool
}

// Subscription is one subscriber's view of the event stream
type Subscription struct {
	b    *Broadcaster
	id   uint64
	ch   chan stt.Event
	once sync.Once
}

// Events returns the subscriber's event channel. It is closed when the
// subscription is cancelled or the broadcaster shuts down.
func (s *Subscription) Events() <-chan stt.Event {
	return s.ch
}

// Cancel removes the subscription and closes its channel. Idempotent.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.b.remove(s.id)
	})
}

// NewBroadcaster creates an event broadcaster
func NewBroadcaster(logger *slog.Logger, m *metrics.Metrics) *Broadcaster {
	return &Broadcaster{
		logger:  logger,
		metrics: m,
		subs:    make(map[uint64]chan stt.Event),
	}
}

// Subscribe registers a new independent subscriber
func (b *Broadcaster) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan stt.Event, subscriberBufferSize)
	if b.closed {
		close(ch)
		return &Subscription{b: b, ch: ch}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.metrics.SetActiveSubscribers(len(b.subs))

	return &Subscription{b: b, id: id, ch: ch}
}

// Publish delivers an event to every current subscriber. Slow
// subscribers with a full buffer lose the event; the publisher never
// blocks.
func (b *Broadcaster) Publish(ev stt.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.metrics.RecordEventPublished()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.metrics.RecordEventDropped()
			b.logger.Warn("Dropping event for slow subscriber",
				slog.Uint64("subscriber_id", id),
				slog.String("kind", ev.Kind.String()),
			)
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close shuts the broadcaster down and closes all subscriber channels
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
	b.metrics.SetActiveSubscribers(0)
}

func (b *Broadcaster) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	close(ch)
	b.metrics.SetActiveSubscribers(len(b.subs))
}
