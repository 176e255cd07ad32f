// Package bus implements the Core facade's notification bus: a bounded,
// lossy broadcast of domain events from a successful store mutation out to
// the lobby. A slow subscriber is logged and skipped;
// producers are never blocked.
package bus

import (
	"context"
	"sync"

	"github.com/aria-chat/backend/go/internal/v1/logging"
	"github.com/aria-chat/backend/go/internal/v1/metrics"
	"go.uber.org/zap"
)

// Capacity is the bounded channel size given to every subscriber.
const Capacity = 16

// Kind identifies the shape of a Notification's payload.
type Kind int

const (
	KindNewPost Kind = iota
	KindDeletePost
	KindNewEmote
	KindDeleteEmote
	KindContent
)

// Notification is a domain event published after a successful store
// mutation. RoomID identifies the target room; the payload
// fields used depend on Kind.
type Notification struct {
	Kind    Kind
	RoomID  int64
	PostID  int64
	EmoteID int64
	Payload any
}

// Bus is an in-process bounded broadcast: every subscriber gets its own
// buffered channel; a full channel means that subscriber lagged and the
// notification is dropped for it, never for the others, and never blocking
// Publish.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Notification
	next int
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[int]chan Notification)}
}

// Subscription is a live subscriber handle; call Unsubscribe when done.
type Subscription struct {
	id int
	ch chan Notification
	b  *Bus
}

// C returns the channel notifications arrive on.
func (s *Subscription) C() <-chan Notification { return s.ch }

// Unsubscribe removes the subscription and closes its channel.
func (s *Subscription) Unsubscribe() {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if ch, ok := s.b.subs[s.id]; ok {
		delete(s.b.subs, s.id)
		close(ch)
	}
}

// Subscribe registers a new bounded-capacity subscriber.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Notification, Capacity)
	b.subs[id] = ch

	return &Subscription{id: id, ch: ch, b: b}
}

// Publish fans a notification out to every subscriber. A subscriber whose
// channel is full has lagged; the notification is dropped for it and the
// condition is logged, never fatal and never blocking the publisher.
func (b *Bus) Publish(ctx context.Context, n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		select {
		case ch <- n:
		default:
			metrics.NotificationBusLagged.Inc()
			logging.Warn(ctx, "notification bus subscriber lagged, dropping",
				zap.Int("subscriber_id", id),
				zap.Int64("room_id", n.RoomID))
		}
	}
}
