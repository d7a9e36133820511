package fanout

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Message is the attendee-changed notification delivered to everyone
// watching an event. It only exists for the duration of one publish.
type Message struct {
	EventID   uuid.UUID   `json:"event_id"`
	Attendees []uuid.UUID `json:"attendees"`
}

// subscriptionBuffer is how many undelivered messages a single watcher may
// lag behind before the bus starts dropping for it.
const subscriptionBuffer = 16

// Subscription is a handle onto one topic. Receive from Messages until
// Done is closed.
type Subscription struct {
	topic string
	ch    chan Message
	done  chan struct{}
	once  sync.Once
}

// Messages returns the channel the bus delivers on.
func (s *Subscription) Messages() <-chan Message {
	return s.ch
}

// Done is closed once the subscription has been removed from the bus.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Bus is an in-process topic-per-event publish/subscribe hub. Delivery is
// best effort: no persistence, no replay, no acknowledgements. A topic
// with zero subscribers is not an error, publishing to it is a no-op.
type Bus struct {
	logger *slog.Logger

	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
}

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		logger: logger,
		topics: make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe registers a new listener on the topic. Messages published
// before this call are never delivered to it.
func (b *Bus) Subscribe(topic string) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan Message, subscriptionBuffer),
		done:  make(chan struct{}),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[*Subscription]struct{})
		b.topics[topic] = subs
	}
	subs[sub] = struct{}{}

	return sub
}

// Unsubscribe removes the listener and signals its Done channel. Removing
// an already-removed subscription is a no-op.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	if subs, ok := b.topics[sub.topic]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.topics, sub.topic)
		}
	}
	b.mu.Unlock()

	// The message channel is deliberately never closed: a publish racing
	// this call may still hold a reference to it from its snapshot.
	sub.once.Do(func() { close(sub.done) })
}

// Publish delivers the message to every subscriber registered on the topic
// at the moment of the call. The subscriber set is snapshotted under the
// lock and delivery happens outside it, so registration and removal may
// race a publish freely. A subscriber whose buffer is full is skipped.
func (b *Bus) Publish(topic string, msg Message) {
	b.mu.RLock()
	subs := b.topics[topic]
	snapshot := make([]*Subscription, 0, len(subs))
	for sub := range subs {
		snapshot = append(snapshot, sub)
	}
	b.mu.RUnlock()

	for _, sub := range snapshot {
		select {
		case <-sub.done:
			// unsubscribed between snapshot and delivery
			continue
		default:
		}

		select {
		case sub.ch <- msg:
		default:
			b.logger.Warn("Dropping fanout message for saturated subscriber",
				slog.String("topic", topic),
			)
		}
	}
}
