package fanout_test

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tukio-events/tukio/internal/fanout"
)

func newTestBus() *fanout.Bus {
	return fanout.NewBus(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func drain(sub *fanout.Subscription) []fanout.Message {
	var got []fanout.Message
	for {
		select {
		case msg := <-sub.Messages():
			got = append(got, msg)
		default:
			return got
		}
	}
}

func TestSubscriberReceivesPublishedMessage(t *testing.T) {
	bus := newTestBus()
	eventID := uuid.New()
	attendee := uuid.New()

	sub := bus.Subscribe(eventID.String())
	defer bus.Unsubscribe(sub)

	bus.Publish(eventID.String(), fanout.Message{
		EventID:   eventID,
		Attendees: []uuid.UUID{attendee},
	})

	got := drain(sub)
	require.Len(t, got, 1)
	assert.Equal(t, eventID, got[0].EventID)
	assert.Equal(t, []uuid.UUID{attendee}, got[0].Attendees)
}

func TestTopicsAreIsolated(t *testing.T) {
	bus := newTestBus()
	watched := uuid.New()
	other := uuid.New()

	sub := bus.Subscribe(watched.String())
	defer bus.Unsubscribe(sub)

	bus.Publish(other.String(), fanout.Message{EventID: other})

	assert.Empty(t, drain(sub))
}

func TestNoReplayForLateSubscribers(t *testing.T) {
	bus := newTestBus()
	eventID := uuid.New()

	bus.Publish(eventID.String(), fanout.Message{EventID: eventID})

	sub := bus.Subscribe(eventID.String())
	defer bus.Unsubscribe(sub)

	assert.Empty(t, drain(sub))
}

func TestUnsubscribedReceivesNothing(t *testing.T) {
	bus := newTestBus()
	eventID := uuid.New()

	sub := bus.Subscribe(eventID.String())
	bus.Unsubscribe(sub)

	bus.Publish(eventID.String(), fanout.Message{EventID: eventID})

	assert.Empty(t, drain(sub))

	select {
	case <-sub.Done():
	default:
		t.Fatal("Done should be closed after Unsubscribe")
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	bus := newTestBus()
	sub := bus.Subscribe(uuid.New().String())

	bus.Unsubscribe(sub)
	bus.Unsubscribe(sub)
	bus.Unsubscribe(nil)
}

func TestPublishOrderPreservedPerSubscriber(t *testing.T) {
	bus := newTestBus()
	eventID := uuid.New()

	sub := bus.Subscribe(eventID.String())
	defer bus.Unsubscribe(sub)

	first := uuid.New()
	second := uuid.New()
	bus.Publish(eventID.String(), fanout.Message{EventID: eventID, Attendees: []uuid.UUID{first}})
	bus.Publish(eventID.String(), fanout.Message{EventID: eventID, Attendees: []uuid.UUID{first, second}})

	got := drain(sub)
	require.Len(t, got, 2)
	assert.Len(t, got[0].Attendees, 1)
	assert.Len(t, got[1].Attendees, 2)
}

func TestSaturatedSubscriberNeverBlocksPublish(t *testing.T) {
	bus := newTestBus()
	eventID := uuid.New()

	sub := bus.Subscribe(eventID.String())
	defer bus.Unsubscribe(sub)

	// Far more than the subscription buffer holds; the excess is dropped
	// rather than wedging the publisher.
	for range 100 {
		bus.Publish(eventID.String(), fanout.Message{EventID: eventID})
	}

	got := drain(sub)
	assert.NotEmpty(t, got)
	assert.Less(t, len(got), 100)
}

func TestConcurrentPublishAndUnsubscribe(t *testing.T) {
	bus := newTestBus()
	eventID := uuid.New()

	subs := make([]*fanout.Subscription, 50)
	for i := range subs {
		subs[i] = bus.Subscribe(eventID.String())
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for range 200 {
			bus.Publish(eventID.String(), fanout.Message{EventID: eventID})
		}
	}()

	go func() {
		defer wg.Done()
		for _, sub := range subs {
			bus.Unsubscribe(sub)
		}
	}()

	wg.Wait()
}
