package attendance_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tukio-events/tukio/internal/attendance"
	"github.com/tukio-events/tukio/internal/fanout"
	"github.com/tukio-events/tukio/internal/repository"
)

// fakeStore mimics the store's atomic conditional add with a mutex, the
// same guarantee the real SQL statement provides.
type fakeStore struct {
	mu       sync.Mutex
	events   map[uuid.UUID]*repository.Event
	addCalls int
	addErr   error
}

func newFakeStore(eventIDs ...uuid.UUID) *fakeStore {
	s := &fakeStore{events: make(map[uuid.UUID]*repository.Event)}
	for _, id := range eventIDs {
		s.events[id] = &repository.Event{ID: id, Attendees: []uuid.UUID{}}
	}
	return s
}

func (s *fakeStore) FindEvent(ctx context.Context, id uuid.UUID) (repository.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[id]
	if !ok {
		return repository.Event{}, repository.ErrEventNotFound
	}
	copied := *event
	copied.Attendees = slices.Clone(event.Attendees)
	return copied, nil
}

func (s *fakeStore) AddAttendeeIfAbsent(ctx context.Context, eventID, accountID uuid.UUID) ([]uuid.UUID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addCalls++
	if s.addErr != nil {
		return nil, false, s.addErr
	}
	event, ok := s.events[eventID]
	if !ok {
		return nil, false, repository.ErrEventNotFound
	}
	if slices.Contains(event.Attendees, accountID) {
		return slices.Clone(event.Attendees), false, nil
	}
	event.Attendees = append(event.Attendees, accountID)
	return slices.Clone(event.Attendees), true, nil
}

// recordingPublisher captures every publish for later assertions.
type recordingPublisher struct {
	mu       sync.Mutex
	messages []fanout.Message
}

func (p *recordingPublisher) Publish(topic string, msg fanout.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
}

func (p *recordingPublisher) published() []fanout.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.messages)
}

func newCoordinator(pub attendance.Publisher) *attendance.Coordinator {
	return attendance.NewCoordinator(pub, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestJoinAddsAttendeeAndPublishes(t *testing.T) {
	eventID := uuid.New()
	subject := uuid.New()
	store := newFakeStore(eventID)
	pub := &recordingPublisher{}

	attendees, err := newCoordinator(pub).Join(context.Background(), store, eventID, subject)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{subject}, attendees)

	msgs := pub.published()
	require.Len(t, msgs, 1)
	assert.Equal(t, eventID, msgs[0].EventID)
	assert.Equal(t, []uuid.UUID{subject}, msgs[0].Attendees)
}

func TestJoinTwiceIsRejectedWithoutPublish(t *testing.T) {
	eventID := uuid.New()
	subject := uuid.New()
	store := newFakeStore(eventID)
	pub := &recordingPublisher{}
	coord := newCoordinator(pub)

	_, err := coord.Join(context.Background(), store, eventID, subject)
	require.NoError(t, err)

	_, err = coord.Join(context.Background(), store, eventID, subject)
	assert.ErrorIs(t, err, attendance.ErrAlreadyRegistered)

	// The precheck short-circuits, so the second join never reaches the
	// store mutation and nothing extra is broadcast.
	assert.Equal(t, 1, store.addCalls)
	assert.Len(t, pub.published(), 1)
}

func TestJoinUnknownEvent(t *testing.T) {
	store := newFakeStore()
	pub := &recordingPublisher{}

	_, err := newCoordinator(pub).Join(context.Background(), store, uuid.New(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrEventNotFound)
	assert.Empty(t, pub.published())
}

func TestJoinNeverPublishesOnIndeterminateWrite(t *testing.T) {
	eventID := uuid.New()
	store := newFakeStore(eventID)
	store.addErr = repository.ErrStoreUnavailable
	pub := &recordingPublisher{}

	_, err := newCoordinator(pub).Join(context.Background(), store, eventID, uuid.New())
	assert.ErrorIs(t, err, repository.ErrStoreUnavailable)
	assert.Empty(t, pub.published())
}

func TestConcurrentJoinsSameSubjectHaveOneWinner(t *testing.T) {
	const workers = 25

	eventID := uuid.New()
	subject := uuid.New()
	store := newFakeStore(eventID)
	pub := &recordingPublisher{}
	coord := newCoordinator(pub)

	errs := make([]error, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := range workers {
		go func() {
			defer wg.Done()
			_, errs[i] = coord.Join(context.Background(), store, eventID, subject)
		}()
	}
	wg.Wait()

	var wins, rejections int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, attendance.ErrAlreadyRegistered):
			rejections++
		default:
			t.Fatalf("unexpected join error: %v", err)
		}
	}

	assert.Equal(t, 1, wins)
	assert.Equal(t, workers-1, rejections)
	assert.Len(t, pub.published(), 1)

	final, err := store.FindEvent(context.Background(), eventID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{subject}, final.Attendees)
}

func TestConcurrentJoinsDifferentSubjectsBothWin(t *testing.T) {
	eventID := uuid.New()
	u1 := uuid.New()
	u2 := uuid.New()
	store := newFakeStore(eventID)
	pub := &recordingPublisher{}
	coord := newCoordinator(pub)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = coord.Join(context.Background(), store, eventID, u1)
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = coord.Join(context.Background(), store, eventID, u2)
	}()
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	final, err := store.FindEvent(context.Background(), eventID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{u1, u2}, final.Attendees)
	assert.Len(t, pub.published(), 2)
}
