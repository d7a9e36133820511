package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tukio-events/tukio/internal/attendance"
	"github.com/tukio-events/tukio/internal/cache"
	"github.com/tukio-events/tukio/internal/config"
	"github.com/tukio-events/tukio/internal/eventbus"
	"github.com/tukio-events/tukio/internal/middleware"
	"github.com/tukio-events/tukio/internal/middleware/pagination"
	"github.com/tukio-events/tukio/internal/repository"
)

type EventHandler struct {
	Logger      *slog.Logger
	Config      *config.Config
	Coordinator *attendance.Coordinator
	Cache       *cache.EventCache
	EventBus    *eventbus.AttendanceEventBus
}

func (eh *EventHandler) RegisterHandlers(cfg *config.Config, router *http.ServeMux) {
	gate := middleware.CreateStack(
		middleware.IsAuthenticated(cfg, eh.Logger),
	)

	router.Handle("GET /api/events", gate(http.HandlerFunc(eh.ListEvents)))
	router.Handle("POST /api/events", gate(http.HandlerFunc(eh.CreateEvent)))
	router.Handle("GET /api/events/{id}", gate(http.HandlerFunc(eh.GetEvent)))
	router.Handle("PUT /api/events/{id}", gate(http.HandlerFunc(eh.UpdateEvent)))
	router.Handle("DELETE /api/events/{id}", gate(http.HandlerFunc(eh.DeleteEvent)))
	router.Handle("POST /api/events/{id}/attend", gate(http.HandlerFunc(eh.Attend)))
}

type createEventRequest struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	Location    string    `json:"location"`
	Image       string    `json:"image"`
}

type updateEventRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Date        *time.Time `json:"date"`
	Location    *string    `json:"location"`
	Image       *string    `json:"image"`
}

func (eh *EventHandler) writeInternalError(w http.ResponseWriter) {
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{
		"error": "We ran into a problem while servicing your request please try again later",
	})
}

func eventIDFromPath(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(r.PathValue("id"))
}

// Creates a new event owned by the authenticated identity
func (eh *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	claims, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "missing credentials"})
		return
	}
	subjectID, err := claims.SubjectID()
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid or expired token"})
		return
	}

	var body createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil ||
		body.Name == "" || body.Description == "" || body.Location == "" || body.Image == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "Please check your request body and try again",
		})
		return
	}

	if body.Date.Before(time.Now()) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "Event date cannot be in the past",
		})
		return
	}

	conn, err := middleware.GetDBConnFromContext(r.Context())
	if err != nil {
		eh.Logger.Error("Error while processing request", slog.Any("error", err))
		eh.writeInternalError(w)
		return
	}

	tx, _ := conn.Begin(r.Context())
	defer tx.Rollback(r.Context())
	repo := repository.New(tx)

	created, err := repo.CreateEvent(r.Context(), repository.CreateEventParams{
		Name:        body.Name,
		Description: body.Description,
		Date:        body.Date,
		Location:    body.Location,
		Image:       body.Image,
		CreatedBy:   subjectID,
	})
	if err != nil {
		eh.Logger.Error("Failed to create event", slog.Any("error", err))
		eh.writeInternalError(w)
		return
	}

	if err = tx.Commit(r.Context()); err != nil {
		eh.Logger.Error("Error while committing transaction", slog.Any("error", err))
		eh.writeInternalError(w)
		return
	}

	if err := eh.EventBus.PublishEventCreated(r.Context(), created, eventbus.GenerateRequestID()); err != nil {
		eh.Logger.Error("Failed to publish event created event", slog.Any("error", err))
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

// Returns events sorted by date using the limit offset scheme
func (eh *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	conn, err := middleware.GetDBConnFromContext(r.Context())
	if err != nil {
		eh.Logger.Error("Error while processing request", slog.Any("error", err))
		eh.writeInternalError(w)
		return
	}

	repo := repository.New(conn)
	pageParams := pagination.ParsePageParams(r)

	totalCount, err := repo.CountEvents(r.Context())
	if err != nil {
		eh.Logger.Error("Failed to count events", slog.Any("error", err))
		eh.writeInternalError(w)
		return
	}

	events, err := repo.ListEvents(r.Context(), repository.ListEventsParams{
		Limit:  int32(pageParams.PageSize),
		Offset: int32(pageParams.Offset),
	})
	if err != nil {
		eh.Logger.Error("Failed to list events", slog.Any("error", err))
		eh.writeInternalError(w)
		return
	}

	response := pagination.BuildPaginatedResponse(r, totalCount, events, pageParams)
	json.NewEncoder(w).Encode(response)
}

// Returns a single event together with its attendee set
func (eh *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	eventID, err := eventIDFromPath(r)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "Event not found"})
		return
	}

	if event, ok := eh.Cache.Get(r.Context(), eventID); ok {
		json.NewEncoder(w).Encode(event)
		return
	}

	conn, err := middleware.GetDBConnFromContext(r.Context())
	if err != nil {
		eh.Logger.Error("Error while processing request", slog.Any("error", err))
		eh.writeInternalError(w)
		return
	}

	repo := repository.New(conn)

	event, err := repo.FindEvent(r.Context(), eventID)
	if errors.Is(err, repository.ErrEventNotFound) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "Event not found"})
		return
	}
	if err != nil {
		eh.Logger.Error("Failed to fetch event", slog.Any("error", err))
		eh.writeInternalError(w)
		return
	}

	eh.Cache.Set(r.Context(), event)
	json.NewEncoder(w).Encode(event)
}

// Applies the provided fields to an event the caller created
func (eh *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	claims, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "missing credentials"})
		return
	}
	subjectID, err := claims.SubjectID()
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid or expired token"})
		return
	}

	eventID, err := eventIDFromPath(r)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "Event not found or unauthorized"})
		return
	}

	var body updateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "Please check your request body and try again",
		})
		return
	}

	if body.Date != nil && body.Date.Before(time.Now()) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "Event date cannot be in the past",
		})
		return
	}

	conn, err := middleware.GetDBConnFromContext(r.Context())
	if err != nil {
		eh.Logger.Error("Error while processing request", slog.Any("error", err))
		eh.writeInternalError(w)
		return
	}

	tx, _ := conn.Begin(r.Context())
	defer tx.Rollback(r.Context())
	repo := repository.New(tx)

	_, err = repo.UpdateEventIfOwner(r.Context(), repository.UpdateEventParams{
		ID:          eventID,
		CreatedBy:   subjectID,
		Name:        body.Name,
		Description: body.Description,
		Date:        body.Date,
		Location:    body.Location,
		Image:       body.Image,
	})
	if errors.Is(err, repository.ErrEventNotFound) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "Event not found or unauthorized"})
		return
	}
	if err != nil {
		eh.Logger.Error("Failed to update event", slog.Any("error", err))
		eh.writeInternalError(w)
		return
	}

	// Re-read inside the transaction so the response carries the attendee
	// set like every other event payload.
	updated, err := repo.FindEvent(r.Context(), eventID)
	if err != nil {
		eh.Logger.Error("Failed to fetch updated event", slog.Any("error", err))
		eh.writeInternalError(w)
		return
	}

	if err = tx.Commit(r.Context()); err != nil {
		eh.Logger.Error("Error while committing transaction", slog.Any("error", err))
		eh.writeInternalError(w)
		return
	}

	eh.Cache.Invalidate(r.Context(), eventID)
	if err := eh.EventBus.PublishEventUpdated(r.Context(), updated, eventbus.GenerateRequestID()); err != nil {
		eh.Logger.Error("Failed to publish event updated event", slog.Any("error", err))
	}

	json.NewEncoder(w).Encode(updated)
}

// Deletes an event the caller created
func (eh *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	claims, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "missing credentials"})
		return
	}
	subjectID, err := claims.SubjectID()
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid or expired token"})
		return
	}

	eventID, err := eventIDFromPath(r)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "Event not found or unauthorized"})
		return
	}

	conn, err := middleware.GetDBConnFromContext(r.Context())
	if err != nil {
		eh.Logger.Error("Error while processing request", slog.Any("error", err))
		eh.writeInternalError(w)
		return
	}

	tx, _ := conn.Begin(r.Context())
	defer tx.Rollback(r.Context())
	repo := repository.New(tx)

	// Fetched first so the deleted payload can ride the integration event.
	event, err := repo.FindEvent(r.Context(), eventID)
	if errors.Is(err, repository.ErrEventNotFound) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "Event not found or unauthorized"})
		return
	}
	if err != nil {
		eh.Logger.Error("Failed to fetch event", slog.Any("error", err))
		eh.writeInternalError(w)
		return
	}

	err = repo.DeleteEventIfOwner(r.Context(), eventID, subjectID)
	if errors.Is(err, repository.ErrEventNotFound) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "Event not found or unauthorized"})
		return
	}
	if err != nil {
		eh.Logger.Error("Failed to delete event", slog.Any("error", err))
		eh.writeInternalError(w)
		return
	}

	if err = tx.Commit(r.Context()); err != nil {
		eh.Logger.Error("Error while committing transaction", slog.Any("error", err))
		eh.writeInternalError(w)
		return
	}

	eh.Cache.Invalidate(r.Context(), eventID)
	if err := eh.EventBus.PublishEventDeleted(r.Context(), event, eventbus.GenerateRequestID()); err != nil {
		eh.Logger.Error("Failed to publish event deleted event", slog.Any("error", err))
	}

	json.NewEncoder(w).Encode(map[string]string{"message": "Event deleted successfully"})
}

// Registers the authenticated identity as an attendee of the event
func (eh *EventHandler) Attend(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	claims, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "missing credentials"})
		return
	}
	subjectID, err := claims.SubjectID()
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid or expired token"})
		return
	}

	eventID, err := eventIDFromPath(r)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "Event not found"})
		return
	}

	conn, err := middleware.GetDBConnFromContext(r.Context())
	if err != nil {
		eh.Logger.Error("Error while processing request", slog.Any("error", err))
		eh.writeInternalError(w)
		return
	}

	// No surrounding transaction here: the conditional add must commit the
	// instant it succeeds, so the fan-out publish inside the coordinator
	// never broadcasts state that is not yet durable.
	repo := repository.New(conn)

	attendees, err := eh.Coordinator.Join(r.Context(), repo, eventID, subjectID)
	switch {
	case errors.Is(err, attendance.ErrAlreadyRegistered):
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "You are already registered for this event",
		})
		return
	case errors.Is(err, repository.ErrEventNotFound):
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "Event not found"})
		return
	case errors.Is(err, repository.ErrStoreUnavailable):
		eh.Logger.Error("Event store unavailable during join", slog.Any("error", err))
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "We could not confirm your registration please try again",
		})
		return
	case err != nil:
		eh.Logger.Error("Failed to register attendee", slog.Any("error", err))
		eh.writeInternalError(w)
		return
	}

	eh.Cache.Invalidate(r.Context(), eventID)
	if err := eh.EventBus.PublishAttendeeJoined(r.Context(), eventID, subjectID, attendees, eventbus.GenerateRequestID()); err != nil {
		eh.Logger.Error("Failed to publish attendee joined event", slog.Any("error", err))
	}

	json.NewEncoder(w).Encode(map[string]any{
		"event_id":  eventID,
		"attendees": attendees,
	})
}
