package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const createEvent = `
INSERT INTO events (name, description, date, location, image, created_by)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, name, description, date, location, image, created_by, created_at, updated_at
`

type CreateEventParams struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	Location    string    `json:"location"`
	Image       string    `json:"image"`
	CreatedBy   uuid.UUID `json:"created_by"`
}

func (q *Queries) CreateEvent(ctx context.Context, arg CreateEventParams) (Event, error) {
	row := q.db.QueryRow(ctx, createEvent,
		arg.Name, arg.Description, arg.Date, arg.Location, arg.Image, arg.CreatedBy)
	var e Event
	err := row.Scan(&e.ID, &e.Name, &e.Description, &e.Date,
		&e.Location, &e.Image, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return Event{}, fmt.Errorf("create event: %w", classify(err))
	}
	e.Attendees = []uuid.UUID{}
	return e, nil
}

const findEvent = `
SELECT e.id, e.name, e.description, e.date, e.location, e.image, e.created_by,
       e.created_at, e.updated_at,
       COALESCE(
           array_agg(a.account_id ORDER BY a.joined_at) FILTER (WHERE a.account_id IS NOT NULL),
           '{}'
       ) AS attendees
FROM events e
LEFT JOIN event_attendees a ON a.event_id = e.id
WHERE e.id = $1
GROUP BY e.id
`

// FindEvent returns the event together with its full attendee set.
func (q *Queries) FindEvent(ctx context.Context, id uuid.UUID) (Event, error) {
	row := q.db.QueryRow(ctx, findEvent, id)
	var e Event
	err := row.Scan(&e.ID, &e.Name, &e.Description, &e.Date,
		&e.Location, &e.Image, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt, &e.Attendees)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Event{}, ErrEventNotFound
		}
		return Event{}, fmt.Errorf("find event: %w", classify(err))
	}
	return e, nil
}

const listEvents = `
SELECT e.id, e.name, e.description, e.date, e.location, e.image, e.created_by,
       e.created_at, e.updated_at,
       COALESCE(
           array_agg(a.account_id ORDER BY a.joined_at) FILTER (WHERE a.account_id IS NOT NULL),
           '{}'
       ) AS attendees
FROM events e
LEFT JOIN event_attendees a ON a.event_id = e.id
GROUP BY e.id
ORDER BY e.date ASC
LIMIT $1 OFFSET $2
`

type ListEventsParams struct {
	Limit  int32 `json:"limit"`
	Offset int32 `json:"offset"`
}

func (q *Queries) ListEvents(ctx context.Context, arg ListEventsParams) ([]Event, error) {
	rows, err := q.db.Query(ctx, listEvents, arg.Limit, arg.Offset)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", classify(err))
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Name, &e.Description, &e.Date,
			&e.Location, &e.Image, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt, &e.Attendees); err != nil {
			return nil, fmt.Errorf("list events: %w", classify(err))
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", classify(err))
	}
	return events, nil
}

const countEvents = `SELECT count(*) FROM events`

func (q *Queries) CountEvents(ctx context.Context) (int64, error) {
	var count int64
	if err := q.db.QueryRow(ctx, countEvents).Scan(&count); err != nil {
		return 0, fmt.Errorf("count events: %w", classify(err))
	}
	return count, nil
}

const updateEventIfOwner = `
UPDATE events
SET name        = COALESCE($3, name),
    description = COALESCE($4, description),
    date        = COALESCE($5, date),
    location    = COALESCE($6, location),
    image       = COALESCE($7, image),
    updated_at  = now()
WHERE id = $1 AND created_by = $2
RETURNING id, name, description, date, location, image, created_by, created_at, updated_at
`

type UpdateEventParams struct {
	ID          uuid.UUID  `json:"id"`
	CreatedBy   uuid.UUID  `json:"created_by"`
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Date        *time.Time `json:"date"`
	Location    *string    `json:"location"`
	Image       *string    `json:"image"`
}

// UpdateEventIfOwner applies the non-nil fields in one conditional write.
// The ownership check lives in the WHERE clause, so a non-owner and a
// missing event are indistinguishable, exactly like a lookup miss.
func (q *Queries) UpdateEventIfOwner(ctx context.Context, arg UpdateEventParams) (Event, error) {
	row := q.db.QueryRow(ctx, updateEventIfOwner,
		arg.ID, arg.CreatedBy, arg.Name, arg.Description, arg.Date, arg.Location, arg.Image)
	var e Event
	err := row.Scan(&e.ID, &e.Name, &e.Description, &e.Date,
		&e.Location, &e.Image, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Event{}, ErrEventNotFound
		}
		return Event{}, fmt.Errorf("update event: %w", classify(err))
	}
	return e, nil
}

const deleteEventIfOwner = `
DELETE FROM events
WHERE id = $1 AND created_by = $2
`

func (q *Queries) DeleteEventIfOwner(ctx context.Context, id, createdBy uuid.UUID) error {
	tag, err := q.db.Exec(ctx, deleteEventIfOwner, id, createdBy)
	if err != nil {
		return fmt.Errorf("delete event: %w", classify(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}

// addAttendeeIfAbsent inserts the attendee and reads back the resulting
// set in one statement. The data-modifying CTE only exposes its own row
// through RETURNING, hence the UNION with the pre-existing rows.
const addAttendeeIfAbsent = `
WITH inserted AS (
    INSERT INTO event_attendees (event_id, account_id)
    VALUES ($1, $2)
    ON CONFLICT (event_id, account_id) DO NOTHING
    RETURNING account_id
)
SELECT EXISTS (SELECT 1 FROM inserted) AS added,
       COALESCE(
           (SELECT array_agg(account_id)
            FROM (SELECT account_id FROM event_attendees WHERE event_id = $1
                  UNION
                  SELECT account_id FROM inserted) AS combined),
           '{}'
       ) AS attendees
`

// AddAttendeeIfAbsent atomically adds the account to the event's attendee
// set. It reports added=false when the account was already a member, which
// under two racing joins is exactly what the loser sees. A missing event
// surfaces as ErrEventNotFound via the foreign key.
func (q *Queries) AddAttendeeIfAbsent(ctx context.Context, eventID, accountID uuid.UUID) ([]uuid.UUID, bool, error) {
	row := q.db.QueryRow(ctx, addAttendeeIfAbsent, eventID, accountID)
	var added bool
	var attendees []uuid.UUID
	if err := row.Scan(&added, &attendees); err != nil {
		if isPgError(err, pgForeignKeyViolation) {
			return nil, false, ErrEventNotFound
		}
		return nil, false, fmt.Errorf("add attendee: %w", classify(err))
	}
	return attendees, added, nil
}
