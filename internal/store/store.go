package store

import (
	"context"

	"github.com/reflectcal/mailerd/internal/models"
)

// EventFilter narrows an event query. The zero value matches all events.
type EventFilter struct {
	CalendarID string
}

// CalendarFilter narrows a calendar query. The zero value matches all
// calendars.
type CalendarFilter struct {
	ID string
}

// Store defines the read-only queries the notification pipeline needs.
// Implementations must be safe for concurrent readers: recipient
// resolution issues one calendar lookup per bucket within a single tick.
type Store interface {
	FindEvents(ctx context.Context, filter EventFilter) ([]models.Event, error)
	FindCalendars(ctx context.Context, filter CalendarFilter) ([]models.Calendar, error)
	Close()
}
