package notify

import (
	"context"
	"fmt"

	"github.com/reflectcal/mailerd/internal/models"
	"github.com/reflectcal/mailerd/internal/store"
)

// CalendarFinder is the slice of the store the resolver depends on.
type CalendarFinder interface {
	FindCalendars(ctx context.Context, filter store.CalendarFilter) ([]models.Calendar, error)
}

// Resolver resolves a calendar identifier to the set of user names
// entitled to notifications for it.
type Resolver struct {
	store CalendarFinder
}

// NewResolver creates a resolver backed by the given calendar store.
func NewResolver(store CalendarFinder) *Resolver {
	return &Resolver{store: store}
}

// UsersForCalendar returns the deduplicated user names associated with
// the calendar: owner first, then viewers, then editors, in first-seen
// order across every calendar record matching the id. An id that matches
// no calendars resolves to an empty set, not an error.
func (r *Resolver) UsersForCalendar(ctx context.Context, calendarID string) ([]string, error) {
	calendars, err := r.store.FindCalendars(ctx, store.CalendarFilter{ID: calendarID})
	if err != nil {
		return nil, fmt.Errorf("failed to look up calendar %s: %w", calendarID, err)
	}

	seen := make(map[string]bool)
	var userNames []string
	for _, cal := range calendars {
		for _, name := range cal.Recipients() {
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			userNames = append(userNames, name)
		}
	}

	return userNames, nil
}
