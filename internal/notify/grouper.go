package notify

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/reflectcal/mailerd/internal/models"
)

// RecipientResolver resolves a calendar id to its notification
// recipients.
type RecipientResolver interface {
	UsersForCalendar(ctx context.Context, calendarID string) ([]string, error)
}

// BucketByCalendar partitions events by their calendar id. Bucket keys
// carry no ordering guarantee.
func BucketByCalendar(events []models.Event) map[string][]models.Event {
	buckets := make(map[string][]models.Event)
	for _, ev := range events {
		buckets[ev.CalendarID] = append(buckets[ev.CalendarID], ev)
	}
	return buckets
}

// GroupByUser converts events bucketed by calendar into events bucketed
// by user name. Recipient resolution runs concurrently, one lookup per
// calendar, and the fan-in is all-or-nothing: if any lookup fails the
// whole grouping fails and partial results are discarded. Within a
// user's list each calendar's events are appended contiguously; lists
// are not further deduplicated or sorted. Empty input resolves
// immediately to an empty map.
func GroupByUser(ctx context.Context, resolver RecipientResolver, byCalendar map[string][]models.Event) (map[string][]models.Event, error) {
	byUser := make(map[string][]models.Event)
	if len(byCalendar) == 0 {
		return byUser, nil
	}

	var mu sync.Mutex
	usersByCalendar := make(map[string][]string, len(byCalendar))

	g, ctx := errgroup.WithContext(ctx)
	for calendarID := range byCalendar {
		calendarID := calendarID
		g.Go(func() error {
			userNames, err := resolver.UsersForCalendar(ctx, calendarID)
			if err != nil {
				return err
			}
			mu.Lock()
			usersByCalendar[calendarID] = userNames
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for calendarID, userNames := range usersByCalendar {
		for _, name := range userNames {
			byUser[name] = append(byUser[name], byCalendar[calendarID]...)
		}
	}

	return byUser, nil
}
