package notify

import (
	"log"
	"time"

	"github.com/reflectcal/mailerd/internal/models"
)

// alertWindow is the width of the firing window for a single alert. The
// tick loop fires once per minute, so an alert is due during exactly the
// one minute in which its offset from the event start lands.
const alertWindow = time.Minute

// FilterUpcoming returns the events with at least one notification alert
// due in the minute starting at now. The window test is half-open: an
// event whose start equals now+interval matches, one whose start equals
// now+interval+1m does not. Input order is preserved and the input slice
// is not modified; an event without alerts never matches.
func FilterUpcoming(now time.Time, events []models.Event) []models.Event {
	var upcoming []models.Event
	for _, ev := range events {
		if alertDue(now, ev) {
			upcoming = append(upcoming, ev)
		}
	}

	for _, ev := range upcoming {
		for _, a := range ev.Alerts {
			if a.Type != models.AlertTypeNotification {
				continue
			}
			windowStart := now.Add(a.Offset())
			log.Printf("will notify about event %q which starts between %s and %s",
				ev.Name,
				windowStart.UTC().Format(time.RFC3339),
				windowStart.Add(alertWindow).UTC().Format(time.RFC3339))
		}
	}

	return upcoming
}

func alertDue(now time.Time, ev models.Event) bool {
	for _, a := range ev.Alerts {
		if a.Type != models.AlertTypeNotification {
			continue
		}
		windowStart := now.Add(a.Offset())
		if !ev.Start.Before(windowStart) && ev.Start.Before(windowStart.Add(alertWindow)) {
			return true
		}
	}
	return false
}
