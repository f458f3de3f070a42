package models

import "time"

// AlertTypeNotification is the alert type the mailer acts on. Other
// alert types on event records are handled client-side and ignored here.
const AlertTypeNotification = 3

// Alert is a notification rule attached to an event. Interval is a
// signed offset in milliseconds from the event start defining when the
// alert fires, typically negative ("N minutes before").
type Alert struct {
	Type     int   `json:"type"`
	Interval int64 `json:"interval"`
}

// Offset returns the alert interval as a duration.
func (a Alert) Offset() time.Duration {
	return time.Duration(a.Interval) * time.Millisecond
}

// Event is a calendar event snapshot fetched from the store. Events are
// read-only for the duration of one pipeline run; an event with no
// alerts never triggers a notification.
type Event struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Start      time.Time `json:"start"`
	CalendarID string    `json:"calendar_id"`
	Alerts     []Alert   `json:"alerts,omitempty"`
}

// Calendar holds the ownership and sharing lists used to resolve
// notification recipients.
type Calendar struct {
	ID      string   `json:"id"`
	Owner   string   `json:"owner"`
	Viewers []string `json:"viewers,omitempty"`
	Editors []string `json:"editors,omitempty"`
}

// Recipients returns the calendar's user names in resolution order:
// owner first, then viewers, then editors. Duplicates are not removed
// here; the resolver deduplicates globally across calendars.
func (c Calendar) Recipients() []string {
	names := make([]string, 0, 1+len(c.Viewers)+len(c.Editors))
	names = append(names, c.Owner)
	names = append(names, c.Viewers...)
	names = append(names, c.Editors...)
	return names
}
