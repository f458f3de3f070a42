package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/reflectcal/mailerd/internal/models"
)

// Response describes the relay's outcome for a single recipient.
type Response struct {
	Recipient string `json:"recipient"`
	MessageID string `json:"message_id,omitempty"`
	Accepted  bool   `json:"accepted"`
}

// Dispatcher delivers a batch of per-user event digests. Implementations
// return one Response per recipient attempted; a delivery failure fails
// the whole batch. An empty mapping yields zero responses and no
// side effects.
type Dispatcher interface {
	Mail(ctx context.Context, eventsByUser map[string][]models.Event) ([]Response, error)
	Type() string
}

// HTTPDispatcher sends digests to a mail relay via HTTP POST, one
// request per recipient.
type HTTPDispatcher struct {
	URL     string
	Timeout time.Duration
	client  *http.Client
}

// NewHTTPDispatcher creates an HTTP mail dispatcher.
func NewHTTPDispatcher(url string, timeout time.Duration) *HTTPDispatcher {
	return &HTTPDispatcher{
		URL:     url,
		Timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (d *HTTPDispatcher) Type() string {
	return "http"
}

func (d *HTTPDispatcher) Mail(ctx context.Context, eventsByUser map[string][]models.Event) ([]Response, error) {
	batchID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate batch id: %w", err)
	}

	responses := make([]Response, 0, len(eventsByUser))
	for userName, events := range eventsByUser {
		payload := map[string]interface{}{
			"batch_id":    batchID.String(),
			"recipient":   userName,
			"event_count": len(events),
			"events":      events,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
		}

		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal mail payload for %s: %w", userName, err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(jsonData))
		if err != nil {
			return nil, fmt.Errorf("create mail request for %s: %w", userName, err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "Reflectcal-Mailer/1.0")

		resp, err := d.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("send mail for %s: %w", userName, err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil, fmt.Errorf("mail relay returned status %d for %s", resp.StatusCode, userName)
		}

		// The relay may echo a message id; its absence is not an error.
		var ack struct {
			MessageID string `json:"message_id"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&ack)
		resp.Body.Close()

		responses = append(responses, Response{
			Recipient: userName,
			MessageID: ack.MessageID,
			Accepted:  true,
		})
	}

	return responses, nil
}

// LogDispatcher writes digests to logs instead of sending mail (for
// development and tests).
type LogDispatcher struct {
	logger func(format string, v ...interface{})
}

// NewLogDispatcher creates a log-backed dispatcher.
func NewLogDispatcher(logger func(format string, v ...interface{})) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (l *LogDispatcher) Type() string {
	return "log"
}

func (l *LogDispatcher) Mail(ctx context.Context, eventsByUser map[string][]models.Event) ([]Response, error) {
	responses := make([]Response, 0, len(eventsByUser))
	for userName, events := range eventsByUser {
		l.logger("MAIL DIGEST: recipient=%s events=%d", userName, len(events))
		responses = append(responses, Response{Recipient: userName, Accepted: true})
	}
	return responses, nil
}
