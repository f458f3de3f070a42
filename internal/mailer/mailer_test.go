package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/reflectcal/mailerd/internal/models"
)

func digest(users ...string) map[string][]models.Event {
	out := make(map[string][]models.Event, len(users))
	for _, u := range users {
		out[u] = []models.Event{{
			ID:         "ev-" + u,
			Name:       "meeting",
			Start:      time.UnixMilli(0),
			CalendarID: "cal-1",
		}}
	}
	return out
}

func TestHTTPDispatcherSendsOneRequestPerRecipient(t *testing.T) {
	var mu sync.Mutex
	var recipients []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			BatchID    string            `json:"batch_id"`
			Recipient  string            `json:"recipient"`
			EventCount int               `json:"event_count"`
			Events     []json.RawMessage `json:"events"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("failed to decode payload: %v", err)
		}
		if payload.BatchID == "" {
			t.Error("expected a batch id on every payload")
		}
		if payload.EventCount != len(payload.Events) {
			t.Errorf("event_count %d does not match events length %d", payload.EventCount, len(payload.Events))
		}

		mu.Lock()
		recipients = append(recipients, payload.Recipient)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"message_id": "msg-" + payload.Recipient})
	}))
	defer srv.Close()

	d := NewHTTPDispatcher(srv.URL, 5*time.Second)
	if d.Type() != "http" {
		t.Errorf("expected type 'http', got '%s'", d.Type())
	}

	responses, err := d.Mail(context.Background(), digest("alice", "bob"))
	if err != nil {
		t.Fatalf("expected mail dispatch to succeed: %v", err)
	}

	if len(responses) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(responses))
	}
	for _, resp := range responses {
		if !resp.Accepted {
			t.Errorf("expected response for %s to be accepted", resp.Recipient)
		}
		if resp.MessageID != "msg-"+resp.Recipient {
			t.Errorf("expected relayed message id for %s, got %q", resp.Recipient, resp.MessageID)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(recipients) != 2 {
		t.Errorf("expected 2 relay requests, got %d", len(recipients))
	}
}

func TestHTTPDispatcherEmptyMappingMakesNoRequests(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	d := NewHTTPDispatcher(srv.URL, 5*time.Second)
	responses, err := d.Mail(context.Background(), map[string][]models.Event{})
	if err != nil {
		t.Fatalf("expected empty dispatch to succeed: %v", err)
	}
	if len(responses) != 0 {
		t.Errorf("expected zero responses, got %d", len(responses))
	}
	if calls != 0 {
		t.Errorf("expected no relay requests, got %d", calls)
	}
}

func TestHTTPDispatcherFailsOnRelayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "relay unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	d := NewHTTPDispatcher(srv.URL, 5*time.Second)
	responses, err := d.Mail(context.Background(), digest("alice"))
	if err == nil {
		t.Fatal("expected an error for non-2xx relay response")
	}
	if responses != nil {
		t.Errorf("expected no responses on failure, got %v", responses)
	}
}

func TestLogDispatcher(t *testing.T) {
	logged := 0
	logFunc := func(format string, v ...interface{}) {
		logged++
	}

	d := NewLogDispatcher(logFunc)
	if d.Type() != "log" {
		t.Errorf("expected type 'log', got '%s'", d.Type())
	}

	responses, err := d.Mail(context.Background(), digest("alice", "bob"))
	if err != nil {
		t.Fatalf("expected log dispatch to succeed: %v", err)
	}
	if len(responses) != 2 {
		t.Errorf("expected 2 responses, got %d", len(responses))
	}
	if logged != 2 {
		t.Errorf("expected 2 log lines, got %d", logged)
	}
}
