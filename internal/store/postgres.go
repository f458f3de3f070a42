package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reflectcal/mailerd/internal/models"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// FindEvents returns event snapshots matching the filter. A zero-value
// filter returns every event; the tick pipeline filters client-side.
func (s *PostgresStore) FindEvents(ctx context.Context, filter EventFilter) ([]models.Event, error) {
	query := `
		SELECT id, name, start_at, calendar_id, COALESCE(alerts, '[]'::jsonb)
		FROM events
	`
	args := []interface{}{}
	if filter.CalendarID != "" {
		query += " WHERE calendar_id = $1"
		args = append(args, filter.CalendarID)
	}
	query += " ORDER BY start_at"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var ev models.Event
		if err := rows.Scan(&ev.ID, &ev.Name, &ev.Start, &ev.CalendarID, &ev.Alerts); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	return events, nil
}

// FindCalendars returns calendar records matching the filter. An id that
// matches no calendars yields an empty slice, not an error.
func (s *PostgresStore) FindCalendars(ctx context.Context, filter CalendarFilter) ([]models.Calendar, error) {
	query := `
		SELECT id, owner, COALESCE(viewers, '{}'), COALESCE(editors, '{}')
		FROM calendars
	`
	args := []interface{}{}
	if filter.ID != "" {
		query += " WHERE id = $1"
		args = append(args, filter.ID)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendars: %w", err)
	}
	defer rows.Close()

	var calendars []models.Calendar
	for rows.Next() {
		var cal models.Calendar
		if err := rows.Scan(&cal.ID, &cal.Owner, &cal.Viewers, &cal.Editors); err != nil {
			return nil, fmt.Errorf("failed to scan calendar: %w", err)
		}
		calendars = append(calendars, cal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read calendars: %w", err)
	}

	return calendars, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
