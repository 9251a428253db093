package database

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/propguard/security-analytics-backend/internal/domain/errors"
	"github.com/propguard/security-analytics-backend/internal/domain/security"
)

// EventRepository stores and queries security events in PostgreSQL. It is
// the production EventSource behind the analytics engine.
type EventRepository struct {
	db *pgxpool.Pool
}

func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

// Store persists a single event.
func (r *EventRepository) Store(ctx context.Context, event *security.Event) error {
	detailsJSON, err := json.Marshal(event.Details)
	if err != nil {
		return errors.NewInternalError("failed to marshal event details").WithCause(err)
	}

	query := `
		INSERT INTO security_events (
			id, occurred_at, category, action, status, severity, subject_id, details
		) VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)`

	_, err = r.db.Exec(ctx, query,
		event.ID,
		event.Time(),
		string(event.Category),
		event.Action,
		string(event.Status),
		string(event.Severity),
		event.SubjectID,
		detailsJSON,
	)
	if err != nil {
		return errors.NewInternalError("failed to store security event").WithCause(err)
	}

	return nil
}

// StoreBatch persists events atomically. Ingest paths batch writes, so a
// partial insert must not survive.
func (r *EventRepository) StoreBatch(ctx context.Context, events []*security.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return errors.NewInternalError("failed to begin transaction").WithCause(err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	query := `
		INSERT INTO security_events (
			id, occurred_at, category, action, status, severity, subject_id, details
		) VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)`

	for _, event := range events {
		detailsJSON, err := json.Marshal(event.Details)
		if err != nil {
			return errors.NewInternalError("failed to marshal event details").WithCause(err)
		}
		batch.Queue(query,
			event.ID,
			event.Time(),
			string(event.Category),
			event.Action,
			string(event.Status),
			string(event.Severity),
			event.SubjectID,
			detailsJSON,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for range events {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return errors.NewInternalError("failed to store event batch").WithCause(err)
		}
	}
	if err := results.Close(); err != nil {
		return errors.NewInternalError("failed to close event batch").WithCause(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.NewInternalError("failed to commit event batch").WithCause(err)
	}

	return nil
}

// FetchEvents returns events in the half-open window [start, end), newest
// first, optionally scoped to a subject.
func (r *EventRepository) FetchEvents(ctx context.Context, start, end time.Time, subjectID string) ([]security.Event, error) {
	query := `
		SELECT id, occurred_at, category, action, status, severity,
		       COALESCE(subject_id, ''), details
		FROM security_events
		WHERE occurred_at >= $1 AND occurred_at < $2`
	args := []interface{}{start, end}

	if subjectID != "" {
		query += ` AND subject_id = $3`
		args = append(args, subjectID)
	}
	query += ` ORDER BY occurred_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternalError("failed to query security events").WithCause(err)
	}
	defer rows.Close()

	var events []security.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternalError("failed to read security events").WithCause(err)
	}

	return events, nil
}

func scanEvent(row pgx.Row) (security.Event, error) {
	var (
		event       security.Event
		occurredAt  time.Time
		detailsJSON []byte
	)

	err := row.Scan(
		&event.ID,
		&occurredAt,
		&event.Category,
		&event.Action,
		&event.Status,
		&event.Severity,
		&event.SubjectID,
		&detailsJSON,
	)
	if err != nil {
		return security.Event{}, errors.NewInternalError("failed to scan security event").WithCause(err)
	}

	event.Timestamp = occurredAt.UnixMilli()

	if len(detailsJSON) > 0 {
		if err := json.Unmarshal(detailsJSON, &event.Details); err != nil {
			return security.Event{}, errors.NewInternalError("failed to unmarshal event details").WithCause(err)
		}
	}

	return event, nil
}
