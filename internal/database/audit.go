package database

import (
	"context"
	"fmt"
	"time"

	"agendei/internal/clock"
	"agendei/internal/events"
)

// AuditEntry is one recorded booking lifecycle event.
type AuditEntry struct {
	ID         int64
	BusinessID int64
	EventType  string
	Payload    string
	CreatedAt  time.Time
}

// RecordEvent appends an entry to the booking audit log.
func (db *DB) RecordEvent(ctx context.Context, e AuditEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if e.Payload == "" {
		e.Payload = "{}"
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO booking_events (business_id, event_type, payload, created_at)
		VALUES (?, ?, ?, ?)`,
		e.BusinessID, e.EventType, e.Payload, clock.FormatWallClock(e.CreatedAt, db.loc))
	if err != nil {
		return fmt.Errorf("record %s event: %w", e.EventType, err)
	}
	return nil
}

// AuditHandler returns a bus handler that appends each event to the audit log.
func (db *DB) AuditHandler(ctx context.Context) events.EventHandler {
	return func(e events.Event) error {
		return db.RecordEvent(ctx, AuditEntry{
			BusinessID: e.BusinessID,
			EventType:  e.Type,
			Payload:    string(e.Payload),
			CreatedAt:  e.CreatedAt,
		})
	}
}

// ListEvents returns the newest entries of a business first.
func (db *DB) ListEvents(ctx context.Context, businessID int64, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, business_id, event_type, payload, created_at
		FROM booking_events
		WHERE business_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, businessID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var (
			e       AuditEntry
			created string
		)
		if err := rows.Scan(&e.ID, &e.BusinessID, &e.EventType, &e.Payload, &created); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = clock.ParseWallClock(created, db.loc); err != nil {
			return nil, fmt.Errorf("parse created_at of event %d: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PurgeEventsBefore deletes entries older than cutoff and returns how many were removed.
func (db *DB) PurgeEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM booking_events WHERE created_at < ?`,
		clock.FormatWallClock(cutoff, db.loc))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
