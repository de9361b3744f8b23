package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"agendei/internal/clock"
	"agendei/internal/model"
)

// Range is a half-open span of booking start times.
type Range struct {
	From time.Time
	To   time.Time
}

// DayRange covers the local calendar day of day.
func DayRange(day time.Time, loc *time.Location) Range {
	start := clock.StartOfDay(day, loc)
	return Range{From: start, To: start.AddDate(0, 0, 1)}
}

// ConflictCheck decides whether the booking being written collides with
// the bookings already stored in the checked range.
type ConflictCheck func(existing []model.Booking) (bool, error)

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const bookingSelect = `
	SELECT b.id, b.reference, b.business_id, b.resource_id, COALESCE(b.service_id, 0), b.start_time,
		COALESCE(s.duration_minutes, 0), b.nights, b.guests, b.client_name, b.client_phone,
		b.created_at, b.updated_at
	FROM bookings b
	LEFT JOIN services s ON s.id = b.service_id AND s.business_id = b.business_id`

func (db *DB) scanBooking(row interface{ Scan(...any) error }) (*model.Booking, error) {
	var (
		b     model.Booking
		start string
	)
	err := row.Scan(&b.ID, &b.Reference, &b.BusinessID, &b.ResourceID, &b.ServiceID, &start,
		&b.ServiceDuration, &b.Nights, &b.Guests, &b.ClientName, &b.ClientPhone,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.Start, err = clock.ParseWallClock(start, db.loc)
	if err != nil {
		return nil, fmt.Errorf("parse start of booking %d: %w", b.ID, err)
	}
	return &b, nil
}

func (db *DB) queryBookings(ctx context.Context, q querier, query string, args ...any) ([]model.Booking, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		b, err := db.scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (db *DB) bookingsInRange(ctx context.Context, q querier, businessID, resourceID int64, r Range) ([]model.Booking, error) {
	bookings, err := db.queryBookings(ctx, q, bookingSelect+`
		WHERE b.business_id = ? AND b.resource_id = ? AND b.start_time >= ? AND b.start_time < ?
		ORDER BY b.start_time`,
		businessID, resourceID, clock.FormatWallClock(r.From, db.loc), clock.FormatWallClock(r.To, db.loc))
	if err != nil {
		return nil, fmt.Errorf("query bookings of resource %d: %w", resourceID, err)
	}
	return bookings, nil
}

// BookingsInRange returns the bookings of a resource starting inside r. Each
// carries its service duration, 0 when the service is missing.
func (db *DB) BookingsInRange(ctx context.Context, businessID, resourceID int64, r Range) ([]model.Booking, error) {
	return db.bookingsInRange(ctx, db, businessID, resourceID, r)
}

// AgendaForDay returns every booking of a business starting on the local day.
func (db *DB) AgendaForDay(ctx context.Context, businessID int64, day time.Time) ([]model.Booking, error) {
	r := DayRange(day, db.loc)
	bookings, err := db.queryBookings(ctx, db, bookingSelect+`
		WHERE b.business_id = ? AND b.start_time >= ? AND b.start_time < ?
		ORDER BY b.resource_id, b.start_time`,
		businessID, clock.FormatWallClock(r.From, db.loc), clock.FormatWallClock(r.To, db.loc))
	if err != nil {
		return nil, fmt.Errorf("query agenda of business %d: %w", businessID, err)
	}
	return bookings, nil
}

// GetBooking returns a booking scoped to its business.
func (db *DB) GetBooking(ctx context.Context, businessID, id int64) (*model.Booking, error) {
	return db.getBooking(ctx, db, businessID, id)
}

func (db *DB) getBooking(ctx context.Context, q querier, businessID, id int64) (*model.Booking, error) {
	row := q.QueryRowContext(ctx, bookingSelect+` WHERE b.business_id = ? AND b.id = ?`, businessID, id)
	b, err := db.scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("booking %d of business %d: %w", id, businessID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get booking %d: %w", id, err)
	}
	return b, nil
}

// GetBookingByReference looks a booking up by its public reference.
func (db *DB) GetBookingByReference(ctx context.Context, businessID int64, reference string) (*model.Booking, error) {
	row := db.QueryRowContext(ctx, bookingSelect+` WHERE b.business_id = ? AND b.reference = ?`, businessID, reference)
	b, err := db.scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("booking %s: %w", reference, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get booking %s: %w", reference, err)
	}
	return b, nil
}

// CreateBooking inserts b after check accepts the bookings already stored in
// scope. Check and insert share one write transaction, so of two racing
// overlapping commits the second sees the first and gets ErrSlotTaken.
func (db *DB) CreateBooking(ctx context.Context, b *model.Booking, scope Range, check ConflictCheck) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := db.bookingsInRange(ctx, tx, b.BusinessID, b.ResourceID, scope)
	if err != nil {
		return err
	}
	conflict, err := check(existing)
	if err != nil {
		return err
	}
	if conflict {
		return ErrSlotTaken
	}

	now := time.Now()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO bookings (reference, business_id, resource_id, service_id, start_time, nights, guests,
			client_name, client_phone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Reference, b.BusinessID, b.ResourceID, nullableID(b.ServiceID), clock.FormatWallClock(b.Start, db.loc),
		b.Nights, b.Guests, b.ClientName, b.ClientPhone, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get booking id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit booking: %w", err)
	}
	b.ID = id
	b.CreatedAt = now
	b.UpdatedAt = now
	return nil
}

// RescheduleBooking moves an existing booking after check accepts the
// bookings stored in scope. The check receives the booking's own row too;
// callers skip it by id.
func (db *DB) RescheduleBooking(ctx context.Context, b *model.Booking, scope Range, check ConflictCheck) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := db.getBooking(ctx, tx, b.BusinessID, b.ID); err != nil {
		return err
	}

	existing, err := db.bookingsInRange(ctx, tx, b.BusinessID, b.ResourceID, scope)
	if err != nil {
		return err
	}
	conflict, err := check(existing)
	if err != nil {
		return err
	}
	if conflict {
		return ErrSlotTaken
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx, `
		UPDATE bookings SET resource_id = ?, service_id = ?, start_time = ?, nights = ?, guests = ?, updated_at = ?
		WHERE id = ? AND business_id = ?`,
		b.ResourceID, nullableID(b.ServiceID), clock.FormatWallClock(b.Start, db.loc), b.Nights, b.Guests, now,
		b.ID, b.BusinessID,
	)
	if err != nil {
		return fmt.Errorf("update booking %d: %w", b.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit booking: %w", err)
	}
	b.UpdatedAt = now
	return nil
}

// DeleteBooking removes a booking of the business.
func (db *DB) DeleteBooking(ctx context.Context, businessID, id int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ? AND business_id = ?`, id, businessID)
	if err != nil {
		return fmt.Errorf("delete booking %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete booking %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("booking %d of business %d: %w", id, businessID, ErrNotFound)
	}
	return nil
}

func nullableID(id int64) any {
	if id <= 0 {
		return nil
	}
	return id
}
