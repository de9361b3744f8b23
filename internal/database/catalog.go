package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"agendei/internal/model"
)

// UpsertBusiness inserts or updates a business, preserving created_at.
func (db *DB) UpsertBusiness(ctx context.Context, b *model.Business) error {
	hours, err := json.Marshal(b.Hours)
	if err != nil {
		return fmt.Errorf("encode hours: %w", err)
	}
	stay, err := json.Marshal(b.Stay)
	if err != nil {
		return fmt.Errorf("encode stay policy: %w", err)
	}

	now := time.Now()
	_, err = db.ExecContext(ctx, `
		INSERT INTO businesses (id, name, kind, hours, stay, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			hours = excluded.hours,
			stay = excluded.stay,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`,
		b.ID, b.Name, string(b.Kind), string(hours), string(stay), boolToInt(b.IsActive), now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert business %d: %w", b.ID, err)
	}
	return nil
}

const businessColumns = `id, name, kind, hours, stay, is_active, created_at, updated_at`

func scanBusiness(row interface{ Scan(...any) error }) (*model.Business, error) {
	var (
		b           model.Business
		kind        string
		hours, stay string
	)
	if err := row.Scan(&b.ID, &b.Name, &kind, &hours, &stay, &b.IsActive, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Kind = model.BusinessKind(kind)
	if err := json.Unmarshal([]byte(hours), &b.Hours); err != nil {
		return nil, fmt.Errorf("decode hours of business %d: %w", b.ID, err)
	}
	if err := json.Unmarshal([]byte(stay), &b.Stay); err != nil {
		return nil, fmt.Errorf("decode stay policy of business %d: %w", b.ID, err)
	}
	return &b, nil
}

// GetBusiness returns a business by id.
func (db *DB) GetBusiness(ctx context.Context, id int64) (*model.Business, error) {
	row := db.QueryRowContext(ctx, `SELECT `+businessColumns+` FROM businesses WHERE id = ?`, id)
	b, err := scanBusiness(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("business %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get business %d: %w", id, err)
	}
	return b, nil
}

// ListBusinesses returns all active businesses.
func (db *DB) ListBusinesses(ctx context.Context) ([]model.Business, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+businessColumns+` FROM businesses WHERE is_active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list businesses: %w", err)
	}
	defer rows.Close()

	var out []model.Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// UpsertResource inserts or updates a resource.
func (db *DB) UpsertResource(ctx context.Context, r *model.Resource) error {
	now := time.Now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO resources (id, business_id, name, kind, capacity, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			business_id = excluded.business_id,
			name = excluded.name,
			kind = excluded.kind,
			capacity = excluded.capacity,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`,
		r.ID, r.BusinessID, r.Name, string(r.Kind), r.Capacity, boolToInt(r.IsActive), now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert resource %d: %w", r.ID, err)
	}
	return nil
}

const resourceColumns = `id, business_id, name, kind, capacity, is_active`

func scanResource(row interface{ Scan(...any) error }) (*model.Resource, error) {
	var (
		r    model.Resource
		kind string
	)
	if err := row.Scan(&r.ID, &r.BusinessID, &r.Name, &kind, &r.Capacity, &r.IsActive); err != nil {
		return nil, err
	}
	r.Kind = model.ResourceKind(kind)
	return &r, nil
}

// GetResource returns a resource scoped to its business.
func (db *DB) GetResource(ctx context.Context, businessID, id int64) (*model.Resource, error) {
	row := db.QueryRowContext(ctx, `SELECT `+resourceColumns+` FROM resources WHERE business_id = ? AND id = ?`, businessID, id)
	r, err := scanResource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("resource %d of business %d: %w", id, businessID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get resource %d: %w", id, err)
	}
	return r, nil
}

// ListResources returns the active resources of a business.
func (db *DB) ListResources(ctx context.Context, businessID int64) ([]model.Resource, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+resourceColumns+` FROM resources
		WHERE business_id = ? AND is_active = 1 ORDER BY id`, businessID)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()

	var out []model.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// UpsertService inserts or updates a service.
func (db *DB) UpsertService(ctx context.Context, s *model.Service) error {
	now := time.Now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO services (id, business_id, name, duration_minutes, price_cents, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			business_id = excluded.business_id,
			name = excluded.name,
			duration_minutes = excluded.duration_minutes,
			price_cents = excluded.price_cents,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`,
		s.ID, s.BusinessID, s.Name, s.DurationMinutes, s.PriceCents, boolToInt(s.IsActive), now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert service %d: %w", s.ID, err)
	}
	return nil
}

const serviceColumns = `id, business_id, name, duration_minutes, price_cents, is_active`

func scanService(row interface{ Scan(...any) error }) (*model.Service, error) {
	var s model.Service
	if err := row.Scan(&s.ID, &s.BusinessID, &s.Name, &s.DurationMinutes, &s.PriceCents, &s.IsActive); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetService returns a service scoped to its business.
func (db *DB) GetService(ctx context.Context, businessID, id int64) (*model.Service, error) {
	row := db.QueryRowContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE business_id = ? AND id = ?`, businessID, id)
	s, err := scanService(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("service %d of business %d: %w", id, businessID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get service %d: %w", id, err)
	}
	return s, nil
}

// ListServices returns the active services of a business.
func (db *DB) ListServices(ctx context.Context, businessID int64) ([]model.Service, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+serviceColumns+` FROM services
		WHERE business_id = ? AND is_active = 1 ORDER BY id`, businessID)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var out []model.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}
