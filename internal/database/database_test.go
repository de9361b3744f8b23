package database

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agendei/internal/clock"
	"agendei/internal/config"
	"agendei/internal/model"
	"agendei/internal/schedule"
	"agendei/internal/slots"
)

var loc = clock.LoadLocation(clock.DefaultTimezone)

func at(day, h, m int) time.Time {
	return time.Date(2026, 3, day, h, m, 0, 0, loc)
}

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(filepath.Join(t.TempDir(), "agendei.db"), loc, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, db.UpsertBusiness(ctx, &model.Business{
		ID: 1, Name: "Barbearia", Kind: model.KindSlots, IsActive: true,
		Hours: model.Hours{OpeningTime: "09:00", ClosingTime: "19:00", SaturdayClosingTime: "14:00", WorkingDays: "Terça a Sábado"},
	}))
	require.NoError(t, db.UpsertBusiness(ctx, &model.Business{ID: 2, Name: "Outra", Kind: model.KindSlots, IsActive: true}))
	require.NoError(t, db.UpsertResource(ctx, &model.Resource{ID: 10, BusinessID: 1, Name: "João", Kind: model.ResourceProfessional, IsActive: true}))
	require.NoError(t, db.UpsertResource(ctx, &model.Resource{ID: 20, BusinessID: 2, Name: "Zé", Kind: model.ResourceProfessional, IsActive: true}))
	require.NoError(t, db.UpsertService(ctx, &model.Service{ID: 100, BusinessID: 1, Name: "Corte", DurationMinutes: 45, IsActive: true}))
	return db
}

func noConflict([]model.Booking) (bool, error) { return false, nil }

func newBooking(ref string, start time.Time, serviceID int64) *model.Booking {
	return &model.Booking{
		Reference: ref, BusinessID: 1, ResourceID: 10, ServiceID: serviceID,
		Start: start, ClientName: "Ana", ClientPhone: "5511999990000",
	}
}

func TestCatalog(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	b, err := db.GetBusiness(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Terça a Sábado", b.Hours.WorkingDays)
	assert.Equal(t, "14:00", b.Hours.SaturdayClosingTime)
	assert.True(t, b.IsActive)

	_, err = db.GetBusiness(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)

	r, err := db.GetResource(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, "João", r.Name)

	_, err = db.GetResource(ctx, 2, 10)
	assert.ErrorIs(t, err, ErrNotFound, "resources are scoped by business")

	s, err := db.GetService(ctx, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 45, s.DurationMinutes)

	resources, err := db.ListResources(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, resources, 1)

	services, err := db.ListServices(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, services)

	businesses, err := db.ListBusinesses(ctx)
	require.NoError(t, err)
	assert.Len(t, businesses, 2)
}

func TestBookingsInRange_Day(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.CreateBooking(ctx, newBooking("a", at(10, 10, 0), 100), DayRange(at(10, 0, 0), loc), noConflict))
	require.NoError(t, db.CreateBooking(ctx, newBooking("b", at(10, 14, 0), 555), DayRange(at(10, 0, 0), loc), noConflict))
	require.NoError(t, db.CreateBooking(ctx, newBooking("c", at(11, 9, 0), 100), DayRange(at(11, 0, 0), loc), noConflict))
	other := &model.Booking{Reference: "d", BusinessID: 2, ResourceID: 20, Start: at(10, 10, 0)}
	require.NoError(t, db.CreateBooking(ctx, other, DayRange(at(10, 0, 0), loc), noConflict))

	got, err := db.BookingsInRange(ctx, 1, 10, DayRange(at(10, 0, 0), loc))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Reference)
	assert.Equal(t, 45, got[0].ServiceDuration)
	assert.Equal(t, at(10, 10, 0), got[0].Start.In(loc))
	assert.Equal(t, 0, got[1].ServiceDuration, "unknown service resolves to zero")

	got, err = db.BookingsInRange(ctx, 2, 10, DayRange(at(10, 0, 0), loc))
	require.NoError(t, err)
	assert.Empty(t, got, "bookings are scoped by business")

	agenda, err := db.AgendaForDay(ctx, 1, at(10, 0, 0))
	require.NoError(t, err)
	assert.Len(t, agenda, 2)

	byRef, err := db.GetBookingByReference(ctx, 1, "c")
	require.NoError(t, err)
	assert.Equal(t, at(11, 9, 0), byRef.Start.In(loc))
}

func TestStartStoredAsLocalWallClock(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// 13:00 UTC is 10:00 in the business timezone.
	b := newBooking("utc", time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC), 100)
	require.NoError(t, db.CreateBooking(ctx, b, DayRange(at(10, 0, 0), loc), noConflict))

	var raw string
	require.NoError(t, db.QueryRow(`SELECT start_time FROM bookings WHERE id = ?`, b.ID).Scan(&raw))
	assert.Equal(t, "2026-03-10 10:00:00", raw)
}

func TestCreateBooking_RejectsConflict(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.CreateBooking(ctx, newBooking("a", at(10, 10, 0), 100), DayRange(at(10, 0, 0), loc), noConflict))

	var seen []model.Booking
	err := db.CreateBooking(ctx, newBooking("b", at(10, 10, 0), 100), DayRange(at(10, 0, 0), loc), func(existing []model.Booking) (bool, error) {
		seen = existing
		return true, nil
	})
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.Len(t, seen, 1)

	boom := errors.New("boom")
	err = db.CreateBooking(ctx, newBooking("c", at(10, 11, 0), 100), DayRange(at(10, 0, 0), loc), func([]model.Booking) (bool, error) {
		return false, boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := db.BookingsInRange(ctx, 1, 10, DayRange(at(10, 0, 0), loc))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestCreateBooking_ConcurrentOverlap(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	gen := slots.NewGenerator(schedule.NewResolver(loc, nil), slots.DefaultOptions())
	barber := &model.Resource{ID: 10, BusinessID: 1}

	attempt := func(ref string) error {
		b := newBooking(ref, at(10, 10, 0), 100)
		return db.CreateBooking(ctx, b, DayRange(b.Start, loc), func(existing []model.Booking) (bool, error) {
			return gen.HasConflict(barber, b.Start, 45, existing, 0)
		})
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, ref := range []string{"first", "second"} {
		wg.Add(1)
		go func(i int, ref string) {
			defer wg.Done()
			errs[i] = attempt(ref)
		}(i, ref)
	}
	wg.Wait()

	succeeded, taken := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrSlotTaken):
			taken++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, taken)

	got, err := db.BookingsInRange(ctx, 1, 10, DayRange(at(10, 0, 0), loc))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRescheduleAndDelete(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	b := newBooking("a", at(10, 10, 0), 100)
	require.NoError(t, db.CreateBooking(ctx, b, DayRange(b.Start, loc), noConflict))

	moved := *b
	moved.Start = at(10, 15, 30)
	var seen []model.Booking
	require.NoError(t, db.RescheduleBooking(ctx, &moved, DayRange(moved.Start, loc), func(existing []model.Booking) (bool, error) {
		seen = existing
		return false, nil
	}))
	require.Len(t, seen, 1)
	assert.Equal(t, b.ID, seen[0].ID)

	got, err := db.GetBooking(ctx, 1, b.ID)
	require.NoError(t, err)
	assert.Equal(t, at(10, 15, 30), got.Start.In(loc))

	err = db.RescheduleBooking(ctx, &moved, DayRange(moved.Start, loc), func([]model.Booking) (bool, error) { return true, nil })
	assert.ErrorIs(t, err, ErrSlotTaken)

	missing := moved
	missing.ID = 999
	err = db.RescheduleBooking(ctx, &missing, DayRange(moved.Start, loc), noConflict)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, db.DeleteBooking(ctx, 2, b.ID), ErrNotFound, "delete is scoped by business")
	require.NoError(t, db.DeleteBooking(ctx, 1, b.ID))
	assert.ErrorIs(t, db.DeleteBooking(ctx, 1, b.ID), ErrNotFound)
}

func TestSyncBusinessesFromConfig(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "businesses.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
businesses:
  - id: 1
    name: Barbearia Nova
    hours: {working_days: "Carol: Terça a Sábado (Misto)"}
    resources:
      - {id: 10, name: João}
      - {id: 11, name: Pedro}
    services:
      - {id: 101, name: Barba, duration_minutes: 20}
`), 0o600))
	cfg, err := config.LoadBusinessesConfig(path)
	require.NoError(t, err)
	require.NoError(t, db.SyncBusinessesFromConfig(ctx, cfg))

	b, err := db.GetBusiness(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Barbearia Nova", b.Name)
	assert.Equal(t, "Carol: Terça a Sábado (Misto)", b.Hours.WorkingDays)

	other, err := db.GetBusiness(ctx, 2)
	require.NoError(t, err)
	assert.False(t, other.IsActive)

	resources, err := db.ListResources(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, resources, 2)

	services, err := db.ListServices(ctx, 1)
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, int64(101), services[0].ID)

	assert.Error(t, db.SyncBusinessesFromConfig(ctx, nil))
}

func TestBackupService(t *testing.T) {
	db := setupTestDB(t)
	logger := zerolog.New(io.Discard)
	dir := filepath.Join(t.TempDir(), "backups")
	svc := NewBackupService(db, config.BackupConfig{Enabled: true, Schedule: "0 3 * * *", StoragePath: dir, RetentionDays: 7}, &logger)

	require.NoError(t, svc.PerformBackup(context.Background()))
	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)

	old := filepath.Join(dir, "backup_20200101_000000.db")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o600))
	past := time.Now().AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(old, past, past))

	assert.Equal(t, 1, svc.CleanupOldBackups())
	assert.NoFileExists(t, old)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, svc.Start(ctx))

	bad := NewBackupService(db, config.BackupConfig{Enabled: true, Schedule: "every tuesday", StoragePath: dir}, &logger)
	assert.Error(t, bad.Start(ctx))

	disabled := NewBackupService(db, config.BackupConfig{}, &logger)
	assert.NoError(t, disabled.Start(ctx))
}

func TestAuditLog(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.RecordEvent(ctx, AuditEntry{BusinessID: 1, EventType: "booking.created", Payload: `{"id":1}`, CreatedAt: at(1, 9, 0)}))
	require.NoError(t, db.RecordEvent(ctx, AuditEntry{BusinessID: 1, EventType: "booking.deleted", CreatedAt: at(20, 9, 0)}))
	require.NoError(t, db.RecordEvent(ctx, AuditEntry{BusinessID: 2, EventType: "booking.created", CreatedAt: at(20, 9, 0)}))

	entries, err := db.ListEvents(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "booking.deleted", entries[0].EventType, "newest first")
	assert.Equal(t, "{}", entries[0].Payload)
	assert.True(t, entries[1].CreatedAt.Equal(at(1, 9, 0)))

	removed, err := db.PurgeEventsBefore(ctx, at(10, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	entries, err = db.ListEvents(ctx, 1, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestBackupService_PurgeAuditLog(t *testing.T) {
	db := setupTestDB(t)
	logger := zerolog.New(io.Discard)
	ctx := context.Background()

	require.NoError(t, db.RecordEvent(ctx, AuditEntry{BusinessID: 1, EventType: "booking.created", CreatedAt: time.Now().AddDate(0, 0, -40)}))
	require.NoError(t, db.RecordEvent(ctx, AuditEntry{BusinessID: 1, EventType: "booking.created"}))

	keepAll := NewBackupService(db, config.BackupConfig{}, &logger)
	assert.Zero(t, keepAll.PurgeAuditLog(ctx))

	svc := NewBackupService(db, config.BackupConfig{AuditRetentionDays: 30}, &logger)
	assert.Equal(t, int64(1), svc.PurgeAuditLog(ctx))
}
