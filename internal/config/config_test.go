package config

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultsAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AGENDEI_REDIS_PASSWORD", "s3cret")
	path := writeFile(t, "config.yaml", `
database:
  path: `+filepath.Join(dir, "db", "agendei.db")+`
redis:
  address: localhost:6379
  password: ${AGENDEI_REDIS_PASSWORD}
booking:
  lookahead_minutes: 20
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Redis.Password)
	assert.Equal(t, "America/Sao_Paulo", cfg.App.Timezone)
	assert.Equal(t, 30*time.Minute, cfg.SlotStep())
	assert.Equal(t, 20*time.Minute, cfg.Lookahead())
	assert.Equal(t, 30*time.Minute, cfg.FallbackDuration())
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL())
	assert.Equal(t, 60*24*time.Hour, cfg.MaxAdvance())
	assert.Equal(t, "0 3 * * *", cfg.Backup.Schedule)
	assert.Equal(t, 30*time.Second, cfg.BusinessesReloadInterval())
	assert.DirExists(t, filepath.Join(dir, "db"))
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.yaml", "database: [unclosed"))
	assert.Error(t, err)
}

const catalog = `
defaults:
  hours:
    opening_time: "09:00"
    closing_time: "19:00"
    saturday_closing_time: "14:00"
    working_days: "Terça a Sábado"
    holidays: ["2026-12-25"]
presets:
  "Studio: Quarta a Domingo":
    - {closed: true}
    - {closed: true}
    - {open: "10:00", close: "18:00"}
    - {open: "10:00", close: "18:00"}
    - {open: "10:00", close: "18:00"}
    - {open: "10:00", close: "16:00"}
    - {open: "10:00", close: "14:00"}
businesses:
  - id: 1
    name: Barbearia do João
    resources:
      - {id: 10, name: João}
      - {id: 11, name: Pedro, is_active: false}
    services:
      - {id: 100, name: Corte, duration_minutes: 30, price_cents: 4500}
      - {id: 101, name: Barba, duration_minutes: 20, price_cents: 3000}
  - id: 2
    name: Pousada Mar Azul
    kind: stay
    stay:
      min_stay_nights: 2
    resources:
      - {id: 20, name: Suíte 1, capacity: 3}
`

func TestLoadBusinessesConfig(t *testing.T) {
	cfg, err := LoadBusinessesConfig(writeFile(t, "businesses.yaml", catalog))
	require.NoError(t, err)
	require.Len(t, cfg.Businesses, 2)

	barber := cfg.Businesses[0]
	assert.Equal(t, "slots", barber.Kind)
	assert.Equal(t, "Terça a Sábado", barber.Hours.WorkingDays)
	assert.Equal(t, "14:00", barber.Hours.SaturdayClosingTime)
	assert.Equal(t, []string{"2026-12-25"}, barber.Hours.Holidays)

	weekly, ok := cfg.Presets["Studio: Quarta a Domingo"]
	require.True(t, ok)
	assert.True(t, weekly[0].Closed)
	assert.Equal(t, "14:00", weekly[6].Close)

	business, resources, services := barber.Model()
	assert.True(t, business.IsActive)
	require.Len(t, resources, 2)
	assert.True(t, resources[0].IsActive)
	assert.False(t, resources[1].IsActive)
	assert.Equal(t, "professional", string(resources[0].Kind))
	assert.Equal(t, int64(1), services[1].BusinessID)

	_, rooms, _ := cfg.Businesses[1].Model()
	assert.Equal(t, "room", string(rooms[0].Kind))
	assert.Equal(t, 3, rooms[0].Capacity)
	assert.Empty(t, cfg.Warnings())
}

func TestBusinessesConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", `businesses: []`},
		{"duplicate id", `
businesses:
  - {id: 1, name: A}
  - {id: 1, name: B}`},
		{"missing name", `
businesses:
  - {id: 1}`},
		{"unknown kind", `
businesses:
  - {id: 1, name: A, kind: hourly}`},
		{"bad holiday", `
businesses:
  - id: 1
    name: A
    hours: {holidays: ["25/12/2026"]}`},
		{"duplicate resource", `
businesses:
  - id: 1
    name: A
    resources: [{id: 5, name: X}, {id: 5, name: Y}]`},
		{"zero duration service", `
businesses:
  - id: 1
    name: A
    services: [{id: 5, name: Corte}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBusinessesConfig(writeFile(t, "businesses.yaml", tt.content))
			assert.Error(t, err)
		})
	}
}

func TestBusinessesConfig_MalformedHoursAreWarnings(t *testing.T) {
	cfg, err := LoadBusinessesConfig(writeFile(t, "businesses.yaml", `
businesses:
  - id: 1
    name: A
    hours: {opening_time: "9h", closing_time: "19:00", working_days: "Segunda a Sexta"}
`))
	require.NoError(t, err)
	warnings := cfg.Warnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "opening_time")
}

func TestWatchBusinesses(t *testing.T) {
	path := writeFile(t, "businesses.yaml", catalog)
	logger := zerolog.New(io.Discard)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	var last atomic.Pointer[BusinessesConfig]
	err := WatchBusinesses(ctx, path, 10*time.Millisecond, &logger, func(cfg *BusinessesConfig) {
		calls.Add(1)
		last.Store(cfg)
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	updated := catalog + `
  - id: 3
    name: Salão Bela
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	assert.Eventually(t, func() bool {
		cfg := last.Load()
		return calls.Load() == 2 && cfg != nil && len(cfg.Businesses) == 3
	}, time.Second, 10*time.Millisecond)
}

func newTestWatcher(t *testing.T, path string) (*businessesWatcher, *[]*BusinessesConfig) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	var got []*BusinessesConfig
	w := &businessesWatcher{path: path, logger: &logger, onUpdate: func(cfg *BusinessesConfig) {
		got = append(got, cfg)
	}}
	require.NoError(t, w.init())
	require.Len(t, got, 1)
	return w, &got
}

func touch(t *testing.T, path string, offset time.Duration) {
	t.Helper()
	ts := time.Now().Add(offset)
	require.NoError(t, os.Chtimes(path, ts, ts))
}

func TestBusinessesWatcher_WaitsForFileToSettle(t *testing.T) {
	path := writeFile(t, "businesses.yaml", catalog)
	w, got := newTestWatcher(t, path)

	require.NoError(t, os.WriteFile(path, []byte(catalog+"\n  - id: 3\n    name: Salão Bela\n"), 0o600))
	touch(t, path, time.Minute)

	w.tick()
	assert.Len(t, *got, 1, "first tick only notes the new modtime")

	w.tick()
	require.Len(t, *got, 2)
	assert.Len(t, (*got)[1].Businesses, 3)

	w.tick()
	assert.Len(t, *got, 2)
}

func TestBusinessesWatcher_TouchWithoutChangeSkipsReload(t *testing.T) {
	path := writeFile(t, "businesses.yaml", catalog)
	w, got := newTestWatcher(t, path)

	touch(t, path, time.Minute)
	w.tick()
	w.tick()

	assert.Len(t, *got, 1)
}

func TestBusinessesWatcher_InvalidFileKeepsPrevious(t *testing.T) {
	path := writeFile(t, "businesses.yaml", catalog)
	w, got := newTestWatcher(t, path)

	require.NoError(t, os.WriteFile(path, []byte("businesses: [\n"), 0o600))
	touch(t, path, time.Minute)
	w.tick()
	w.tick()
	assert.Len(t, *got, 1)

	require.NoError(t, os.WriteFile(path, []byte(catalog+"\n  - id: 3\n    name: Salão Bela\n"), 0o600))
	touch(t, path, 2*time.Minute)
	w.tick()
	w.tick()
	require.Len(t, *got, 2)
	assert.Len(t, (*got)[1].Businesses, 3)
}
