package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"agendei/internal/metrics"
)

// WatchBusinesses loads businesses.yaml, calls onUpdate with it and then polls
// the file every interval. A change is applied once the file has stopped
// changing for one full tick, and only when its content actually differs.
// A file that fails to parse is logged and the previous catalog stays live.
func WatchBusinesses(ctx context.Context, path string, interval time.Duration, logger *zerolog.Logger, onUpdate func(*BusinessesConfig)) error {
	if path == "" {
		path = "configs/businesses.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	w := &businessesWatcher{path: path, logger: logger, onUpdate: onUpdate}
	if err := w.init(); err != nil {
		return err
	}

	go w.run(ctx, interval)
	return nil
}

type businessesWatcher struct {
	path     string
	logger   *zerolog.Logger
	onUpdate func(*BusinessesConfig)

	applied [sha256.Size]byte
	lastMod time.Time
	// seenMod is the modtime observed on the previous tick; a reload waits
	// until two consecutive ticks agree.
	seenMod time.Time
}

func (w *businessesWatcher) init() error {
	info, err := os.Stat(w.path)
	if err != nil {
		return fmt.Errorf("stat businesses config: %w", err)
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return fmt.Errorf("read businesses config: %w", err)
	}
	cfg, err := parseBusinessesConfig(data)
	if err != nil {
		return err
	}

	w.applied = sha256.Sum256(data)
	w.lastMod = info.ModTime()
	w.seenMod = w.lastMod
	if w.onUpdate != nil {
		w.onUpdate(cfg)
	}
	return nil
}

func (w *businessesWatcher) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick()
		}
	}
}

func (w *businessesWatcher) tick() {
	info, err := os.Stat(w.path)
	if err != nil {
		w.logger.Debug().Err(err).Str("path", w.path).Msg("Businesses config stat failed")
		return
	}
	mod := info.ModTime()
	if mod.Equal(w.lastMod) {
		w.seenMod = mod
		return
	}
	if !mod.Equal(w.seenMod) {
		// still being written
		w.seenMod = mod
		return
	}
	w.lastMod = mod
	w.reload()
}

func (w *businessesWatcher) reload() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		metrics.IncConfigReload("error")
		w.logger.Error().Err(err).Str("path", w.path).Msg("Businesses config reload failed, keeping previous")
		return
	}
	sum := sha256.Sum256(data)
	if bytes.Equal(sum[:], w.applied[:]) {
		metrics.IncConfigReload("unchanged")
		return
	}
	cfg, err := parseBusinessesConfig(data)
	if err != nil {
		metrics.IncConfigReload("error")
		w.logger.Error().Err(err).Str("path", w.path).Msg("Businesses config reload failed, keeping previous")
		return
	}

	w.applied = sum
	metrics.IncConfigReload("ok")
	w.logger.Info().Int("businesses", len(cfg.Businesses)).Msg("Businesses config reloaded")
	if w.onUpdate != nil {
		w.onUpdate(cfg)
	}
}
