package database

import (
	"context"
	"fmt"
	"time"

	"agendei/internal/config"
)

// SyncBusinessesFromConfig applies businesses.yaml to the database.
// It upserts businesses with their resources and services and marks rows
// missing from the config inactive. Bookings are never touched.
func (db *DB) SyncBusinessesFromConfig(ctx context.Context, cfg *config.BusinessesConfig) error {
	if cfg == nil {
		return fmt.Errorf("businesses config is nil")
	}

	seen := map[string]map[int64]struct{}{
		"businesses": {},
		"resources":  {},
		"services":   {},
	}

	for i := range cfg.Businesses {
		business, resources, services := cfg.Businesses[i].Model()
		if err := db.UpsertBusiness(ctx, &business); err != nil {
			return err
		}
		seen["businesses"][business.ID] = struct{}{}

		for j := range resources {
			if err := db.UpsertResource(ctx, &resources[j]); err != nil {
				return err
			}
			seen["resources"][resources[j].ID] = struct{}{}
		}
		for j := range services {
			if err := db.UpsertService(ctx, &services[j]); err != nil {
				return err
			}
			seen["services"][services[j].ID] = struct{}{}
		}
	}

	for _, table := range []string{"businesses", "resources", "services"} {
		if err := db.deactivateMissing(ctx, table, seen[table]); err != nil {
			return err
		}
	}

	db.logger.Info().Int("businesses", len(cfg.Businesses)).Msg("Catalog synced from config")
	return nil
}

// deactivateMissing marks rows that disappeared from config inactive.
func (db *DB) deactivateMissing(ctx context.Context, table string, seen map[int64]struct{}) error {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE is_active = 1`, table))
	if err != nil {
		return err
	}
	var stale []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		if _, ok := seen[id]; !ok {
			stale = append(stale, id)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	now := time.Now()
	for _, id := range stale {
		if _, err := db.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET is_active = 0, updated_at = ? WHERE id = ?`, table), now, id); err != nil {
			return fmt.Errorf("deactivate %s %d: %w", table, id, err)
		}
	}
	return nil
}
