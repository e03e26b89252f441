// Package seed performs idempotent startup seeding: the default-rate
// settings always exist, and a small demo catalog can be inserted for
// development databases.
package seed

import (
	"database/sql"
	"fmt"
)

// defaultSettings are created only when the key is absent, so operator
// edits survive restarts.
var defaultSettings = map[string]string{
	"energy_cost_per_kwh": "0.15",
	"labor_cost_per_hour": "0",
	"failure_rate":        "0",
	"markup_default_rate": "0",
	"consumables_default": "0",
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
}

// Run executes the startup seed in an idempotent way.
func Run(db *sql.DB, demo bool) (Stats, error) {
	tx, err := db.Begin()
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	if err := ensureSettings(tx, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if demo {
		if err := ensureDemoCatalog(tx, &stats); err != nil {
			_ = tx.Rollback()
			return Stats{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func ensureSettings(tx *sql.Tx, stats *Stats) error {
	for key, value := range defaultSettings {
		res, err := tx.Exec(`
			INSERT INTO setting (key, value)
			VALUES (?, ?)
			ON CONFLICT (key) DO NOTHING
		`, key, value)
		if err != nil {
			return fmt.Errorf("insert default setting %q: %w", key, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("default setting %q rows affected: %w", key, err)
		}
		stats.Inserts += int(affected)
	}
	return nil
}

func ensureDemoCatalog(tx *sql.Tx, stats *Stats) error {
	var printers int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM printer`).Scan(&printers); err != nil {
		return fmt.Errorf("count printers: %w", err)
	}
	if printers > 0 {
		return nil
	}

	if _, err := tx.Exec(`
		INSERT INTO printer (name, power_watts, depreciation_cost_per_hour, comment)
		VALUES ('Demo printer', 200, 0.5, 'seeded demo data')
	`); err != nil {
		return fmt.Errorf("insert demo printer: %w", err)
	}
	stats.Inserts++

	res, err := tx.Exec(`INSERT INTO vendor (name, comment) VALUES ('Demo vendor', 'seeded demo data')`)
	if err != nil {
		return fmt.Errorf("insert demo vendor: %w", err)
	}
	vendorID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("demo vendor insert id: %w", err)
	}
	stats.Inserts++

	if _, err := tx.Exec(`
		INSERT INTO filament (name, vendor_id, material, price, weight, comment)
		VALUES ('Demo PLA Black', ?, 'PLA', 20, 1000, 'seeded demo data')
	`, vendorID); err != nil {
		return fmt.Errorf("insert demo filament: %w", err)
	}
	stats.Inserts++

	return nil
}
