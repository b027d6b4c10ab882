package database

import (
	"database/sql"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Migration is one versioned schema change. Migrations are embedded in
// the binary so the archive needs no external files.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_history_points",
		SQL: `
			CREATE TABLE IF NOT EXISTS history_points (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				vehicle_id TEXT NOT NULL,
				timestamp INTEGER NOT NULL,
				lat REAL NOT NULL,
				lng REAL NOT NULL,
				speed REAL NOT NULL DEFAULT 0,
				heading REAL NOT NULL DEFAULT 0
			);
			CREATE INDEX IF NOT EXISTS idx_history_vehicle_time
				ON history_points(vehicle_id, timestamp);
		`,
	},
	{
		Version: 2,
		Name:    "create_tire_readings",
		SQL: `
			CREATE TABLE IF NOT EXISTS tire_readings (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				point_id INTEGER NOT NULL REFERENCES history_points(id) ON DELETE CASCADE,
				tire_no INTEGER NOT NULL,
				position TEXT NOT NULL,
				temperature REAL NOT NULL,
				pressure REAL NOT NULL,
				status TEXT NOT NULL,
				battery REAL NOT NULL DEFAULT 0,
				timestamp INTEGER NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_tire_point ON tire_readings(point_id);
		`,
	},
}

// RunMigrations applies every pending migration in version order.
func RunMigrations(db *sql.DB) error {
	if err := initMigrationsTable(db); err != nil {
		return err
	}

	applied, err := appliedVersions(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if err := apply(db, m); err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"version": m.Version,
			"name":    m.Name,
		}).Info("migration applied")
	}
	return nil
}

func initMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

func appliedVersions(db *sql.DB) (map[int]bool, error) {
	rows, err := db.Query("SELECT version FROM migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func apply(db *sql.DB, m Migration) error {
	return Transaction(db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(m.SQL); err != nil {
			return fmt.Errorf("failed to execute migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec("INSERT INTO migrations (version, name) VALUES (?, ?)", m.Version, m.Name); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
		return nil
	})
}
