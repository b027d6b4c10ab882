// Package repository provides database access for the telemetry
// archive.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/openfleet/tracking-backend-go/internal/database"
	"github.com/openfleet/tracking-backend-go/internal/models"
)

// HistoryRepository handles database operations for archived history
// points and their tire readings.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// InsertPoint stores one history point with its tire readings in a
// single transaction.
func (r *HistoryRepository) InsertPoint(ctx context.Context, p models.HistoryPoint) error {
	return database.Transaction(r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO history_points (vehicle_id, timestamp, lat, lng, speed, heading)
			VALUES (?, ?, ?, ?, ?, ?)`,
			p.VehicleID, p.Timestamp.UnixMilli(), p.Location.Lat, p.Location.Lng, p.Speed, p.Heading,
		)
		if err != nil {
			return fmt.Errorf("failed to insert history point: %w", err)
		}
		pointID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get point id: %w", err)
		}

		for _, tire := range p.Tires {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO tire_readings (point_id, tire_no, position, temperature, pressure, status, battery, timestamp)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				pointID, tire.TireNo, tire.Position, tire.Temperature, tire.Pressure,
				tire.Status, tire.Battery, tire.Timestamp.UnixMilli(),
			)
			if err != nil {
				return fmt.Errorf("failed to insert tire reading: %w", err)
			}
		}
		return nil
	})
}

// GetPoints retrieves history points for one vehicle inside the window,
// ascending by timestamp, bounded by limit.
func (r *HistoryRepository) GetPoints(ctx context.Context, vehicleID string, window models.TimeWindow, limit int) ([]models.HistoryPoint, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, vehicle_id, timestamp, lat, lng, speed, heading
		FROM history_points
		WHERE vehicle_id = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
		LIMIT ?`,
		vehicleID, window.Start.UnixMilli(), window.End.UnixMilli(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history points: %w", err)
	}
	defer rows.Close()

	var points []models.HistoryPoint
	var ids []int64
	for rows.Next() {
		var id int64
		var p models.HistoryPoint
		var ts int64
		if err := rows.Scan(&id, &p.VehicleID, &ts, &p.Location.Lat, &p.Location.Lng, &p.Speed, &p.Heading); err != nil {
			return nil, fmt.Errorf("failed to scan history point: %w", err)
		}
		p.Timestamp = time.UnixMilli(ts).UTC()
		points = append(points, p)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history points: %w", err)
	}

	for i, id := range ids {
		tires, err := r.tiresForPoint(ctx, id)
		if err != nil {
			return nil, err
		}
		points[i].Tires = tires
	}
	return points, nil
}

func (r *HistoryRepository) tiresForPoint(ctx context.Context, pointID int64) ([]models.TireReading, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT tire_no, position, temperature, pressure, status, battery, timestamp
		FROM tire_readings
		WHERE point_id = ?
		ORDER BY tire_no ASC`,
		pointID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query tire readings: %w", err)
	}
	defer rows.Close()

	var tires []models.TireReading
	for rows.Next() {
		var t models.TireReading
		var ts int64
		if err := rows.Scan(&t.TireNo, &t.Position, &t.Temperature, &t.Pressure, &t.Status, &t.Battery, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan tire reading: %w", err)
		}
		t.Timestamp = time.UnixMilli(ts).UTC()
		tires = append(tires, t)
	}
	return tires, rows.Err()
}

// TireStats computes per-tire aggregates for one vehicle inside the
// window.
func (r *HistoryRepository) TireStats(ctx context.Context, vehicleID string, window models.TimeWindow) ([]models.TireStat, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.tire_no, t.position,
			AVG(t.temperature), MIN(t.temperature), MAX(t.temperature),
			AVG(t.pressure), MIN(t.pressure), MAX(t.pressure),
			COUNT(*),
			SUM(CASE WHEN t.status LIKE 'critical%' THEN 1 ELSE 0 END),
			SUM(CASE WHEN t.status = 'warning' THEN 1 ELSE 0 END)
		FROM tire_readings t
		JOIN history_points p ON p.id = t.point_id
		WHERE p.vehicle_id = ? AND p.timestamp >= ? AND p.timestamp <= ?
		GROUP BY t.tire_no, t.position
		ORDER BY t.tire_no ASC`,
		vehicleID, window.Start.UnixMilli(), window.End.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query tire stats: %w", err)
	}
	defer rows.Close()

	var stats []models.TireStat
	for rows.Next() {
		var s models.TireStat
		if err := rows.Scan(&s.TireNo, &s.Position,
			&s.TempAvg, &s.TempMin, &s.TempMax,
			&s.PressureAvg, &s.PressureMin, &s.PressureMax,
			&s.Readings, &s.CriticalAlerts, &s.WarningAlerts,
		); err != nil {
			return nil, fmt.Errorf("failed to scan tire stat: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// CountPoints reports how many points are archived for a vehicle.
func (r *HistoryRepository) CountPoints(ctx context.Context, vehicleID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM history_points WHERE vehicle_id = ?", vehicleID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count history points: %w", err)
	}
	return n, nil
}

// Prune deletes archived points older than the cutoff. Tire readings
// cascade.
func (r *HistoryRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM history_points WHERE timestamp < ?", cutoff.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history points: %w", err)
	}
	return res.RowsAffected()
}
