package postgres

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/sipat/crew-scheduler/pkg/core/model"
)

// GetRouteHistory retrieves the routes with a service date in [from, to)
func (q *queries) GetRouteHistory(ctx context.Context, from, to time.Time) ([]model.RouteRecord, error) {
	rows, err := q.q.Query(ctx, `
		SELECT id, driver_id, COALESCE(shift_id, ''), service_date, start_at, end_at, kind
		FROM route_history
		WHERE service_date >= $1 AND service_date < $2
		ORDER BY service_date, start_at
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query route history: %w", err)
	}
	defer rows.Close()

	var records []model.RouteRecord
	for rows.Next() {
		var r model.RouteRecord
		var kind string
		if err := rows.Scan(&r.ID, &r.DriverID, &r.ShiftID, &r.Date, &r.Start, &r.End, &kind); err != nil {
			return nil, fmt.Errorf("failed to scan route record: %w", err)
		}
		r.Kind = model.RouteKind(kind)
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating route history: %w", err)
	}

	return records, nil
}

// InsertRouteRecord inserts a worked route
func (q *queries) InsertRouteRecord(ctx context.Context, r model.RouteRecord) error {
	var shiftID *string
	if r.ShiftID != "" {
		shiftID = &r.ShiftID
	}
	_, err := q.q.Exec(ctx, `
		INSERT INTO route_history (id, driver_id, shift_id, service_date, start_at, end_at, kind)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.ID, r.DriverID, shiftID, r.Date, r.Start.UTC(), r.End.UTC(), string(r.Kind))
	if err != nil {
		return fmt.Errorf("failed to insert route record: %w", err)
	}
	return nil
}

// GetRecentEfficiencies returns the realized efficiencies of the driver's last completed
// shifts, oldest first
func (q *queries) GetRecentEfficiencies(ctx context.Context, driverID string, limit int) ([]float64, error) {
	rows, err := q.q.Query(ctx, `
		SELECT realized_efficiency
		FROM shifts
		WHERE driver_id = $1 AND state = $2 AND realized_efficiency IS NOT NULL
		ORDER BY end_at DESC
		LIMIT $3
	`, driverID, string(model.ShiftCompleted), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent efficiencies: %w", err)
	}
	defer rows.Close()

	var efficiencies []float64
	for rows.Next() {
		var e float64
		if err := rows.Scan(&e); err != nil {
			return nil, fmt.Errorf("failed to scan efficiency: %w", err)
		}
		efficiencies = append(efficiencies, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating efficiencies: %w", err)
	}

	slices.Reverse(efficiencies)
	return efficiencies, nil
}
