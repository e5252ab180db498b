package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sipat/crew-scheduler/pkg/core/model"
	"github.com/sipat/crew-scheduler/pkg/db"
)

// InsertSchedule inserts a schedule header without its shifts
func (q *queries) InsertSchedule(ctx context.Context, s *model.Schedule) error {
	_, err := q.q.Exec(ctx, `
		INSERT INTO schedules (id, run_id, service_date, run_type, state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.ID, s.RunID, s.ServiceDate, string(s.RunType), string(s.State), s.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert schedule: %w", err)
	}
	return nil
}

// FinalizeSchedule stores the state, generation time and metrics of a schedule
func (q *queries) FinalizeSchedule(ctx context.Context, s *model.Schedule) error {
	var metrics []byte
	if s.Metrics != nil {
		var err error
		metrics, err = json.Marshal(s.Metrics)
		if err != nil {
			return fmt.Errorf("failed to encode schedule metrics: %w", err)
		}
	}

	tag, err := q.q.Exec(ctx, `
		UPDATE schedules SET state = $2, generated_at = $3, metrics = $4 WHERE id = $1
	`, s.ID, string(s.State), s.GeneratedAt, metrics)
	if err != nil {
		return fmt.Errorf("failed to finalize schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("schedule %s: %w", s.ID, db.ErrNotFound)
	}
	return nil
}

// InsertShift inserts one shift row of a schedule
func (q *queries) InsertShift(ctx context.Context, s *model.Shift) error {
	_, err := q.q.Exec(ctx, `
		INSERT INTO shifts (id, schedule_id, position, code, service_date, start_at, end_at,
			service_type, specialization, origin, destination, route_kind, driver_id, state,
			score, source, realized_efficiency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, s.ID, s.ScheduleID, s.Position, s.Code, s.Date, s.Start.UTC(), s.End.UTC(),
		s.ServiceType, s.Specialization, s.Origin, s.Destination, string(s.RouteKind),
		s.DriverID, string(s.State), s.Score, string(s.Source), s.RealizedEfficiency)
	if err != nil {
		return fmt.Errorf("failed to insert shift %s: %w", s.Code, err)
	}
	return nil
}

// UpdateShift writes the assignment and lifecycle fields of a shift
func (q *queries) UpdateShift(ctx context.Context, s *model.Shift) error {
	tag, err := q.q.Exec(ctx, `
		UPDATE shifts
		SET driver_id = $2, state = $3, score = $4, source = $5, realized_efficiency = $6
		WHERE id = $1
	`, s.ID, s.DriverID, string(s.State), s.Score, string(s.Source), s.RealizedEfficiency)
	if err != nil {
		return fmt.Errorf("failed to update shift %s: %w", s.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("shift %s: %w", s.ID, db.ErrNotFound)
	}
	return nil
}

// GetShift retrieves one shift by id
func (q *queries) GetShift(ctx context.Context, id string) (*model.Shift, error) {
	var s model.Shift
	var routeKind, state, source string
	err := q.q.QueryRow(ctx, `
		SELECT id, schedule_id, position, code, service_date, start_at, end_at, service_type,
			specialization, origin, destination, route_kind, driver_id, state, score, source,
			realized_efficiency
		FROM shifts WHERE id = $1
	`, id).Scan(&s.ID, &s.ScheduleID, &s.Position, &s.Code, &s.Date, &s.Start, &s.End,
		&s.ServiceType, &s.Specialization, &s.Origin, &s.Destination, &routeKind, &s.DriverID,
		&state, &s.Score, &source, &s.RealizedEfficiency)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("shift %s: %w", id, db.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shift %s: %w", id, err)
	}
	s.RouteKind = model.RouteKind(routeKind)
	s.State = model.ShiftState(state)
	s.Source = model.AssignmentSource(source)
	return &s, nil
}
