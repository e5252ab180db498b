package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sipat/crew-scheduler/pkg/core/model"
	"github.com/sipat/crew-scheduler/pkg/db"
)

const driverColumns = `id, code, full_name, email, hire_date, state, efficiency, punctuality,
	consecutive_days_worked, authorized_services, night_authorized, license_valid,
	suspended_until, origin`

func scanDriver(row pgx.Row) (*model.Driver, error) {
	var d model.Driver
	var state string
	err := row.Scan(&d.ID, &d.Code, &d.FullName, &d.Email, &d.HireDate, &state, &d.Efficiency,
		&d.Punctuality, &d.ConsecutiveDaysWorked, &d.AuthorizedServices, &d.NightAuthorized,
		&d.LicenseValid, &d.SuspendedUntil, &d.Origin)
	if err != nil {
		return nil, err
	}
	d.State = model.DriverState(state)
	return &d, nil
}

// GetDrivers retrieves the full driver roster ordered by code
func (q *queries) GetDrivers(ctx context.Context) ([]model.Driver, error) {
	rows, err := q.q.Query(ctx, `SELECT `+driverColumns+` FROM drivers ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to query drivers: %w", err)
	}
	defer rows.Close()

	var drivers []model.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan driver: %w", err)
		}
		drivers = append(drivers, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating drivers: %w", err)
	}

	return drivers, nil
}

// GetDriver retrieves one driver by id
func (q *queries) GetDriver(ctx context.Context, id string) (*model.Driver, error) {
	d, err := scanDriver(q.q.QueryRow(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("driver %s: %w", id, db.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get driver %s: %w", id, err)
	}
	return d, nil
}

// UpdateDriver writes the mutable fields of a driver
func (q *queries) UpdateDriver(ctx context.Context, d model.Driver) error {
	tag, err := q.q.Exec(ctx, `
		UPDATE drivers
		SET state = $2, efficiency = $3, punctuality = $4, consecutive_days_worked = $5,
			authorized_services = $6, night_authorized = $7, license_valid = $8,
			suspended_until = $9, origin = $10
		WHERE id = $1
	`, d.ID, string(d.State), d.Efficiency, d.Punctuality, d.ConsecutiveDaysWorked,
		d.AuthorizedServices, d.NightAuthorized, d.LicenseValid, d.SuspendedUntil, d.Origin)
	if err != nil {
		return fmt.Errorf("failed to update driver %s: %w", d.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("driver %s: %w", d.ID, db.ErrNotFound)
	}
	return nil
}

// HasOpenCritical reports whether the driver has a CRITICAL validation still pending or in review
func (q *queries) HasOpenCritical(ctx context.Context, driverID string) (bool, error) {
	var exists bool
	err := q.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM validations
			WHERE driver_id = $1 AND severity = $2 AND status IN ($3, $4)
		)
	`, driverID, model.SeverityCritical.String(), string(model.ValidationPending), string(model.ValidationInReview)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check open critical validations for %s: %w", driverID, err)
	}
	return exists, nil
}

// GetParameters retrieves all stored parameter overrides
func (q *queries) GetParameters(ctx context.Context) (map[string]string, error) {
	rows, err := q.q.Query(ctx, `SELECT key, value FROM parameters`)
	if err != nil {
		return nil, fmt.Errorf("failed to query parameters: %w", err)
	}
	defer rows.Close()

	params := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan parameter: %w", err)
		}
		params[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parameters: %w", err)
	}

	return params, nil
}
