package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/sipat/crew-scheduler/pkg/core/model"
	"github.com/sipat/crew-scheduler/pkg/db"
)

const validationColumns = `id, type, severity, driver_id, schedule_id, shift_id, description,
	payload, status, resolution_note, created_at, updated_at`

func scanValidation(row pgx.Row) (*model.Validation, error) {
	var v model.Validation
	var vtype, severity, status string
	var payload []byte
	err := row.Scan(&v.ID, &vtype, &severity, &v.DriverID, &v.ScheduleID, &v.ShiftID,
		&v.Description, &payload, &status, &v.ResolutionNote, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}

	v.Type = model.ValidationType(vtype)
	v.Status = model.ValidationStatus(status)
	if v.Severity, err = model.ParseSeverity(severity); err != nil {
		return nil, err
	}
	if v.Payload, err = decodePayload(payload); err != nil {
		return nil, fmt.Errorf("validation %s: %w", v.ID, err)
	}
	return &v, nil
}

// decodePayload restores the typed values of a payload decoded from JSON.
// Numbers come back as float64; arrays are narrowed to []string or []float64.
func decodePayload(raw []byte) (model.Payload, error) {
	if len(raw) == 0 {
		return model.Payload{}, nil
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}

	payload := make(model.Payload, len(decoded))
	for k, v := range decoded {
		list, ok := v.([]any)
		if !ok {
			payload[k] = v
			continue
		}
		payload[k] = narrowList(list)
	}
	return payload, payload.Validate()
}

func narrowList(list []any) any {
	strs := make([]string, 0, len(list))
	nums := make([]float64, 0, len(list))
	for _, item := range list {
		switch x := item.(type) {
		case string:
			strs = append(strs, x)
		case float64:
			nums = append(nums, x)
		}
	}
	if len(nums) > len(strs) {
		return nums
	}
	return strs
}

// InsertValidations inserts validation findings
func (q *queries) InsertValidations(ctx context.Context, validations []model.Validation) error {
	for _, v := range validations {
		payload, err := json.Marshal(v.Payload)
		if err != nil {
			return fmt.Errorf("failed to encode payload of validation %s: %w", v.ID, err)
		}

		_, err = q.q.Exec(ctx, `
			INSERT INTO validations (`+validationColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, v.ID, string(v.Type), v.Severity.String(), v.DriverID, v.ScheduleID, v.ShiftID,
			v.Description, payload, string(v.Status), v.ResolutionNote, v.CreatedAt.UTC(), v.UpdatedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert validation %s: %w", v.ID, err)
		}
	}
	return nil
}

// UpdateValidation writes the review status of a validation
func (q *queries) UpdateValidation(ctx context.Context, v model.Validation) error {
	tag, err := q.q.Exec(ctx, `
		UPDATE validations SET status = $2, resolution_note = $3, updated_at = $4 WHERE id = $1
	`, v.ID, string(v.Status), v.ResolutionNote, v.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to update validation %s: %w", v.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("validation %s: %w", v.ID, db.ErrNotFound)
	}
	return nil
}

// GetValidation retrieves one validation by id
func (q *queries) GetValidation(ctx context.Context, id string) (*model.Validation, error) {
	v, err := scanValidation(q.q.QueryRow(ctx, `SELECT `+validationColumns+` FROM validations WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("validation %s: %w", id, db.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get validation %s: %w", id, err)
	}
	return v, nil
}

// ListValidations retrieves validations matching the filter, newest first
func (q *queries) ListValidations(ctx context.Context, filter db.ValidationFilter) ([]model.Validation, error) {
	where, args := validationFilterClause(filter)

	query := `SELECT ` + validationColumns + ` FROM validations` + where + ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := q.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query validations: %w", err)
	}
	defer rows.Close()

	var validations []model.Validation
	for rows.Next() {
		v, err := scanValidation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan validation: %w", err)
		}
		validations = append(validations, *v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating validations: %w", err)
	}

	return validations, nil
}

// validationFilterClause builds the WHERE clause and positional arguments for a filter
func validationFilterClause(filter db.ValidationFilter) (string, []any) {
	var conditions []string
	var args []any

	add := func(column string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if filter.Status != "" {
		add("status", string(filter.Status))
	}
	if filter.DriverID != "" {
		add("driver_id", filter.DriverID)
	}
	if filter.ScheduleID != "" {
		add("schedule_id", filter.ScheduleID)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
