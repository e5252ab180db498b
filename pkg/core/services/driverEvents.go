package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sipat/crew-scheduler/pkg/core/model"
	"github.com/sipat/crew-scheduler/pkg/db"
	"github.com/sipat/crew-scheduler/pkg/events"
)

// ShiftCompletion is the result of completing a shift
type ShiftCompletion struct {
	Shift              *model.Shift
	Driver             model.Driver
	RealizedEfficiency float64
	Changes            []model.DriverChange
	Findings           []model.Validation
}

// DriverLifecycle applies shift completions and state changes to drivers. Each change is
// computed as a before/after pair, and the diff between the two drives the follow-up
// actions: audit events and rest-limit findings.
type DriverLifecycle struct {
	store     db.DriverStore
	publisher events.Publisher
	params    model.Parameters
	logger    *zap.Logger
	now       func() time.Time
}

func NewDriverLifecycle(store db.DriverStore, publisher events.Publisher, params model.Parameters, logger *zap.Logger) *DriverLifecycle {
	return &DriverLifecycle{
		store:     store,
		publisher: publisher,
		params:    params,
		logger:    logger,
		now:       time.Now,
	}
}

// CompleteShift marks a shift completed with its actual times, records the worked route and
// updates the driver's consecutive-days counter and rolling efficiency. A shift that was
// never started is started implicitly.
func (l *DriverLifecycle) CompleteShift(ctx context.Context, shiftID string, actualStart, actualEnd time.Time) (*ShiftCompletion, error) {
	var result ShiftCompletion
	at := l.now()

	err := l.store.WithTx(ctx, func(tx db.Tx) error {
		shift, err := tx.GetShift(ctx, shiftID)
		if err != nil {
			return fmt.Errorf("failed to get shift %s: %w", shiftID, err)
		}
		if !shift.IsAssigned() {
			return fmt.Errorf("%w: shift %s has no driver", model.ErrInvalidTransition, shiftID)
		}
		if shift.State == model.ShiftAssigned {
			if err := shift.TransitionTo(model.ShiftInProgress); err != nil {
				return err
			}
		}

		before, err := tx.GetDriver(ctx, *shift.DriverID)
		if err != nil {
			return fmt.Errorf("failed to get driver %s: %w", *shift.DriverID, err)
		}

		// Read before the shift is stored as completed so it is not counted twice
		recent, err := tx.GetRecentEfficiencies(ctx, before.ID, model.EfficiencyWindow-1)
		if err != nil {
			return fmt.Errorf("failed to get recent efficiencies: %w", err)
		}

		efficiency, err := shift.Complete(actualStart, actualEnd)
		if err != nil {
			return err
		}
		if err := tx.UpdateShift(ctx, shift); err != nil {
			return fmt.Errorf("failed to update shift: %w", err)
		}

		record := model.RouteRecord{
			ID:       uuid.New().String(),
			DriverID: before.ID,
			ShiftID:  shift.ID,
			Date:     shift.Date,
			Start:    actualStart,
			End:      actualEnd,
			Kind:     shift.RouteKind,
		}
		if err := tx.InsertRouteRecord(ctx, record); err != nil {
			return fmt.Errorf("failed to record route: %w", err)
		}

		after := before.WithCompletedShift(efficiency, recent)
		if err := tx.UpdateDriver(ctx, after); err != nil {
			return fmt.Errorf("failed to update driver: %w", err)
		}

		changes := model.DiffDriver(*before, after)
		findings, err := l.restLimitFindings(after, shift, changes, at)
		if err != nil {
			return err
		}
		if len(findings) > 0 {
			if err := tx.InsertValidations(ctx, findings); err != nil {
				return fmt.Errorf("failed to insert validations: %w", err)
			}
		}

		result = ShiftCompletion{
			Shift:              shift,
			Driver:             after,
			RealizedEfficiency: efficiency,
			Changes:            changes,
			Findings:           findings,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("Shift completed",
		zap.String("shift_id", shiftID),
		zap.String("driver_id", result.Driver.ID),
		zap.Float64("realized_efficiency", result.RealizedEfficiency),
		zap.Int("consecutive_days", result.Driver.ConsecutiveDaysWorked))

	l.publisher.Audit(events.Event{
		Kind:    events.ShiftCompleted,
		At:      at,
		Subject: shiftID,
		Fields: map[string]any{
			"driver_id":           result.Driver.ID,
			"realized_efficiency": result.RealizedEfficiency,
		},
	})
	l.publishChanges(result.Driver.ID, result.Changes, result.Findings, at)

	return &result, nil
}

// SetDriverState moves a driver to a new state. A return to AVAILABLE while the driver has an
// open CRITICAL validation is logged as a soft block but allowed.
func (l *DriverLifecycle) SetDriverState(ctx context.Context, driverID string, next model.DriverState) (*model.Driver, error) {
	at := l.now()

	if next == model.DriverAvailable {
		blocked, err := l.store.HasOpenCritical(ctx, driverID)
		if err != nil {
			return nil, fmt.Errorf("failed to check open validations: %w", err)
		}
		if blocked {
			l.logger.Warn("Driver returns to service with open critical validations", zap.String("driver_id", driverID))
			l.publisher.Audit(events.Event{
				Kind:    events.ReturnSoftBlocked,
				At:      at,
				Subject: driverID,
			})
		}
	}

	var after model.Driver
	var changes []model.DriverChange
	err := l.store.WithTx(ctx, func(tx db.Tx) error {
		before, err := tx.GetDriver(ctx, driverID)
		if err != nil {
			return fmt.Errorf("failed to get driver %s: %w", driverID, err)
		}
		after, err = before.WithState(next)
		if err != nil {
			return err
		}
		if err := tx.UpdateDriver(ctx, after); err != nil {
			return fmt.Errorf("failed to update driver: %w", err)
		}
		changes = model.DiffDriver(*before, after)
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("Driver state changed", zap.String("driver_id", driverID), zap.String("state", string(next)))
	l.publishChanges(driverID, changes, nil, at)

	return &after, nil
}

// restLimitFindings raises exceeded_rest_free_days when a completion pushes the counter to
// the maximum
func (l *DriverLifecycle) restLimitFindings(driver model.Driver, shift *model.Shift, changes []model.DriverChange, at time.Time) ([]model.Validation, error) {
	for _, c := range changes {
		if c.Kind != model.ChangeCounterIncrement || driver.ConsecutiveDaysWorked < l.params.MaxConsecutiveDays {
			continue
		}

		payload, err := model.NewPayload(
			"dias_consecutivos", driver.ConsecutiveDaysWorked,
			"dias_maximos", l.params.MaxConsecutiveDays,
		)
		if err != nil {
			return nil, err
		}

		driverID, shiftID := driver.ID, shift.ID
		scheduleID := shift.ScheduleID
		return []model.Validation{{
			ID:          uuid.New().String(),
			Type:        model.ValidationExceededRestFreeDays,
			Severity:    model.SeverityCritical,
			DriverID:    &driverID,
			ScheduleID:  &scheduleID,
			ShiftID:     &shiftID,
			Description: fmt.Sprintf("Driver %s has worked %d consecutive days (maximum %d) and needs mandatory rest", driver.ID, driver.ConsecutiveDaysWorked, l.params.MaxConsecutiveDays),
			Payload:     payload,
			Status:      model.ValidationPending,
			CreatedAt:   at,
			UpdatedAt:   at,
		}}, nil
	}
	return nil, nil
}

func (l *DriverLifecycle) publishChanges(driverID string, changes []model.DriverChange, findings []model.Validation, at time.Time) {
	for _, c := range changes {
		kind := events.DriverChanged
		if c.Kind == model.ChangeState {
			kind = events.DriverStateChanged
		}
		l.publisher.Audit(events.Event{
			Kind:    kind,
			At:      at,
			Subject: driverID,
			Fields:  map[string]any{"change": string(c.Kind), "before": c.Before, "after": c.After},
		})
		if c.Kind == model.ChangeState && c.After == model.DriverSuspended {
			l.publisher.Audit(events.Event{Kind: events.DriverSuspended, At: at, Subject: driverID})
		}
	}

	for _, f := range findings {
		l.logger.Warn("Driver reached the consecutive days limit",
			zap.String("driver_id", driverID),
			zap.String("validation_id", f.ID))
		l.publisher.Audit(events.Event{
			Kind:    events.RestLimitExceeded,
			At:      at,
			Subject: driverID,
			Fields:  map[string]any{"validation_id": f.ID},
		})
	}
}
