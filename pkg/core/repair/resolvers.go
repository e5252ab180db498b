package repair

import (
	"context"
	"fmt"
	"time"

	"github.com/sipat/crew-scheduler/pkg/core/model"
	"github.com/sipat/crew-scheduler/pkg/core/rules"
)

// Strategy names accepted by NewResolver
const (
	StrategyReview   = "review"
	StrategyUnassign = "unassign"
)

// NewResolver returns the resolver registered under name
func NewResolver(name string) (Resolver, error) {
	switch name {
	case "", StrategyReview:
		return &ReviewResolver{}, nil
	case StrategyUnassign:
		return &UnassignResolver{}, nil
	}
	return nil, fmt.Errorf("unknown repair strategy %q", name)
}

// ReviewResolver escalates a finding to a human by marking it IN_REVIEW.
// The schedule is left as is, so the finding is reported again on re-validation.
type ReviewResolver struct{}

func (r *ReviewResolver) Name() string {
	return StrategyReview
}

func (r *ReviewResolver) Resolve(ctx context.Context, store Store, in *rules.Input, finding *model.Validation, at time.Time) error {
	if finding.Status != model.ValidationPending {
		return nil
	}
	if err := finding.TransitionTo(model.ValidationInReview, "", at); err != nil {
		return err
	}
	return store.UpdateValidation(ctx, *finding)
}

// UnassignResolver removes the driver from the shift a finding points at and resolves the
// finding. Only rest and overlap findings are handled this way; others are escalated for
// review.
type UnassignResolver struct {
	review ReviewResolver
}

func (r *UnassignResolver) Name() string {
	return StrategyUnassign
}

func (r *UnassignResolver) Resolve(ctx context.Context, store Store, in *rules.Input, finding *model.Validation, at time.Time) error {
	if finding.Type != model.ValidationInsufficientRest && finding.Type != model.ValidationScheduleOverlap {
		return r.review.Resolve(ctx, store, in, finding, at)
	}

	shift := findShift(in.Schedule, finding.ShiftID)
	if shift == nil || !shift.IsAssigned() {
		return r.review.Resolve(ctx, store, in, finding, at)
	}

	driverID := *shift.DriverID
	if err := shift.Unassign(); err != nil {
		return fmt.Errorf("failed to unassign shift %s: %w", shift.Code, err)
	}
	if err := store.UpdateShift(ctx, shift); err != nil {
		return err
	}

	note := fmt.Sprintf("Driver %s unassigned from shift %s by the repair loop", driverID, shift.Code)
	if err := finding.TransitionTo(model.ValidationResolved, note, at); err != nil {
		return err
	}
	return store.UpdateValidation(ctx, *finding)
}

func findShift(schedule *model.Schedule, shiftID *string) *model.Shift {
	if schedule == nil || shiftID == nil {
		return nil
	}
	for _, s := range schedule.Shifts {
		if s.ID == *shiftID {
			return s
		}
	}
	return nil
}
