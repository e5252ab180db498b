package repair

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sipat/crew-scheduler/pkg/core/model"
	"github.com/sipat/crew-scheduler/pkg/core/rules"
)

// DefaultMaxIterations bounds the number of resolve/re-validate cycles
const DefaultMaxIterations = 3

// Validator re-evaluates the schedule after resolution actions
type Validator interface {
	Validate(ctx context.Context, in *rules.Input) ([]model.Validation, error)
}

// Store persists the effects of resolution actions
type Store interface {
	InsertValidations(ctx context.Context, validations []model.Validation) error
	UpdateValidation(ctx context.Context, validation model.Validation) error
	UpdateShift(ctx context.Context, shift *model.Shift) error
}

// Resolver applies a resolution action to one CRITICAL finding.
// The finding is the persisted one; resolvers update it in place and persist the change.
type Resolver interface {
	Name() string
	Resolve(ctx context.Context, store Store, in *rules.Input, finding *model.Validation, at time.Time) error
}

// Outcome is the result of a repair loop run
type Outcome struct {
	// Iterations is the number of resolve/re-validate cycles executed, between 0 and the maximum
	Iterations int

	// Findings holds every persisted finding of the run with its current status
	Findings []model.Validation

	// UnresolvedCritical is the number of CRITICAL findings reported by the last validation
	UnresolvedCritical int
}

// Loop repeatedly resolves CRITICAL findings and re-validates until none are left or the
// iteration cap is reached. Hitting the cap is not an error.
type Loop struct {
	validator     Validator
	resolver      Resolver
	maxIterations int
	logger        *zap.Logger
	now           func() time.Time
}

// NewLoop creates a repair loop. A non-positive maxIterations falls back to the default and
// larger values are capped at DefaultMaxIterations.
func NewLoop(validator Validator, resolver Resolver, maxIterations int, logger *zap.Logger) *Loop {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	maxIterations = min(maxIterations, DefaultMaxIterations)
	return &Loop{
		validator:     validator,
		resolver:      resolver,
		maxIterations: maxIterations,
		logger:        logger,
		now:           time.Now,
	}
}

// Run executes the loop starting from the findings of the initial validation, which must
// already be persisted. Findings from re-validation that match a persisted finding by key are
// not inserted again.
func (l *Loop) Run(ctx context.Context, store Store, in *rules.Input, initial []model.Validation) (*Outcome, error) {
	findings := make([]model.Validation, len(initial))
	copy(findings, initial)

	known := make(map[string]int, len(findings))
	for i := range findings {
		known[findings[i].Key()] = i
	}

	last := initial
	iteration := 0

	for iteration < l.maxIterations {
		critical := model.FilterSeverity(last, model.SeverityCritical)
		if len(critical) == 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("repair interrupted at iteration %d: %w", iteration, err)
		}

		l.logger.Debug("Resolving critical findings",
			zap.Int("iteration", iteration),
			zap.Int("critical", len(critical)),
			zap.String("resolver", l.resolver.Name()))

		for _, c := range critical {
			i, ok := known[c.Key()]
			if !ok || !findings[i].Status.IsOpen() {
				continue
			}
			if err := l.resolver.Resolve(ctx, store, in, &findings[i], l.now()); err != nil {
				return nil, fmt.Errorf("failed to resolve finding %s: %w", findings[i].ID, err)
			}
		}
		if err := l.closeDetached(ctx, store, in, findings); err != nil {
			return nil, err
		}

		iteration++

		results, err := l.validator.Validate(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("failed to re-validate at iteration %d: %w", iteration, err)
		}

		var fresh []model.Validation
		for _, r := range results {
			if _, ok := known[r.Key()]; ok {
				continue
			}
			known[r.Key()] = len(findings)
			findings = append(findings, r)
			fresh = append(fresh, r)
		}
		if len(fresh) > 0 {
			if err := store.InsertValidations(ctx, fresh); err != nil {
				return nil, fmt.Errorf("failed to insert findings of iteration %d: %w", iteration, err)
			}
		}

		last = results
	}

	outcome := &Outcome{
		Iterations:         iteration,
		Findings:           findings,
		UnresolvedCritical: len(model.FilterSeverity(last, model.SeverityCritical)),
	}

	if outcome.UnresolvedCritical > 0 {
		l.logger.Warn("Repair loop finished with unresolved critical findings",
			zap.Int("iterations", outcome.Iterations),
			zap.Int("unresolved_critical", outcome.UnresolvedCritical))
	}

	return outcome, nil
}

// closeDetached resolves open findings that point at a shift their driver no longer holds,
// such as the warnings of a shift the resolver just freed. Re-validation cannot report them
// again, so they would otherwise stay open.
func (l *Loop) closeDetached(ctx context.Context, store Store, in *rules.Input, findings []model.Validation) error {
	at := l.now()
	for i := range findings {
		f := &findings[i]
		if !f.Status.IsOpen() || f.DriverID == nil {
			continue
		}
		shift := findShift(in.Schedule, f.ShiftID)
		if shift == nil || (shift.IsAssigned() && *shift.DriverID == *f.DriverID) {
			continue
		}

		note := fmt.Sprintf("Shift %s no longer assigned to driver %s", shift.Code, *f.DriverID)
		if err := f.TransitionTo(model.ValidationResolved, note, at); err != nil {
			return fmt.Errorf("failed to close finding %s: %w", f.ID, err)
		}
		if err := store.UpdateValidation(ctx, *f); err != nil {
			return err
		}
		l.logger.Debug("Closed finding of freed shift",
			zap.String("finding", f.ID),
			zap.String("type", string(f.Type)),
			zap.String("shift", shift.Code))
	}
	return nil
}
