package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sipat/crew-scheduler/internal/config"
	"github.com/sipat/crew-scheduler/pkg/core/model"
	"github.com/sipat/crew-scheduler/pkg/core/planner"
	"github.com/sipat/crew-scheduler/pkg/core/repair"
	"github.com/sipat/crew-scheduler/pkg/core/rules"
	"github.com/sipat/crew-scheduler/pkg/db"
	"github.com/sipat/crew-scheduler/pkg/events"
	"github.com/sipat/crew-scheduler/pkg/lock"
)

var (
	// ErrNoEligibleDrivers is returned when no driver survives the eligibility filter and the
	// operability gate. Nothing is persisted.
	ErrNoEligibleDrivers = errors.New("no eligible drivers")

	// ErrInvalidParameters is returned when the parameter snapshot cannot be built
	ErrInvalidParameters = errors.New("invalid scheduling parameters")

	// errDryRunRollback aborts the transaction of a dry run after every stage has executed
	errDryRunRollback = errors.New("dry run rollback")
)

// Stages reported by RunError
const (
	StageLock        = "lock"
	StageLoad        = "load"
	StageEligibility = "eligibility"
	StagePlanning    = "planning"
	StageMaterialize = "materialize"
	StageValidate    = "validate"
	StageRepair      = "repair"
	StageFinalize    = "finalize"
)

// lockGrace keeps the per-date lock alive a little past the run budget so a run that is
// rolling back still holds it
const lockGrace = 30 * time.Second

// historyWindowDays is how far back route history is loaded for load analysis
const historyWindowDays = 30

// RunError is returned when a scheduling run fails. It carries the metrics collected up to
// the failing stage and unwraps to the cause.
type RunError struct {
	RunID   string
	Stage   string
	Metrics model.RunMetrics
	Err     error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("scheduling run %s failed at %s: %v", e.RunID, e.Stage, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// GenerateOptions tunes a single scheduling run. Zero values select the defaults.
type GenerateOptions struct {
	// TargetDate is the service date; zero means tomorrow in the configured timezone
	TargetDate time.Time

	// DryRun executes every stage and rolls the transaction back
	DryRun bool

	RunType  model.RunType
	Strategy planner.Strategy
	Resolver repair.Resolver
	Rules    []rules.Rule

	Now func() time.Time
}

// GenerateSchedule runs the scheduling pipeline for one service date: it plans assignments
// in memory, then materializes, validates, repairs and finalizes the schedule inside a single
// transaction. Notifications are published only after the transaction commits.
func GenerateSchedule(
	ctx context.Context,
	store db.SchedulingStore,
	publisher events.Publisher,
	locker lock.Locker,
	cfg *config.Config,
	logger *zap.Logger,
	opts GenerateOptions,
) (*model.RunSummary, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	started := now()
	runID := uuid.New().String()
	target := resolveTargetDate(opts.TargetDate, started, cfg.Location())

	logger = logger.With(zap.String("run_id", runID), zap.String("service_date", target.Format("2006-01-02")))
	logger.Info("Starting scheduling run", zap.Bool("dry_run", opts.DryRun))

	ctx, cancel := context.WithTimeout(ctx, cfg.Budget())
	defer cancel()

	var metrics model.RunMetrics
	fail := func(stage string, err error) (*model.RunSummary, error) {
		metrics.Elapsed = now().Sub(started)
		logger.Error("Scheduling run failed",
			append([]zap.Field{zap.String("stage", stage), zap.Error(err)}, metricFields(metrics)...)...)
		publisher.Audit(events.Event{
			Kind:    events.RunFailed,
			At:      now(),
			Subject: runID,
			Fields: map[string]any{
				"stage":        stage,
				"error":        err.Error(),
				"service_date": target.Format("2006-01-02"),
				"eligible":     metrics.Eligible,
				"operable":     metrics.Operable,
			},
		})
		return nil, &RunError{RunID: runID, Stage: stage, Metrics: metrics, Err: err}
	}

	unlock, err := locker.Acquire(ctx, lock.ScheduleKey(target), cfg.Budget()+lockGrace)
	if err != nil {
		return fail(StageLock, err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Failed to release schedule lock", zap.Error(err))
		}
	}()

	publisher.Audit(events.Event{
		Kind:    events.RunStarted,
		At:      started,
		Subject: runID,
		Fields:  map[string]any{"service_date": target.Format("2006-01-02"), "dry_run": opts.DryRun},
	})

	// Load: parameters once, then roster, history and demand
	params, err := LoadParameters(ctx, store, cfg)
	if err != nil {
		return fail(StageLoad, err)
	}
	logger.Debug("Parameter snapshot",
		zap.Int("max_consecutive_days", params.MaxConsecutiveDays),
		zap.Float64("min_efficiency", params.MinEfficiency),
		zap.Float64("min_punctuality", params.MinPunctuality),
		zap.Float64("min_rest_hours", params.MinRestHours))

	roster, err := store.GetDrivers(ctx)
	if err != nil {
		return fail(StageLoad, fmt.Errorf("failed to fetch drivers: %w", err))
	}
	history, err := store.GetRouteHistory(ctx, target.AddDate(0, 0, -historyWindowDays), target.AddDate(0, 0, 7))
	if err != nil {
		return fail(StageLoad, fmt.Errorf("failed to fetch route history: %w", err))
	}
	demand, err := ExpandShiftTemplates(cfg.ShiftTemplates, target)
	if err != nil {
		return fail(StageLoad, err)
	}
	metrics.RosterSize = len(roster)
	metrics.ShiftDemand = len(demand)
	logger.Debug("Loaded run input",
		zap.Int("drivers", len(roster)),
		zap.Int("routes", len(history)),
		zap.Int("shifts", len(demand)))

	if err := ctx.Err(); err != nil {
		return fail(StageLoad, err)
	}

	// Stages 1-6 run in memory
	plan, err := planAssignments(roster, history, demand, params, target, opts.Strategy, &metrics, logger)
	if err != nil {
		return fail(StageEligibility, err)
	}
	if err := ctx.Err(); err != nil {
		return fail(StagePlanning, err)
	}

	runType := opts.RunType
	if runType == "" {
		runType = model.RunAutomatic
	}
	schedule := materialize(runID, runType, target, plan, started)

	validator := rules.NewValidator(logger, ruleSet(opts.Rules)...).WithClock(now)
	resolver := opts.Resolver
	if resolver == nil {
		if resolver, err = repair.NewResolver(cfg.Repair.Strategy); err != nil {
			return fail(StageRepair, err)
		}
	}
	loop := repair.NewLoop(validator, resolver, cfg.Repair.MaxIterations, logger)

	input := &rules.Input{
		Schedule: schedule,
		Drivers:  indexDrivers(roster),
		History:  routesBefore(history, target),
		Params:   params,
	}

	var outcome *repair.Outcome
	stage := StageMaterialize
	err = store.WithTx(ctx, func(tx db.Tx) error {
		if err := tx.InsertSchedule(ctx, schedule); err != nil {
			return fmt.Errorf("failed to insert schedule: %w", err)
		}
		for _, shift := range schedule.Shifts {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := tx.InsertShift(ctx, shift); err != nil {
				return fmt.Errorf("failed to insert shift %s: %w", shift.Code, err)
			}
		}
		logger.Debug("Materialized schedule", zap.String("schedule_id", schedule.ID), zap.Int("shifts", len(schedule.Shifts)))

		stage = StageValidate
		findings, err := validator.Validate(ctx, input)
		if err != nil {
			return err
		}
		if len(findings) > 0 {
			if err := tx.InsertValidations(ctx, findings); err != nil {
				return fmt.Errorf("failed to insert validations: %w", err)
			}
		}
		logger.Debug("Validated schedule",
			zap.Int("findings", len(findings)),
			zap.Int("critical", len(model.FilterSeverity(findings, model.SeverityCritical))))

		stage = StageRepair
		outcome, err = loop.Run(ctx, tx, input, findings)
		if err != nil {
			return err
		}

		stage = StageFinalize
		recordOutcome(&metrics, schedule, outcome)
		metrics.Elapsed = now().Sub(started)
		if err := schedule.Advance(model.ScheduleGenerated); err != nil {
			return err
		}
		generatedAt := now()
		schedule.GeneratedAt = &generatedAt
		snapshot := metrics
		schedule.Metrics = &snapshot
		if err := tx.FinalizeSchedule(ctx, schedule); err != nil {
			return fmt.Errorf("failed to finalize schedule: %w", err)
		}

		if opts.DryRun {
			return errDryRunRollback
		}
		return nil
	})
	if err != nil && !(opts.DryRun && errors.Is(err, errDryRunRollback)) {
		return fail(stage, err)
	}

	summary := model.RunSummary{
		RunID:              runID,
		ScheduleID:         schedule.ID,
		ServiceDate:        target,
		TotalShifts:        len(schedule.Shifts),
		AssignedShifts:     len(schedule.AssignedShifts()),
		DistinctDrivers:    schedule.DistinctDrivers(),
		ValidationCount:    len(outcome.Findings),
		UnresolvedCritical: outcome.UnresolvedCritical,
		Elapsed:            metrics.Elapsed,
		DryRun:             opts.DryRun,
		Metrics:            metrics,
	}

	publisher.Audit(events.Event{
		Kind:    events.RunCompleted,
		At:      now(),
		Subject: runID,
		Fields: map[string]any{
			"schedule_id":         schedule.ID,
			"service_date":        target.Format("2006-01-02"),
			"assigned":            summary.AssignedShifts,
			"total":               summary.TotalShifts,
			"unresolved_critical": summary.UnresolvedCritical,
			"dry_run":             opts.DryRun,
		},
	})
	if !opts.DryRun {
		publisher.RunSummary(summary)
		if open := openCritical(outcome.Findings); len(open) > 0 {
			publisher.CriticalAlert(model.CriticalAlert{
				RunID:       runID,
				ScheduleID:  schedule.ID,
				ServiceDate: target,
				Validations: open,
			})
		}
	}

	logger.Info("Scheduling run completed",
		append([]zap.Field{zap.String("schedule_id", schedule.ID), zap.Bool("dry_run", opts.DryRun)}, metricFields(metrics)...)...)
	if summary.UnresolvedCritical > 0 {
		logger.Warn("Schedule generated with unresolved critical validations", zap.Int("count", summary.UnresolvedCritical))
	}

	return &summary, nil
}

// planResult holds the in-memory output of stages 1-6
type planResult struct {
	assignments []planner.Assignment
}

func planAssignments(
	roster []model.Driver,
	history []model.RouteRecord,
	demand []planner.ShiftDemand,
	params model.Parameters,
	target time.Time,
	strategy planner.Strategy,
	metrics *model.RunMetrics,
	logger *zap.Logger,
) (*planResult, error) {
	eligible := planner.FilterEligible(roster, history, target)
	metrics.Eligible = len(eligible)
	logger.Debug("Eligibility filter", zap.Int("eligible", len(eligible)), zap.Int("roster", len(roster)))

	candidates := planner.AnalyzeLoad(eligible, history, target)

	gate := planner.NewOperabilityGate(params)
	operable, rejections := gate.Filter(candidates, target)
	metrics.Operable = len(operable)
	if len(rejections) > 0 {
		metrics.GateRejections = rejections
	}
	logger.Debug("Operability gate", zap.Int("operable", len(operable)), zap.Any("rejections", rejections))

	if len(operable) == 0 {
		return nil, ErrNoEligibleDrivers
	}

	pool := planner.ScoreCandidates(operable, target)

	if strategy == nil {
		strategy = planner.NewGreedyStrategy()
	}
	assignments := strategy.Assign(demand, pool)
	for _, a := range assignments {
		if a.IsAssigned() {
			metrics.AssignedGeneral++
		}
	}
	logger.Debug("Assignment", zap.String("strategy", strategy.Name()), zap.Int("assigned", metrics.AssignedGeneral))

	assignments = planner.NewSpecializedFallback(gate).Fill(assignments, roster, history, target)
	for _, a := range assignments {
		if a.Source == model.SourceSpecializedFallback && a.IsAssigned() {
			metrics.AssignedSpecialized++
		}
	}
	logger.Debug("Specialized fallback", zap.Int("assigned", metrics.AssignedSpecialized))

	return &planResult{assignments: assignments}, nil
}

// materialize builds the DRAFT schedule with one shift per demand, assigned or not
func materialize(runID string, runType model.RunType, target time.Time, plan *planResult, createdAt time.Time) *model.Schedule {
	schedule := &model.Schedule{
		ID:          uuid.New().String(),
		RunID:       runID,
		ServiceDate: target,
		RunType:     runType,
		State:       model.ScheduleDraft,
		CreatedAt:   createdAt,
		Shifts:      make([]*model.Shift, 0, len(plan.assignments)),
	}

	for i, a := range plan.assignments {
		source := a.Source
		if source == "" {
			source = model.SourceAutomatic
		}
		shift := &model.Shift{
			ID:             uuid.New().String(),
			ScheduleID:     schedule.ID,
			Position:       i,
			Code:           a.Shift.Code,
			Date:           a.Shift.Date,
			Start:          a.Shift.Start,
			End:            a.Shift.End,
			ServiceType:    a.Shift.ServiceType,
			Specialization: a.Shift.Specialization,
			Origin:         a.Shift.Origin,
			Destination:    a.Shift.Destination,
			RouteKind:      a.Shift.RouteKind,
			Source:         source,
			State:          model.ShiftPending,
		}
		if a.IsAssigned() {
			// A fresh PENDING shift can always move to ASSIGNED
			_ = shift.Assign(a.Candidate.Driver.ID, a.Candidate.Score, source)
		}
		schedule.Shifts = append(schedule.Shifts, shift)
	}

	return schedule
}

// ParameterSource provides the stored parameter overrides
type ParameterSource interface {
	GetParameters(ctx context.Context) (map[string]string, error)
}

// LoadParameters merges built-in defaults, config values and the parameters table, in
// increasing precedence, into a validated snapshot
func LoadParameters(ctx context.Context, store ParameterSource, cfg *config.Config) (model.Parameters, error) {
	defaults, err := cfg.ParameterDefaults()
	if err != nil {
		return model.Parameters{}, fmt.Errorf("%w: %w", ErrInvalidParameters, err)
	}

	values, err := store.GetParameters(ctx)
	if err != nil {
		return model.Parameters{}, fmt.Errorf("failed to fetch parameters: %w", err)
	}

	params, err := defaults.WithOverrides(values)
	if err != nil {
		return model.Parameters{}, fmt.Errorf("%w: %w", ErrInvalidParameters, err)
	}
	if err := config.ValidateParameters(params); err != nil {
		return model.Parameters{}, fmt.Errorf("%w: %w", ErrInvalidParameters, err)
	}
	return params, nil
}

func recordOutcome(metrics *model.RunMetrics, schedule *model.Schedule, outcome *repair.Outcome) {
	metrics.Unassigned = len(schedule.Shifts) - len(schedule.AssignedShifts())
	metrics.Validations = len(outcome.Findings)
	metrics.CriticalValidations = len(model.FilterSeverity(outcome.Findings, model.SeverityCritical))
	metrics.RepairIterations = outcome.Iterations
	metrics.UnresolvedCritical = outcome.UnresolvedCritical
}

func resolveTargetDate(target, now time.Time, loc *time.Location) time.Time {
	if target.IsZero() {
		local := now.In(loc)
		return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
	}
	return time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, loc)
}

func ruleSet(custom []rules.Rule) []rules.Rule {
	if len(custom) > 0 {
		return custom
	}
	return rules.Catalog()
}

func indexDrivers(roster []model.Driver) map[string]*model.Driver {
	byID := make(map[string]*model.Driver, len(roster))
	for i := range roster {
		byID[roster[i].ID] = &roster[i]
	}
	return byID
}

func routesBefore(history []model.RouteRecord, target time.Time) []model.RouteRecord {
	var prior []model.RouteRecord
	for _, r := range history {
		if model.CivilDate(r.Date, target.Location()).Before(target) {
			prior = append(prior, r)
		}
	}
	return prior
}

func openCritical(findings []model.Validation) []model.Validation {
	var open []model.Validation
	for _, v := range model.FilterSeverity(findings, model.SeverityCritical) {
		if v.Status.IsOpen() {
			open = append(open, v)
		}
	}
	return open
}

func metricFields(m model.RunMetrics) []zap.Field {
	return []zap.Field{
		zap.Int("roster_size", m.RosterSize),
		zap.Int("eligible", m.Eligible),
		zap.Int("operable", m.Operable),
		zap.Int("shift_demand", m.ShiftDemand),
		zap.Int("assigned_general", m.AssignedGeneral),
		zap.Int("assigned_specialized", m.AssignedSpecialized),
		zap.Int("unassigned", m.Unassigned),
		zap.Int("validations", m.Validations),
		zap.Int("critical_validations", m.CriticalValidations),
		zap.Int("repair_iterations", m.RepairIterations),
		zap.Int("unresolved_critical", m.UnresolvedCritical),
		zap.Duration("elapsed", m.Elapsed),
	}
}
