package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sipat/crew-scheduler/pkg/core/model"
)

// Validator runs an ordered set of rules against a schedule.
// Every rule runs even if an earlier one fails. A rule error is logged and whatever findings
// the rule still produced are kept; a panicking rule contributes none.
type Validator struct {
	rules  []Rule
	logger *zap.Logger
	now    func() time.Time
}

// NewValidator creates a validator running the given rules in order
func NewValidator(logger *zap.Logger, rules ...Rule) *Validator {
	return &Validator{
		rules:  rules,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock returns a copy of the validator stamping findings with the given clock
func (v *Validator) WithClock(now func() time.Time) *Validator {
	c := *v
	c.now = now
	return &c
}

// Rules returns the names of the configured rules in evaluation order
func (v *Validator) Rules() []string {
	names := make([]string, len(v.rules))
	for i, r := range v.rules {
		names[i] = r.Name()
	}
	return names
}

// Validate evaluates every rule and returns their findings in rule order, as new PENDING
// validations. It only returns an error when ctx is done.
func (v *Validator) Validate(ctx context.Context, in *Input) ([]model.Validation, error) {
	var findings []model.Validation
	for _, rule := range v.rules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		results, err := v.evaluate(rule, in)
		if err != nil {
			v.logger.Warn("Rule evaluation incomplete",
				zap.String("rule", rule.Name()),
				zap.Int("findings", len(results)),
				zap.Error(err))
		}

		at := v.now()
		for _, f := range results {
			f.ID = uuid.New().String()
			f.Type = rule.Type()
			f.Severity = rule.Severity()
			f.Status = model.ValidationPending
			f.CreatedAt = at
			f.UpdatedAt = at
			findings = append(findings, f)
		}

		v.logger.Debug("Rule evaluated",
			zap.String("rule", rule.Name()),
			zap.Int("findings", len(results)))
	}
	return findings, nil
}

// evaluate runs one rule, turning a panic into an error
func (v *Validator) evaluate(rule Rule, in *Input) (results []model.Validation, err error) {
	defer func() {
		if r := recover(); r != nil {
			results = nil
			err = fmt.Errorf("rule %s panicked: %v", rule.Name(), r)
		}
	}()
	return rule.Evaluate(in)
}
