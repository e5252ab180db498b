package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sipat/crew-scheduler/pkg/core/model"
	"github.com/sipat/crew-scheduler/pkg/db"
	"github.com/sipat/crew-scheduler/pkg/events"
)

// ValidationReview moves validations through their review workflow and records every
// status change as an audit event
type ValidationReview struct {
	store     db.ValidationStore
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewValidationReview(store db.ValidationStore, publisher events.Publisher, logger *zap.Logger) *ValidationReview {
	return &ValidationReview{
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// List returns the validations matching the filter
func (r *ValidationReview) List(ctx context.Context, filter db.ValidationFilter) ([]model.Validation, error) {
	validations, err := r.store.ListValidations(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list validations: %w", err)
	}
	r.logger.Debug("Listed validations", zap.Int("count", len(validations)), zap.String("status", string(filter.Status)))
	return validations, nil
}

// Review marks a PENDING validation as IN_REVIEW
func (r *ValidationReview) Review(ctx context.Context, id string) (*model.Validation, error) {
	return r.transition(ctx, id, model.ValidationInReview, "")
}

// Resolve closes a validation. The note is required and stored with the validation.
func (r *ValidationReview) Resolve(ctx context.Context, id, note string) (*model.Validation, error) {
	return r.transition(ctx, id, model.ValidationResolved, note)
}

// Reject dismisses a validation as not applicable
func (r *ValidationReview) Reject(ctx context.Context, id string) (*model.Validation, error) {
	return r.transition(ctx, id, model.ValidationRejected, "")
}

// Reopen returns a REJECTED validation to PENDING
func (r *ValidationReview) Reopen(ctx context.Context, id string) (*model.Validation, error) {
	return r.transition(ctx, id, model.ValidationPending, "")
}

func (r *ValidationReview) transition(ctx context.Context, id string, next model.ValidationStatus, note string) (*model.Validation, error) {
	validation, err := r.store.GetValidation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get validation %s: %w", id, err)
	}

	previous := validation.Status
	at := r.now()
	if err := validation.TransitionTo(next, note, at); err != nil {
		return nil, err
	}

	if err := r.store.UpdateValidation(ctx, *validation); err != nil {
		return nil, fmt.Errorf("failed to update validation %s: %w", id, err)
	}

	r.logger.Info("Validation status changed",
		zap.String("validation_id", id),
		zap.String("type", string(validation.Type)),
		zap.String("from", string(previous)),
		zap.String("to", string(next)))

	fields := map[string]any{
		"type":     string(validation.Type),
		"severity": validation.Severity.String(),
		"from":     string(previous),
		"to":       string(next),
	}
	if note != "" {
		fields["note"] = note
	}
	r.publisher.Audit(events.Event{
		Kind:    events.ValidationReviewed,
		At:      at,
		Subject: id,
		Fields:  fields,
	})

	return validation, nil
}
