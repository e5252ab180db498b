package events

import (
	"context"
	"time"

	"github.com/sipat/crew-scheduler/pkg/core/model"
)

// Kind names an audit event
type Kind string

const (
	RunStarted         Kind = "run_started"
	RunCompleted       Kind = "run_completed"
	RunFailed          Kind = "run_failed"
	ValidationReviewed Kind = "validation_status_changed"
	ShiftCompleted     Kind = "shift_completed"
	DriverChanged      Kind = "driver_changed"
	DriverStateChanged Kind = "driver_state_changed"
	DriverSuspended    Kind = "driver_suspended"
	RestLimitExceeded  Kind = "rest_limit_exceeded"
	ReturnSoftBlocked  Kind = "return_soft_blocked"
)

// Event is an audit record of something that happened in the system
type Event struct {
	Kind Kind
	At   time.Time

	// Subject is the id of the entity the event is about
	Subject string

	Fields map[string]any
}

// AuditSink stores audit events
type AuditSink interface {
	Record(ctx context.Context, event Event) error
}

// Notifier delivers run outcomes to people
type Notifier interface {
	Name() string
	NotifyRunSummary(ctx context.Context, summary model.RunSummary) error
	NotifyCriticalAlert(ctx context.Context, alert model.CriticalAlert) error
}

// Publisher accepts events and notifications without blocking the caller.
// Delivery failures never reach the publisher's caller.
type Publisher interface {
	Audit(event Event)
	RunSummary(summary model.RunSummary)
	CriticalAlert(alert model.CriticalAlert)
}
