package db

import (
	"context"
	"errors"
	"time"

	"github.com/sipat/crew-scheduler/pkg/core/model"
)

// ErrNotFound is returned when a record looked up by id does not exist
var ErrNotFound = errors.New("not found")

// Tx is the set of operations available inside a transaction.
// Nothing written through a Tx is visible to other sessions until WithTx returns nil.
type Tx interface {
	InsertSchedule(ctx context.Context, schedule *model.Schedule) error
	FinalizeSchedule(ctx context.Context, schedule *model.Schedule) error
	InsertShift(ctx context.Context, shift *model.Shift) error
	UpdateShift(ctx context.Context, shift *model.Shift) error
	GetShift(ctx context.Context, id string) (*model.Shift, error)
	InsertValidations(ctx context.Context, validations []model.Validation) error
	UpdateValidation(ctx context.Context, validation model.Validation) error
	GetDriver(ctx context.Context, id string) (*model.Driver, error)
	UpdateDriver(ctx context.Context, driver model.Driver) error
	InsertRouteRecord(ctx context.Context, record model.RouteRecord) error
	GetRecentEfficiencies(ctx context.Context, driverID string, limit int) ([]float64, error)
}

// Transactor runs fn inside a transaction, committing if fn returns nil and rolling back
// otherwise, including when fn panics
type Transactor interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// SchedulingStore defines the operations used by a scheduling run
type SchedulingStore interface {
	Transactor
	GetDrivers(ctx context.Context) ([]model.Driver, error)
	GetRouteHistory(ctx context.Context, from, to time.Time) ([]model.RouteRecord, error)
	GetParameters(ctx context.Context) (map[string]string, error)
}

// ValidationFilter narrows a validation listing. Zero values match everything.
type ValidationFilter struct {
	Status     model.ValidationStatus
	DriverID   string
	ScheduleID string
	Limit      int
}

// ValidationStore defines the operations of the validation review workflow
type ValidationStore interface {
	ListValidations(ctx context.Context, filter ValidationFilter) ([]model.Validation, error)
	GetValidation(ctx context.Context, id string) (*model.Validation, error)
	UpdateValidation(ctx context.Context, validation model.Validation) error
}

// DriverStore defines the operations used by driver and shift lifecycle changes
type DriverStore interface {
	Transactor
	GetDriver(ctx context.Context, id string) (*model.Driver, error)
	HasOpenCritical(ctx context.Context, driverID string) (bool, error)
}

// Database defines the interface for all database operations
type Database interface {
	SchedulingStore
	ValidationStore
	DriverStore
}
