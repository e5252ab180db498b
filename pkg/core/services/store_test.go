package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/sipat/crew-scheduler/pkg/core/model"
	"github.com/sipat/crew-scheduler/pkg/db"
	"github.com/sipat/crew-scheduler/pkg/events"
)

// memState is the committed content of mockStore
type memState struct {
	schedules   map[string]model.Schedule
	shifts      map[string]model.Shift
	validations map[string]model.Validation
	drivers     map[string]model.Driver
	routes      []model.RouteRecord
}

func newMemState() *memState {
	return &memState{
		schedules:   make(map[string]model.Schedule),
		shifts:      make(map[string]model.Shift),
		validations: make(map[string]model.Validation),
		drivers:     make(map[string]model.Driver),
	}
}

func (s *memState) clone() *memState {
	return &memState{
		schedules:   maps.Clone(s.schedules),
		shifts:      maps.Clone(s.shifts),
		validations: maps.Clone(s.validations),
		drivers:     maps.Clone(s.drivers),
		routes:      append([]model.RouteRecord(nil), s.routes...),
	}
}

// mockStore implements db.Database in memory. Writes made inside WithTx are only kept when
// the function returns nil.
type mockStore struct {
	mu        sync.Mutex
	state     *memState
	roster    []model.Driver
	history   []model.RouteRecord
	params    map[string]string
	paramsErr error

	// failShiftInsert makes the n-th InsertShift of a transaction fail (1-based)
	failShiftInsert int

	// blockGetDrivers makes GetDrivers wait for the context to be done
	blockGetDrivers bool

	txCount int
}

var (
	_ db.Database = (*mockStore)(nil)
	_ db.Tx       = (*mockTx)(nil)

	errInsertFailed = errors.New("insert failed")
)

func newMockStore(roster []model.Driver, history []model.RouteRecord) *mockStore {
	s := &mockStore{state: newMemState(), roster: roster, history: history}
	for _, d := range roster {
		s.state.drivers[d.ID] = d
	}
	return s
}

func (s *mockStore) WithTx(ctx context.Context, fn func(tx db.Tx) error) (err error) {
	s.mu.Lock()
	s.txCount++
	tx := &mockTx{state: s.state.clone(), failShiftInsert: s.failShiftInsert}
	s.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("transaction aborted by panic: %v", p)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = tx.state
	return nil
}

func (s *mockStore) GetDrivers(ctx context.Context) ([]model.Driver, error) {
	if s.blockGetDrivers {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return append([]model.Driver(nil), s.roster...), nil
}

func (s *mockStore) GetRouteHistory(ctx context.Context, from, to time.Time) ([]model.RouteRecord, error) {
	var out []model.RouteRecord
	for _, r := range s.history {
		if !r.Date.Before(from) && r.Date.Before(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *mockStore) GetParameters(ctx context.Context) (map[string]string, error) {
	return s.params, s.paramsErr
}

func (s *mockStore) ListValidations(ctx context.Context, filter db.ValidationFilter) ([]model.Validation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Validation
	for _, v := range s.state.validations {
		if filter.Status != "" && v.Status != filter.Status {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *mockStore) GetValidation(ctx context.Context, id string) (*model.Validation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.state.validations[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &v, nil
}

func (s *mockStore) UpdateValidation(ctx context.Context, validation model.Validation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.validations[validation.ID] = validation
	return nil
}

func (s *mockStore) GetDriver(ctx context.Context, id string) (*model.Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.state.drivers[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &d, nil
}

func (s *mockStore) HasOpenCritical(ctx context.Context, driverID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.state.validations {
		if v.DriverID != nil && *v.DriverID == driverID && v.Severity == model.SeverityCritical && v.Status.IsOpen() {
			return true, nil
		}
	}
	return false, nil
}

func (s *mockStore) committed() *memState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

type mockTx struct {
	state           *memState
	failShiftInsert int
	shiftInserts    int
}

func (t *mockTx) InsertSchedule(ctx context.Context, schedule *model.Schedule) error {
	t.state.schedules[schedule.ID] = *schedule
	return nil
}

func (t *mockTx) FinalizeSchedule(ctx context.Context, schedule *model.Schedule) error {
	t.state.schedules[schedule.ID] = *schedule
	return nil
}

func (t *mockTx) InsertShift(ctx context.Context, shift *model.Shift) error {
	t.shiftInserts++
	if t.failShiftInsert > 0 && t.shiftInserts == t.failShiftInsert {
		return errInsertFailed
	}
	t.state.shifts[shift.ID] = *shift
	return nil
}

func (t *mockTx) UpdateShift(ctx context.Context, shift *model.Shift) error {
	t.state.shifts[shift.ID] = *shift
	return nil
}

func (t *mockTx) GetShift(ctx context.Context, id string) (*model.Shift, error) {
	s, ok := t.state.shifts[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &s, nil
}

func (t *mockTx) InsertValidations(ctx context.Context, validations []model.Validation) error {
	for _, v := range validations {
		t.state.validations[v.ID] = v
	}
	return nil
}

func (t *mockTx) UpdateValidation(ctx context.Context, validation model.Validation) error {
	t.state.validations[validation.ID] = validation
	return nil
}

func (t *mockTx) GetDriver(ctx context.Context, id string) (*model.Driver, error) {
	d, ok := t.state.drivers[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &d, nil
}

func (t *mockTx) UpdateDriver(ctx context.Context, driver model.Driver) error {
	t.state.drivers[driver.ID] = driver
	return nil
}

func (t *mockTx) InsertRouteRecord(ctx context.Context, record model.RouteRecord) error {
	t.state.routes = append(t.state.routes, record)
	return nil
}

// GetRecentEfficiencies returns the realized efficiencies of the driver's completed shifts,
// ordered by shift start, oldest first
func (t *mockTx) GetRecentEfficiencies(ctx context.Context, driverID string, limit int) ([]float64, error) {
	var completed []model.Shift
	for _, s := range t.state.shifts {
		if s.DriverID != nil && *s.DriverID == driverID && s.State == model.ShiftCompleted && s.RealizedEfficiency != nil {
			completed = append(completed, s)
		}
	}
	sort.Slice(completed, func(i, j int) bool { return completed[i].Start.Before(completed[j].Start) })
	if len(completed) > limit {
		completed = completed[len(completed)-limit:]
	}
	out := make([]float64, 0, len(completed))
	for _, s := range completed {
		out = append(out, *s.RealizedEfficiency)
	}
	return out, nil
}

// mockPublisher records everything it is given
type mockPublisher struct {
	mu        sync.Mutex
	events    []events.Event
	summaries []model.RunSummary
	alerts    []model.CriticalAlert
}

func (p *mockPublisher) Audit(event events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *mockPublisher) RunSummary(summary model.RunSummary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.summaries = append(p.summaries, summary)
}

func (p *mockPublisher) CriticalAlert(alert model.CriticalAlert) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, alert)
}

func (p *mockPublisher) kinds() []events.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	kinds := make([]events.Kind, 0, len(p.events))
	for _, e := range p.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}
