package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sipat/crew-scheduler/pkg/core/model"
)

// DefaultDeliveryTimeout bounds a single delivery to one sink
const DefaultDeliveryTimeout = 30 * time.Second

// Dispatcher fans events and notifications out to sinks on background goroutines.
// Each delivery gets its own timeout; failures and panics are logged and dropped.
type Dispatcher struct {
	audit     []AuditSink
	notifiers []Notifier
	logger    *zap.Logger
	timeout   time.Duration
	wg        sync.WaitGroup
}

// NewDispatcher creates a dispatcher delivering to the given sinks
func NewDispatcher(logger *zap.Logger, audit []AuditSink, notifiers []Notifier) *Dispatcher {
	return &Dispatcher{
		audit:     audit,
		notifiers: notifiers,
		logger:    logger,
		timeout:   DefaultDeliveryTimeout,
	}
}

var _ Publisher = (*Dispatcher)(nil)

// Audit records event on every audit sink
func (d *Dispatcher) Audit(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	for _, sink := range d.audit {
		sink := sink
		d.deliver(fmt.Sprintf("audit:%s", event.Kind), func(ctx context.Context) error {
			return sink.Record(ctx, event)
		})
	}
}

// RunSummary sends the summary of a finished run to every notifier
func (d *Dispatcher) RunSummary(summary model.RunSummary) {
	for _, n := range d.notifiers {
		n := n
		d.deliver(n.Name()+":summary", func(ctx context.Context) error {
			return n.NotifyRunSummary(ctx, summary)
		})
	}
}

// CriticalAlert sends unresolved CRITICAL findings to every notifier
func (d *Dispatcher) CriticalAlert(alert model.CriticalAlert) {
	for _, n := range d.notifiers {
		n := n
		d.deliver(n.Name()+":critical", func(ctx context.Context) error {
			return n.NotifyCriticalAlert(ctx, alert)
		})
	}
}

// Wait blocks until every pending delivery has finished or ctx is done
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pending deliveries not finished: %w", ctx.Err())
	}
}

func (d *Dispatcher) deliver(target string, fn func(ctx context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("Delivery panicked", zap.String("target", target), zap.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			d.logger.Warn("Delivery failed", zap.String("target", target), zap.Error(err))
			return
		}
		d.logger.Debug("Delivered", zap.String("target", target))
	}()
}
