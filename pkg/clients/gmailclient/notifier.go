package gmailclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sipat/crew-scheduler/pkg/core/model"
)

type mailer interface {
	SendEmail(ctx context.Context, to []string, subject, body string) error
}

// Notifier emails run summaries and critical alerts to the operations team
type Notifier struct {
	mailer     mailer
	recipients []string
}

// NewNotifier creates a Notifier sending through the given client
func NewNotifier(client *Client, recipients []string) *Notifier {
	return &Notifier{mailer: client, recipients: recipients}
}

func (n *Notifier) Name() string { return "gmail" }

func (n *Notifier) NotifyRunSummary(ctx context.Context, summary model.RunSummary) error {
	subject, body := formatRunSummary(summary)
	return n.mailer.SendEmail(ctx, n.recipients, subject, body)
}

func (n *Notifier) NotifyCriticalAlert(ctx context.Context, alert model.CriticalAlert) error {
	if len(alert.Validations) == 0 {
		return nil
	}
	subject, body := formatCriticalAlert(alert)
	return n.mailer.SendEmail(ctx, n.recipients, subject, body)
}

func formatRunSummary(s model.RunSummary) (string, string) {
	date := s.ServiceDate.Format("2006-01-02")
	subject := fmt.Sprintf("[SIPAT] Schedule %s: %d/%d shifts assigned", date, s.AssignedShifts, s.TotalShifts)
	if s.DryRun {
		subject = "[DRY RUN] " + subject
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Run: %s\n", s.RunID)
	fmt.Fprintf(&b, "Schedule: %s\n", s.ScheduleID)
	fmt.Fprintf(&b, "Service date: %s\n\n", date)
	fmt.Fprintf(&b, "Shifts: %d total, %d assigned (%d general, %d specialized), %d unassigned\n",
		s.TotalShifts, s.AssignedShifts, s.Metrics.AssignedGeneral, s.Metrics.AssignedSpecialized, s.Metrics.Unassigned)
	fmt.Fprintf(&b, "Drivers: %d assigned of %d eligible, %d operable\n", s.DistinctDrivers, s.Metrics.Eligible, s.Metrics.Operable)
	fmt.Fprintf(&b, "Validations: %d (%d unresolved critical after %d repair iterations)\n",
		s.ValidationCount, s.UnresolvedCritical, s.Metrics.RepairIterations)
	fmt.Fprintf(&b, "Elapsed: %s\n", s.Elapsed.Round(time.Millisecond))
	return subject, b.String()
}

func formatCriticalAlert(a model.CriticalAlert) (string, string) {
	date := a.ServiceDate.Format("2006-01-02")
	subject := fmt.Sprintf("[SIPAT] %d unresolved critical validations for %s", len(a.Validations), date)

	var b strings.Builder
	fmt.Fprintf(&b, "Run %s left schedule %s with critical findings that need review:\n\n", a.RunID, a.ScheduleID)
	for _, v := range a.Validations {
		fmt.Fprintf(&b, "- %s", v.Type)
		if v.DriverID != nil {
			fmt.Fprintf(&b, " driver=%s", *v.DriverID)
		}
		if v.ShiftID != nil {
			fmt.Fprintf(&b, " shift=%s", *v.ShiftID)
		}
		fmt.Fprintf(&b, ": %s (id %s)\n", v.Description, v.ID)
	}
	return subject, b.String()
}
