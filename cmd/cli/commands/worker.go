package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sipat/crew-scheduler/pkg/core/model"
	"github.com/sipat/crew-scheduler/pkg/core/services"
	"github.com/sipat/crew-scheduler/pkg/lock"
)

// WorkerCommand is the name of the worker command
const WorkerCommand = "worker"

// WorkerCmd creates the worker command, which generates schedules on a cron schedule until
// interrupted
func WorkerCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   WorkerCommand,
		Short: "Run the daily scheduling worker",
		Long: `Run a long-lived worker that generates the schedule for today + leadDays every time
the configured cron expression fires. Stops on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runNow, _ := cmd.Flags().GetBool("run-now")

			spec, leadDays := app.Cfg.WorkerSchedule()
			loc := app.Cfg.Location()

			run := func(ctx context.Context) {
				target := workerTarget(time.Now(), loc, leadDays)
				summary, err := services.GenerateSchedule(ctx, app.Database, app.Publisher, app.Locker, app.Cfg, app.Logger,
					services.GenerateOptions{TargetDate: target, RunType: model.RunAutomatic})
				switch {
				case errors.Is(err, lock.ErrLockHeld):
					app.Logger.Warn("Skipping scheduled run, another run holds the date", zap.Time("service_date", target))
				case err != nil:
					app.Logger.Error("Scheduled run failed", zap.Time("service_date", target), zap.Error(err))
				default:
					app.Logger.Info("Scheduled run completed",
						zap.String("schedule_id", summary.ScheduleID),
						zap.Int("assigned", summary.AssignedShifts),
						zap.Int("unresolved_critical", summary.UnresolvedCritical))
				}
			}

			g, ctx := errgroup.WithContext(app.Ctx)

			g.Go(func() error {
				scheduler, err := gocron.NewScheduler(gocron.WithLocation(loc))
				if err != nil {
					return fmt.Errorf("failed to create scheduler: %w", err)
				}

				job, err := scheduler.NewJob(
					gocron.CronJob(spec, false),
					gocron.NewTask(func() { run(ctx) }),
					gocron.WithName("generate-schedule"),
					gocron.WithSingletonMode(gocron.LimitModeReschedule),
				)
				if err != nil {
					return fmt.Errorf("failed to schedule job %q: %w", spec, err)
				}

				scheduler.Start()
				next, _ := job.NextRun()
				app.Logger.Info("Worker started",
					zap.String("cron", spec),
					zap.Int("lead_days", leadDays),
					zap.Time("next_run", next))

				<-ctx.Done()
				app.Logger.Info("Stopping worker")
				return scheduler.Shutdown()
			})

			if runNow {
				g.Go(func() error {
					run(ctx)
					return nil
				})
			}

			if err := g.Wait(); err != nil {
				return fmt.Errorf("worker stopped: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().Bool("run-now", false, "Also run once immediately on startup")

	return cmd
}

// workerTarget returns the service date leadDays after the date of now in loc
func workerTarget(now time.Time, loc *time.Location, leadDays int) time.Time {
	return model.DateOnly(now.In(loc)).AddDate(0, 0, leadDays)
}
