package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sipat/crew-scheduler/cmd/cli/commands"
	"github.com/sipat/crew-scheduler/internal/config"
	"github.com/sipat/crew-scheduler/pkg/clients/gmailclient"
	"github.com/sipat/crew-scheduler/pkg/clients/sheetsclient"
	"github.com/sipat/crew-scheduler/pkg/events"
	"github.com/sipat/crew-scheduler/pkg/lock"
	"github.com/sipat/crew-scheduler/pkg/postgres"
	"github.com/sipat/crew-scheduler/pkg/utils"
	"github.com/sipat/crew-scheduler/pkg/utils/logging"
)

// shutdownTimeout bounds how long pending notifications may delay exit
const shutdownTimeout = 30 * time.Second

var (
	env     string
	verbose bool
	logsDir string
	app     = &commands.AppContext{}

	// closers release resources opened by initApp, in reverse order
	closers []func()
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	rootCmd := &cobra.Command{
		Use:   "sipat",
		Short: "SIPAT CLI - Automatic bus driver scheduling",
		Long:  `A CLI tool for generating daily driver schedules, reviewing compliance validations and recording driver activity.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp(cmd.Context(), tokenMode(cmd))
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.MarkPersistentFlagRequired("env")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to the console")
	rootCmd.PersistentFlags().StringVar(&logsDir, "logs-dir", logging.DefaultLogsDir, "Directory for log files")

	rootCmd.AddCommand(commands.GenerateScheduleCmd(app))
	rootCmd.AddCommand(commands.WorkerCmd(app))
	rootCmd.AddCommand(commands.MigrateCmd(app))
	rootCmd.AddCommand(commands.ListValidationsCmd(app))
	rootCmd.AddCommand(commands.ReviewValidationCmd(app))
	rootCmd.AddCommand(commands.ResolveValidationCmd(app))
	rootCmd.AddCommand(commands.RejectValidationCmd(app))
	rootCmd.AddCommand(commands.ReopenValidationCmd(app))
	rootCmd.AddCommand(commands.CompleteShiftCmd(app))
	rootCmd.AddCommand(commands.SetDriverStateCmd(app))
	rootCmd.AddCommand(commands.AuthorizeCmd(app))
	rootCmd.AddCommand(commands.InteractiveCmd())

	err := rootCmd.ExecuteContext(ctx)
	shutdown()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// initApp sets up logger, config, database, notification sinks and the run lock
func initApp(ctx context.Context, mode utils.TokenMode) error {
	var err error
	app.Env = env
	app.Ctx = ctx

	// Initialize logger
	app.Logger, err = logging.InitLogger(env, logsDir, verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.Logger.Info("Starting application")

	// Load configuration
	app.Logger.Debug("Loading configuration")
	app.Cfg, err = config.LoadWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app.Logger.Debug("Configuration loaded successfully",
		zap.Int("shift_templates", len(app.Cfg.ShiftTemplates)),
		zap.String("timezone", app.Cfg.Location().String()))

	// Connect to database
	app.Logger.Debug("Connecting to database")
	app.Database, err = postgres.NewDB(ctx, app.Cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	closers = append(closers, app.Database.Close)
	app.Logger.Debug("Database connected successfully")

	// Initialize notification sinks
	notifiers, err := initNotifiers(ctx, mode)
	if err != nil {
		return err
	}
	app.Publisher = events.NewDispatcher(app.Logger,
		[]events.AuditSink{events.NewZapAuditSink(app.Logger)},
		notifiers)
	closers = append(closers, func() {
		waitCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.Publisher.Wait(waitCtx); err != nil {
			app.Logger.Warn("Exiting with undelivered notifications", zap.Error(err))
		}
	})

	// Initialize run lock
	if redisCfg := app.Cfg.Redis; redisCfg != nil {
		app.Logger.Debug("Connecting to redis", zap.String("addr", redisCfg.Addr))
		locker, err := lock.NewRedisLocker(ctx, redisCfg.Addr, redisCfg.Password, redisCfg.DB, redisCfg.Prefix)
		if err != nil {
			return fmt.Errorf("failed to initialize run lock: %w", err)
		}
		closers = append(closers, func() { locker.Close() })
		app.Locker = locker
	} else {
		app.Logger.Debug("No redis configured, using an in-process run lock")
		app.Locker = lock.NewLocalLocker()
	}

	app.Logger.Info("Application initialized successfully")
	return nil
}

// tokenMode decides how a command obtains the notifier token. The worker runs unattended so
// it only uses the stored token.
func tokenMode(cmd *cobra.Command) utils.TokenMode {
	switch cmd.Name() {
	case commands.WorkerCommand:
		return utils.TokenStored
	case commands.AuthorizeCommand:
		return utils.TokenReauthorize
	}
	return utils.TokenPrompt
}

// initNotifiers builds the gmail and sheets notifiers enabled in the config. Both share one
// OAuth token.
func initNotifiers(ctx context.Context, mode utils.TokenMode) ([]events.Notifier, error) {
	if !app.Cfg.NeedsOAuth() {
		app.Logger.Debug("No notification sinks configured")
		return nil, nil
	}

	app.Logger.Debug("Loading OAuth client configuration")
	googleClient, err := app.Cfg.LoadGoogleClient(env)
	if err != nil {
		return nil, fmt.Errorf("failed to load OAuth client config: %w", err)
	}
	oauthConfig := googleClient.OAuth2(utils.NotifierScopes...)

	store, err := utils.NewTokenStore(app.Cfg.Notifications.TokenDir)
	if err != nil {
		return nil, err
	}
	provider := utils.NewTokenProvider(oauthConfig, store, env, app.Logger)

	token, err := provider.Get(ctx, mode, os.Stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth token: %w", err)
	}

	var notifiers []events.Notifier

	if gmailCfg := app.Cfg.Notifications.Gmail; gmailCfg != nil {
		app.Logger.Debug("Initializing gmail client")
		client, err := gmailclient.NewClient(ctx, oauthConfig, token, gmailCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create gmail client: %w", err)
		}
		notifiers = append(notifiers, gmailclient.NewNotifier(client, gmailCfg.Recipients))
	}

	if sheetsCfg := app.Cfg.Notifications.Sheets; sheetsCfg != nil {
		app.Logger.Debug("Initializing sheets client", zap.String("spreadsheet_id", sheetsCfg.SpreadsheetID))
		client, err := sheetsclient.NewClient(ctx, oauthConfig, token)
		if err != nil {
			return nil, fmt.Errorf("failed to create sheets client: %w", err)
		}
		runLog, err := sheetsclient.NewRunLog(ctx, client, sheetsCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize sheets run log: %w", err)
		}
		notifiers = append(notifiers, runLog)
	}

	return notifiers, nil
}

func shutdown() {
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
	if app.Logger != nil {
		_ = app.Logger.Sync()
	}
}
