// Package main wires together the worklog tool.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/clock"
	"go.uber.org/zap"

	"github.com/JakeFAU/tempo-worklog/internal/browser"
	"github.com/JakeFAU/tempo-worklog/internal/config"
	"github.com/JakeFAU/tempo-worklog/internal/credentials"
	"github.com/JakeFAU/tempo-worklog/internal/hash/sha256"
	"github.com/JakeFAU/tempo-worklog/internal/id/uuid"
	"github.com/JakeFAU/tempo-worklog/internal/logging"
	"github.com/JakeFAU/tempo-worklog/internal/metrics"
	"github.com/JakeFAU/tempo-worklog/internal/session"
	"github.com/JakeFAU/tempo-worklog/internal/telemetry"
	"github.com/JakeFAU/tempo-worklog/internal/worklog"
)

const (
	// configEnv names the variable holding an optional config file path.
	configEnv   = "TEMPO_CONFIG"
	serviceName = "tempo-worklog"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Getenv(configEnv))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		return 1
	}
	base, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		return 1
	}
	defer func() {
		if syncErr := base.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(base)

	runID, err := uuid.New().NewID()
	if err != nil {
		base.Warn("run id generation failed", zap.Error(err))
	}
	logger := logging.ForRun(base, runID)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.InitTracerProvider(ctx, serviceName)
	if err != nil {
		logger.Error("tracer init failed", zap.Error(err))
		return 1
	}
	defer func() {
		if shutdownErr := tp.Shutdown(context.Background()); shutdownErr != nil {
			logger.Warn("tracer shutdown failed", zap.Error(shutdownErr))
		}
	}()

	ctx, span := telemetry.Tracer().Start(ctx, "tempo.run")
	logger = logger.With(zap.String("trace_id", telemetry.TraceID(ctx)))
	code := execute(ctx, cfg, logger, newLauncher)
	span.End()

	if cfg.Metrics.Textfile != "" {
		if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Warn("metrics export failed", zap.Error(err))
		}
	}
	return code
}

// launcherFactory builds the browser launcher for an enabled browser.
type launcherFactory func(cfg config.Config) (browser.Launcher, error)

// execute runs acquisition then one submission and returns the exit code.
func execute(ctx context.Context, cfg config.Config, logger *zap.Logger, launchers launcherFactory) int {
	password, err := credentials.ResolvePassword(cfg.Credentials.KeyringService, cfg.Credentials.User, cfg.Credentials.Password)
	if err != nil {
		logger.Error("password lookup failed", zap.Error(err))
		return 1
	}
	defaults := credentials.Defaults{User: cfg.Credentials.User, Password: password}

	store, err := credentials.NewStore(nil, cfg.Credentials.File)
	if err != nil {
		logger.Error("credential store init failed", zap.Error(err))
		return 1
	}

	if err := acquire(ctx, cfg, defaults, store, launchers, logger.Named("session")); err != nil {
		return 1
	}

	submitter, err := worklog.NewSubmitter(worklog.Config{
		URL:       cfg.WorklogURL(),
		Origin:    cfg.Origin(),
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   cfg.HTTPTimeout(),
		Defaults:  defaults,
	}, store, nil, logger.Named("worklog"))
	if err != nil {
		logger.Error("submitter init failed", zap.Error(err))
		return 1
	}

	wl, err := exampleWorklog(cfg.Worklog, clock.WallClock.Now())
	if err != nil {
		logger.Error("build worklog failed", zap.Error(err))
		return 1
	}
	if !submitter.Submit(ctx, wl) {
		return 1
	}
	return 0
}

func acquire(
	ctx context.Context,
	cfg config.Config,
	defaults credentials.Defaults,
	store *credentials.Store,
	launchers launcherFactory,
	logger *zap.Logger,
) error {
	if !cfg.Browser.Enabled {
		logger.Info("browser disabled; reusing stored cookies", zap.String("path", store.Path()))
		return nil
	}
	launcher, err := launchers(cfg)
	if err != nil {
		logger.Error("browser init failed", zap.Error(err))
		return err
	}

	acq, err := session.New(session.Config{
		LoginURL:          cfg.LoginURL(),
		SubmitElementID:   cfg.Browser.SubmitElementID,
		UsernameElementID: cfg.Browser.UsernameElementID,
		PasswordElementID: cfg.Browser.PasswordElementID,
		SettleDelay:       cfg.SettleDelay(),
		ClickAttempts:     cfg.Browser.ClickAttempts,
		ClickDelay:        cfg.ClickDelay(),
	}, launcher, credentials.New(defaults), store, sha256.New(), clock.WallClock, logger)
	if err != nil {
		logger.Error("acquirer init failed", zap.Error(err))
		return err
	}

	return acq.Acquire(ctx)
}

func newLauncher(cfg config.Config) (browser.Launcher, error) {
	return browser.NewChromedp(browser.Config{
		Headless:        cfg.Browser.Headless,
		ExecPath:        cfg.Browser.ExecPath,
		UserAgent:       cfg.HTTP.UserAgent,
		PageLoadTimeout: cfg.PageLoadTimeout(),
	})
}

// exampleWorklog builds the worklog posted after login. An unset start date
// means today.
func exampleWorklog(cfg config.WorklogConfig, now time.Time) (worklog.Worklog, error) {
	started := now
	if cfg.Started != "" {
		parsed, err := time.Parse(time.DateOnly, cfg.Started)
		if err != nil {
			return worklog.Worklog{}, fmt.Errorf("parse worklog.started: %w", err)
		}
		started = parsed
	}
	spent := time.Duration(cfg.TimeSpentSeconds) * time.Second
	return worklog.New(cfg.Worker, cfg.OriginTaskID, started, spent).WithComment(cfg.Comment), nil
}
