package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"meetsync/internal/calendar"
	"meetsync/internal/config"
	"meetsync/internal/conflicts"
	"meetsync/internal/google"
	"meetsync/internal/icloud"
	"meetsync/internal/logutil"
	"meetsync/internal/models"
	"meetsync/internal/scheduler"
	"meetsync/internal/stats"
	"meetsync/internal/store"
	"meetsync/internal/syncer"
)

type appOptions struct {
	// calendars connects the configured providers. Commands that never
	// touch a calendar skip it to avoid network round trips.
	calendars bool
	dryRun    bool
}

type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.SQLite
	gateway  *calendar.Router
	syncer   *syncer.Syncer
	service  *scheduler.Service
	checker  *conflicts.Checker
	reporter *stats.Reporter
}

func loadConfig(c *cli.Context) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := logutil.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func openApp(c *cli.Context, opts appOptions) (*app, error) {
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	st, err := store.OpenSQLite(c.Context, cfg.DatabasePath, logger)
	if err != nil {
		return nil, err
	}

	router := calendar.NewRouter()
	if opts.calendars {
		registerGateways(c, cfg, logger, router)
	}

	sync := syncer.NewSyncer(logger, st, router, syncer.Options{
		DryRun:      opts.dryRun,
		Timeout:     cfg.Calendar.Timeout,
		Concurrency: cfg.Calendar.ConflictConcurrency,
	})
	var calendarSync scheduler.CalendarSync
	if router.Providers() > 0 {
		calendarSync = sync
	}
	service := scheduler.NewService(logger, st, calendarSync, scheduler.WithDefaultDuration(cfg.Scheduling.DefaultDurationMinutes))

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		gateway:  router,
		syncer:   sync,
		service:  service,
		checker:  conflicts.NewChecker(logger, st, router, cfg.Calendar.Timeout, cfg.Calendar.ConflictConcurrency),
		reporter: stats.NewReporter(st, service),
	}, nil
}

// registerGateways adds every provider that is configured and reachable.
// A provider that fails to initialize is skipped with a warning.
func registerGateways(c *cli.Context, cfg *config.Config, logger *slog.Logger, router *calendar.Router) {
	if cfg.Google.Enabled() {
		oauthConfig, err := google.OAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret)
		if err != nil {
			logger.Warn("Google Calendar disabled", "error", err)
		} else {
			tokens := google.NewTokenStore(cfg.Google.TokenDir)
			router.Register("google", google.NewClient(logger, oauthConfig, tokens, cfg.Google.CalendarID))
			if accounts, err := tokens.Accounts(); err == nil {
				logger.Debug("Initialized Google gateway.", "accounts", len(accounts))
			}
		}
	}

	if cfg.ICloud.Enabled() {
		client, err := icloud.NewClient(c.Context, logger, cfg.ICloud.Endpoint, cfg.ICloud.Username, cfg.ICloud.Password, cfg.ICloud.CalendarName)
		if err != nil {
			logger.Warn("iCloud calendar disabled", "error", err)
		} else {
			router.Register("icloud", client)
		}
	}
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("Failed to close database", "error", err)
	}
}

// currentUser resolves the --as email to a user.
func (a *app) currentUser(c *cli.Context) (*models.User, error) {
	email := c.String("as")
	if email == "" {
		return nil, fmt.Errorf("%w: --as <email> is required for this command", models.ErrValidation)
	}
	return a.service.UserByEmail(c.Context, email)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, models.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, models.ErrValidation):
		return "validation"
	case errors.Is(err, models.ErrExternalService):
		return "external_service"
	default:
		return "internal"
	}
}
