package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"meetsync/internal/google"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "meetsync",
		Usage: "Coordinate meeting times and book the confirmed slot on Google Calendar or iCloud.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "Path to a TOML config file.", EnvVars: []string{"MEETSYNC_CONFIG"}},
			&cli.StringFlag{Name: "as", Usage: "Email of the user performing the command.", EnvVars: []string{"MEETSYNC_AS"}},
		},
		Commands: []*cli.Command{
			authCommand(),
			signinCommand(),
			eventCommand(),
			respondCommand(),
			rankCommand(),
			statsCommand(),
			confirmCommand(),
			conflictsCommand(),
			syncCommand(),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		slog.Error("Application failed", "kind", errorKind(err), "error", err)
		os.Exit(1)
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google account and store its API token.",
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig(c)
			if err != nil {
				return err
			}
			logger.Info("Starting Google authentication flow.")

			config, err := google.OAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret)
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Fprintf(os.Stderr, "Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Fprint(os.Stderr, "Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := google.TokenFromWeb(c.Context, config, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			fmt.Fprint(os.Stderr, "Enter a name for this account (e.g., 'personal', 'work'): ")
			accountName, _ := reader.ReadString('\n')
			accountName = strings.TrimSpace(accountName)

			tokens := google.NewTokenStore(cfg.Google.TokenDir)
			tokenFile, err := tokens.Save(accountName, token)
			if err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}
			logger.Info("Successfully authenticated and saved token.", "file", tokenFile)

			client := google.NewClient(logger, config, tokens, cfg.Google.CalendarID)
			calendars, err := client.DiscoverCalendars(c.Context, accountName)
			if err != nil {
				logger.Warn("Could not list calendars for the new account", "error", err)
			} else {
				logger.Info("Calendars available to the account.", "calendars", calendars)
			}
			fmt.Fprintf(os.Stderr, "Link it to a user with: meetsync signin --calendar google:%s ...\n", accountName)
			return nil
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Create calendar events for confirmed events whose invites are still pending.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "once", Usage: "Process the pending confirmations once and exit (default)."},
			&cli.BoolFlag{Name: "dry-run", Usage: "Log the calendar events that would be created without creating them."},
			&cli.IntFlag{Name: "watch", Value: 300, Usage: "Retry pending invites every N seconds until interrupted. Overrides --once."},
		},
		Action: func(c *cli.Context) error {
			a, err := openApp(c, appOptions{calendars: true, dryRun: c.Bool("dry-run")})
			if err != nil {
				return err
			}
			defer a.Close()

			if c.Bool("dry-run") {
				a.logger.Info("Performing a dry run. No changes will be made.")
			}

			if c.IsSet("watch") {
				interval := time.Duration(c.Int("watch")) * time.Second
				if interval <= 0 {
					return fmt.Errorf("--watch must be positive")
				}
				a.logger.Info("Starting watcher.", "interval", interval)
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					if _, err := a.syncer.SyncPending(c.Context); err != nil {
						a.logger.Error("Sync cycle failed", "error", err)
					}
					select {
					case <-c.Context.Done():
						a.logger.Info("Watcher stopped.")
						return nil
					case <-ticker.C:
					}
				}
			}

			a.logger.Info("Running a single sync cycle.")
			summary, err := a.syncer.SyncPending(c.Context)
			if err != nil {
				return fmt.Errorf("single sync cycle failed: %w", err)
			}
			return printJSON(summary)
		},
	}
}
