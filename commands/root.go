// Package commands wires the Side Quest CLI: session management plus
// adventurer and quest operations against the configured backend.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"sideQuest/clients/sidequest"
	"sideQuest/envvars"
	"sideQuest/services/adventurer"
	"sideQuest/services/auth"
	"sideQuest/services/quest"
	"sideQuest/tokens"
)

const appName = "sidequest"

// app bundles the wired client and domain services every command needs.
type app struct {
	env         envvars.Env
	tokens      tokens.Store
	client      *sidequest.Client
	auth        auth.Service
	adventurers adventurer.Service
	quests      quest.Service
}

func newApp() (*app, error) {
	env := envvars.GetEnv()

	tokenPath := env.TokenPath
	if tokenPath == "" {
		var err error
		tokenPath, err = tokens.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("resolving token path: %w", err)
		}
	}
	store := tokens.NewFileStore(tokenPath)

	// The burst covers the check-then-fetch pairs the services issue.
	client, err := sidequest.New(env.APIBaseURL, store,
		sidequest.WithHeader("User-Agent", appName),
		sidequest.WithRateLimit(rate.Limit(10), 5),
	)
	if err != nil {
		return nil, fmt.Errorf("building client: %w", err)
	}

	base := env.BasePath()
	return &app{
		env:         env,
		tokens:      store,
		client:      client,
		auth:        auth.NewService(client, store, base),
		adventurers: adventurer.NewService(client, base),
		quests:      quest.NewService(client, base),
	}, nil
}

// requireSession confirms there is a live session before a guarded command
// touches the backend.
func (a *app) requireSession(ctx context.Context) error {
	state, err := a.auth.CheckAuthStatus(ctx)
	if err != nil {
		return err
	}
	if state != auth.StateAuthenticated {
		return fmt.Errorf("not logged in, run `%s login` first", appName)
	}
	return nil
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Track adventurers and the quests that level them up",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			configureLogging(logLevel)
		},
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		loginCmd(),
		registerCmd(),
		logoutCmd(),
		whoamiCmd(),
		adventurerCmd(),
		questCmd(),
		devServerCmd(),
	)
	return cmd
}

func configureLogging(logLevel string) {
	level := slog.LevelWarn
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}
