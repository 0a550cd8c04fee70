// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package cli implements selloutctl, a terminal session against the sellout
// API: one-shot product commands plus a live "watch" view that follows the
// change feed.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"sellout/internal/config"
)

// App carries the settings shared by every command.
type App struct {
	APIURL  string
	Verbose bool

	cfg *config.Client
}

// NewRootCmd builds the selloutctl command tree.
func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:           "selloutctl",
		Short:         "Manage the sellout order of the product catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: strings.TrimSpace(`
  # Show the visible products in sellout order
  selloutctl list

  # Move a product to the top (id or unique id prefix)
  selloutctl move 3f2a 1

  # Follow changes made by other users
  selloutctl watch
`),
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadClient()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if app.APIURL != "" {
			cfg.APIURL = app.APIURL
		}
		app.cfg = cfg
		slog.SetDefault(newLogger(cmd.ErrOrStderr(), app.Verbose))
		return nil
	}

	cmd.PersistentFlags().StringVar(&app.APIURL, "api-url", "", "Base URL of the sellout API (default $SELLOUT_API_URL or http://localhost:8080)")
	cmd.PersistentFlags().BoolVarP(&app.Verbose, "verbose", "v", false, "Log sync and connection details to stderr")

	cmd.AddCommand(newListCmd(app))
	cmd.AddCommand(newAddCmd(app))
	cmd.AddCommand(newEditCmd(app))
	cmd.AddCommand(newMoveCmd(app))
	cmd.AddCommand(newHideCmd(app))
	cmd.AddCommand(newUnhideCmd(app))
	cmd.AddCommand(newDeleteCmd(app))
	cmd.AddCommand(newRebalanceCmd(app))
	cmd.AddCommand(newSyncCmd(app))
	cmd.AddCommand(newWatchCmd(app))

	return cmd
}

// newLogger keeps the terminal quiet unless --verbose is set.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
