package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/constellahq/constellation/config"
	"github.com/constellahq/constellation/session"
	"github.com/constellahq/constellation/tui"
)

func chatCmd() *cobra.Command {
	var (
		configPath string
		serverURL  string
		hitlFlag   string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the terminal chat client",
		Long: `Chat opens the interactive terminal client against a running
constellation server. With the approval gate enabled, answers that were
revised by the reviewers are held for your approval before they are
committed to the transcript.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(configPath, serverURL, hitlFlag)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Constellation server base URL")
	cmd.Flags().StringVar(&hitlFlag, "hitl", "", "Approval gate: on or off (default from config)")
	return cmd
}

func runChat(configPath, serverURL, hitlFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gateArmed := cfg.HITL.Enabled
	switch hitlFlag {
	case "":
	case "on":
		gateArmed = true
	case "off":
		gateArmed = false
	default:
		return fmt.Errorf("invalid --hitl value %q: use on or off", hitlFlag)
	}

	client := tui.NewClient(serverURL)
	healthCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Health(healthCtx); err != nil {
		return fmt.Errorf("cannot reach %s: %w (is the server running?)", serverURL, err)
	}

	var store session.Store
	if cfg.Session.Path != "" {
		sqlStore, err := session.OpenSQLite(cfg.Session.Path)
		if err != nil {
			slog.Warn("session persistence disabled", "path", cfg.Session.Path, "error", err)
		} else {
			defer sqlStore.Close()
			store = sqlStore
		}
	}

	program := tea.NewProgram(tui.NewModel(client, gateArmed, store), tea.WithAltScreen())
	_, err = program.Run()
	return err
}
