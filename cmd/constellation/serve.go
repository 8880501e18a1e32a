package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/constellahq/constellation/auditor"
	"github.com/constellahq/constellation/bus"
	"github.com/constellahq/constellation/config"
	"github.com/constellahq/constellation/engine"
	"github.com/constellahq/constellation/kb"
	"github.com/constellahq/constellation/llm"
	"github.com/constellahq/constellation/server"
)

func serveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the orchestration HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	return cmd
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := slog.Default()

	registry, err := auditorRegistry(cfg)
	if err != nil {
		return fmt.Errorf("build auditor registry: %w", err)
	}

	client := llm.NewClient(cfg.Registry(), llm.WithLogger(logger))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	knowledge := kb.NewStore(logger)
	knowledge.SetEnabled(cfg.Knowledge.Enabled)
	if cfg.Knowledge.Dir != "" {
		if err := knowledge.LoadDir(cfg.Knowledge.Dir, cfg.Knowledge.Patterns); err != nil {
			return fmt.Errorf("load knowledge base: %w", err)
		}
		if cfg.Knowledge.Watch {
			go func() {
				if err := knowledge.Watch(ctx, cfg.Knowledge.Dir, cfg.Knowledge.Patterns); err != nil &&
					!errors.Is(err, context.Canceled) {
					logger.Warn("knowledge base watcher stopped", "error", err)
				}
			}()
		}
	}

	publisher, err := bus.Connect(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
	if err != nil {
		return fmt.Errorf("connect event bus: %w", err)
	}
	defer publisher.Close()

	coordinator := engine.New(client, registry,
		engine.WithLogger(logger),
		engine.WithRetriever(knowledge),
		engine.WithAuditTimeout(cfg.Auditors.Timeout),
	)

	api := server.New(coordinator,
		server.WithLogger(logger),
		server.WithKnowledge(knowledge),
		server.WithPublisher(publisher),
		server.WithAllowOrigin(cfg.Server.AllowOrigin),
	)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// auditorRegistry builds the registry from the built-in defaults plus any
// configured extra activation keywords.
func auditorRegistry(cfg *config.Config) (*auditor.Registry, error) {
	defs := auditor.Defaults()
	for i := range defs {
		extra, ok := cfg.Auditors.ExtraKeywords[string(defs[i].ID)]
		if !ok {
			continue
		}
		defs[i].Keywords = append(defs[i].Keywords, extra...)
	}
	return auditor.NewRegistry(defs)
}
