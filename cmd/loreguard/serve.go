package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/loreguard-ai/loreguard/internal/api"
	"github.com/loreguard-ai/loreguard/internal/database"
	"github.com/loreguard-ai/loreguard/internal/events"
	"github.com/loreguard-ai/loreguard/internal/guardrail"
	"github.com/loreguard-ai/loreguard/internal/redact"
	"github.com/loreguard-ai/loreguard/internal/scanner"
)

// reviewSweepInterval drives the expired review queue sweeper.
const reviewSweepInterval = time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the loreguard server",
	Long: `Start the HTTP API and, when enabled, the guardrail evaluation
loop. The server exposes content evaluation and redaction endpoints and
sweeps expired review queue entries in the background.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := slog.Default()

	dbCfg := database.DefaultConfig(cfg.Database.Path)
	if cfg.Database.MaxOpenConns > 0 {
		dbCfg.MaxOpenConns = cfg.Database.MaxOpenConns
	}
	if cfg.Database.MaxIdleConns > 0 {
		dbCfg.MaxIdleConns = cfg.Database.MaxIdleConns
	}
	db, err := database.OpenWithConfig(dbCfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.InitSchema(); err != nil {
		return err
	}

	bus := events.NewBus(events.WithDefaultBufferSize(cfg.Engine.BusBufferSize))
	defer bus.Close()

	reviewDAO := database.NewReviewDAO(db)
	pipeline, err := redact.NewPipeline(redact.Config{
		Secrets: scanner.Config{
			MinConfidence:    cfg.Pipeline.SecretsMinConfidence,
			EntropyEnabled:   true,
			EntropyThreshold: cfg.Pipeline.EntropyThreshold,
		},
		PII: scanner.Config{
			MinConfidence: cfg.Pipeline.PIIMinConfidence,
		},
		AllowedDomains: cfg.Pipeline.AllowedDomains,
		ReviewEnabled:  cfg.Pipeline.ReviewEnabled,
		ReviewStore:    reviewDAO,
	})
	if err != nil {
		return err
	}

	eventDAO := database.NewEventDAO(db)
	engine := guardrail.NewEngine(
		database.NewRuleDAO(db),
		database.NewStateDAO(db),
		database.NewHistoryDAO(db),
		eventDAO,
		database.NewAgentDAO(db),
		scanner.NewRegistry(),
		bus,
	)

	opts := []api.ServerOption{
		api.WithLogger(logger),
		api.WithEventIngestion(eventDAO, bus),
		api.WithBatchConcurrency(cfg.Pipeline.BatchConcurrency),
	}
	if cfg.Server.RateLimit.Enabled {
		opts = append(opts, api.WithRateLimit(cfg.Server.RateLimit.RequestsPerSecond, cfg.Server.RateLimit.Burst))
	}
	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      api.NewServer(engine, pipeline, opts...).Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Engine.Enabled {
		g.Go(func() error {
			if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("guardrail engine: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(reviewSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				swept, err := reviewDAO.DeleteExpired(ctx, time.Now().UTC())
				if err != nil {
					logger.Warn("review queue sweep failed", "error", err)
					continue
				}
				if swept > 0 {
					logger.Info("swept expired review entries", "count", swept)
				}
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
