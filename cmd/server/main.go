package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/config"
	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/graph"
	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/logging"
	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/repository"
	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/scoring"
	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/server"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	graphClient, err := buildGraphClient(ctx, cfg)
	if err != nil {
		if !errors.Is(err, graph.ErrMissingURI) {
			logger.Error("failed to create graph client", "error", err)
			os.Exit(1)
		}
		logger.Warn("no graph URI configured, running without persistence")
	}
	defer func() {
		if graphClient != nil {
			if err := graphClient.Close(context.Background()); err != nil {
				logger.Warn("closing graph client failed", "error", err)
			}
		}
	}()

	var persister scoring.Persister
	var repo *repository.Repository
	if graphClient != nil {
		repo = repository.New(graphClient)
		persister = repo
	}

	engine := scoring.NewEngine(cfg.Scoring, logger, persister)
	if repo != nil {
		if err := warmStart(ctx, logger, repo, engine); err != nil {
			logger.Warn("warm start incomplete", "error", err)
		}
	}
	engine.Start()
	defer engine.Close()

	apiHandlers := server.NewAPIHandlers(logger, engine)

	router := server.NewRouter(logger, server.RouterDependencies{
		Health:         server.GraphHealthService{Client: graphClient},
		API:            apiHandlers,
		AllowedOrigins: parseAllowedOrigins(cfg.HTTP.AllowedOriginsCSV),
	})

	srv := server.New(logger, cfg.HTTP, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("server stopped unexpectedly", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

// warmStart rehydrates engine state from the graph store so restarts do not
// reset confidence levels or trend history.
func warmStart(ctx context.Context, logger *slog.Logger, repo *repository.Repository, engine *scoring.Engine) error {
	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	addresses, err := repo.ListAddresses(loadCtx)
	if err != nil {
		return fmt.Errorf("list wallets: %w", err)
	}

	restored := 0
	for _, address := range addresses {
		profile, err := repo.LoadProfile(loadCtx, address)
		if err != nil {
			logger.Warn("skipping wallet during warm start", "address", address, "error", err)
			continue
		}
		history, err := repo.LoadHistory(loadCtx, address, repository.HistoryQuery{})
		if err != nil {
			logger.Warn("loading history failed during warm start", "address", address, "error", err)
		}
		engine.Restore(profile, history)
		restored++
	}

	logger.Info("warm start complete", "wallets", restored)
	return nil
}

func buildGraphClient(ctx context.Context, cfg config.Config) (graph.Client, error) {
	if cfg.Graph.URI == "" {
		return nil, graph.ErrMissingURI
	}

	opts := graph.Options{
		URI:            cfg.Graph.URI,
		Database:       cfg.Graph.Database,
		Username:       cfg.Graph.Username,
		Password:       cfg.Graph.Password,
		MaxConnections: cfg.Graph.MaxConnections,
	}
	return graph.NewNeo4jClient(ctx, opts)
}

func parseAllowedOrigins(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	var origins []string
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		origins = append(origins, origin)
	}
	return origins
}
