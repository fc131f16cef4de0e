package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/config"
	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/graph"
	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/ingest"
	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/logging"
	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/repository"
	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/scoring"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging).With("component", "ingest")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var persister scoring.Persister
	var graphClient graph.Client
	if cfg.Graph.URI != "" {
		graphClient, err = graph.NewNeo4jClient(ctx, graph.Options{
			URI:            cfg.Graph.URI,
			Database:       cfg.Graph.Database,
			Username:       cfg.Graph.Username,
			Password:       cfg.Graph.Password,
			MaxConnections: cfg.Graph.MaxConnections,
		})
		if err != nil {
			logger.Error("failed to create graph client", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := graphClient.Close(context.Background()); err != nil {
				logger.Warn("closing graph client failed", "error", err)
			}
		}()
		persister = repository.New(graphClient)
	} else {
		logger.Warn("no graph URI configured, scores will not be persisted")
	}

	engine := scoring.NewEngine(cfg.Scoring, logger, persister)
	engine.Start()
	defer engine.Close()

	consumer, err := ingest.NewConsumer(cfg.Kafka, engine, logger)
	if err != nil {
		logger.Error("failed to create consumer", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := consumer.Close(); err != nil {
			logger.Warn("closing consumer failed", "error", err)
		}
	}()

	logger.Info("consuming categorized events", "topic", cfg.Kafka.Topic, "group", cfg.Kafka.GroupID)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return consumer.Run(groupCtx)
	})
	group.Go(func() error {
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case err, ok := <-consumer.Errors():
				if !ok {
					return nil
				}
				logger.Error("consumer group error", "error", err)
			}
		}
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("ingest worker stopped unexpectedly", "error", err)
		os.Exit(1)
	}

	logger.Info("ingest worker stopped")
}
