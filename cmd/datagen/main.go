package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/config"
	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/generator"
	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/ingest"
)

func main() {
	cfg := generator.DefaultConfig()
	var (
		wallets        = flag.Int("wallets", cfg.NumWallets, "number of wallets to generate")
		events         = flag.Int("events", cfg.NumEvents, "number of categorized events to generate")
		highRiskChance = flag.Float64("high-risk-chance", cfg.HighRiskChance, "probability of an isolated high-risk event")
		burstChance    = flag.Float64("burst-chance", cfg.BurstChance, "probability of a fraud-style event burst")
		span           = flag.Duration("span", cfg.Span, "time window the events are spread across")
		seed           = flag.Int64("seed", cfg.Seed, "random seed for deterministic generation")
		outputDir      = flag.String("output-dir", "data", "directory to write events.json")
		writeStdout    = flag.Bool("stdout", false, "write events to stdout instead of files")
		publish        = flag.Bool("publish", false, "publish events to the configured Kafka topic instead of files")
	)
	flag.Parse()

	genCfg := generator.Config{
		NumWallets:     *wallets,
		NumEvents:      *events,
		HighRiskChance: clampProbability(*highRiskChance),
		BurstChance:    clampProbability(*burstChance),
		Span:           *span,
		Seed:           *seed,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	gen := generator.New(genCfg)
	dataset, err := gen.Generate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generation failed: %v\n", err)
		os.Exit(1)
	}

	switch {
	case *publish:
		if err := publishEvents(ctx, dataset); err != nil {
			fmt.Fprintf(os.Stderr, "publishing failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stdout, "Published %d events\n", len(dataset.Events))
	case *writeStdout:
		if err := json.NewEncoder(os.Stdout).Encode(dataset); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write dataset to stdout: %v\n", err)
			os.Exit(1)
		}
	default:
		if err := generator.WriteDataset(dataset, *outputDir); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write dataset: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stdout, "Generated %d events into %s\n", len(dataset.Events), *outputDir)
	}
}

func publishEvents(ctx context.Context, dataset generator.Dataset) error {
	appCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	producer, err := ingest.NewProducer(appCfg.Kafka)
	if err != nil {
		return fmt.Errorf("create producer: %w", err)
	}
	defer producer.Close()

	for i, msg := range dataset.Events {
		if err := producer.Publish(ctx, msg); err != nil {
			return fmt.Errorf("publish event %d: %w", i, err)
		}
	}
	return nil
}

func clampProbability(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
