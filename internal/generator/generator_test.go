package generator

import (
	"context"
	"testing"
)

func TestGenerateProducesValidEvents(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumWallets = 10
	cfg.NumEvents = 200
	cfg.Seed = 7

	dataset, err := New(cfg).Generate(context.Background())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(dataset.Events) == 0 {
		t.Fatal("expected events, got none")
	}

	for i, msg := range dataset.Events {
		if _, err := msg.ToDomain(); err != nil {
			t.Fatalf("event %d invalid: %v", i, err)
		}
	}
}

func TestGenerateDeterministicWithSeed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumWallets = 5
	cfg.NumEvents = 100
	cfg.Seed = 99

	first, err := New(cfg).Generate(context.Background())
	if err != nil {
		t.Fatalf("first generate: %v", err)
	}
	second, err := New(cfg).Generate(context.Background())
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}

	if len(first.Events) != len(second.Events) {
		t.Fatalf("expected same event count, got %d and %d", len(first.Events), len(second.Events))
	}
	for i := range first.Events {
		if first.Events[i].TxHash != second.Events[i].TxHash {
			t.Fatalf("event %d diverged: %s vs %s", i, first.Events[i].TxHash, second.Events[i].TxHash)
		}
		if first.Events[i].Address != second.Events[i].Address {
			t.Fatalf("event %d wallet diverged", i)
		}
	}
}

func TestGenerateHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New(DefaultConfig()).Generate(ctx); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
