package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/domain"
	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/graph"
)

func TestSaveProfileWritesAllDimensions(t *testing.T) {
	client := graph.NewMemoryClient()
	repo := New(client)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	profile := domain.NewCreditProfile("0xwallet1", now)
	profile.Dimensions[domain.DimensionDefiReliability].Score = 640

	if err := repo.SaveProfile(context.Background(), profile); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	writes := client.Writes()
	if len(writes) != 1 {
		t.Fatalf("expected 1 write, got %d", len(writes))
	}
	if writes[0].Params["address"] != "0xwallet1" {
		t.Fatalf("expected address param, got %v", writes[0].Params["address"])
	}
	dims, ok := writes[0].Params["dimensions"].([]map[string]any)
	if !ok {
		t.Fatalf("expected dimensions param, got %T", writes[0].Params["dimensions"])
	}
	if len(dims) != len(domain.AllDimensions()) {
		t.Fatalf("expected %d dimension entries, got %d", len(domain.AllDimensions()), len(dims))
	}
}

func TestSaveProfileRequiresAddress(t *testing.T) {
	repo := New(graph.NewMemoryClient())

	if err := repo.SaveProfile(context.Background(), domain.CreditProfile{}); err == nil {
		t.Fatalf("expected error for missing address")
	}
}

func TestAppendHistorySkipsEmptyBatch(t *testing.T) {
	client := graph.NewMemoryClient()
	repo := New(client)

	if err := repo.AppendHistory(context.Background(), "0xwallet1", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.Writes()) != 0 {
		t.Fatalf("expected no writes for an empty batch, got %d", len(client.Writes()))
	}
}

func TestAppendHistoryWritesEvents(t *testing.T) {
	client := graph.NewMemoryClient()
	repo := New(client)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	entries := []domain.HistoryEntry{
		{Timestamp: now, Dimension: domain.DimensionDefiReliability, Score: 572, Confidence: 35, Trigger: "defi_reliability activity on aave"},
		{Timestamp: now, Dimension: domain.DimensionStakingCommitment, Score: 540, Confidence: 32, Trigger: "staking_commitment activity on lido"},
	}
	if err := repo.AppendHistory(context.Background(), "0xwallet1", entries); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	writes := client.Writes()
	if len(writes) != 1 {
		t.Fatalf("expected 1 write, got %d", len(writes))
	}
	events, ok := writes[0].Params["events"].([]map[string]any)
	if !ok || len(events) != 2 {
		t.Fatalf("expected 2 event entries, got %v", writes[0].Params["events"])
	}
	if events[0]["dimension"] != string(domain.DimensionDefiReliability) {
		t.Fatalf("expected defi dimension on first event, got %v", events[0]["dimension"])
	}
}

func TestLoadProfileDecodesRecords(t *testing.T) {
	client := graph.NewMemoryClient()
	repo := New(client)

	client.QueueReadResult(graph.Result{Records: []graph.Record{
		{
			"lastUpdated":    "2025-06-01T12:00:00Z",
			"name":           "defi_reliability",
			"score":          640.5,
			"confidence":     72.0,
			"dataPoints":     int64(25),
			"trend":          "improving",
			"lastCalculated": "2025-06-01T11:30:00Z",
		},
		{
			"lastUpdated": "2025-06-01T12:00:00Z",
			"name":        "staking_commitment",
			"score":       510.0,
			"confidence":  40.0,
			"dataPoints":  int64(3),
			"trend":       "stable",
		},
	}})

	profile, err := repo.LoadProfile(context.Background(), "0xwallet1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	defi := profile.Dimensions[domain.DimensionDefiReliability]
	if defi.Score != 640.5 || defi.DataPoints != 25 || defi.Trend != domain.TrendImproving {
		t.Fatalf("unexpected defi dimension %+v", defi)
	}
	if defi.LastCalculated.IsZero() {
		t.Fatalf("expected lastCalculated parsed")
	}

	// Dimensions missing from the store come back at the neutral defaults.
	governance := profile.Dimensions[domain.DimensionGovernanceParticipation]
	if governance.Score != domain.ScoreNeutral || governance.DataPoints != 0 {
		t.Fatalf("expected neutral governance dimension, got %+v", governance)
	}
}

func TestLoadProfileNotFound(t *testing.T) {
	repo := New(graph.NewMemoryClient())

	_, err := repo.LoadProfile(context.Background(), "0xunknown")
	if !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}

func TestLoadHistoryDecodesAndFilters(t *testing.T) {
	client := graph.NewMemoryClient()
	repo := New(client)

	client.QueueReadResult(graph.Result{Records: []graph.Record{
		{
			"timestamp":  "2025-06-01T10:00:00Z",
			"dimension":  "defi_reliability",
			"score":      560.0,
			"confidence": 45.0,
			"trigger":    "defi_reliability activity on aave",
		},
	}})

	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	entries, err := repo.LoadHistory(context.Background(), "0xwallet1", HistoryQuery{
		Dimension: domain.DimensionDefiReliability,
		From:      from,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].Score != 560 {
		t.Fatalf("unexpected entries %+v", entries)
	}

	reads := client.Reads()
	if len(reads) != 1 {
		t.Fatalf("expected 1 read, got %d", len(reads))
	}
	if reads[0].Params["dimension"] != "defi_reliability" {
		t.Fatalf("expected dimension filter, got %v", reads[0].Params["dimension"])
	}
	if reads[0].Params["from"] == "" {
		t.Fatalf("expected from filter to be set")
	}
}

func TestListAddresses(t *testing.T) {
	client := graph.NewMemoryClient()
	repo := New(client)

	client.QueueReadResult(graph.Result{Records: []graph.Record{
		{"address": "0xwallet1"},
		{"address": "0xwallet2"},
	}})

	addresses, err := repo.ListAddresses(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(addresses) != 2 || addresses[0] != "0xwallet1" {
		t.Fatalf("unexpected addresses %v", addresses)
	}
}

func TestRepositoryWrapsClientErrors(t *testing.T) {
	boom := errors.New("graph offline")
	client := graph.NewMemoryClient().FailWith(boom)
	repo := New(client)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := repo.SaveProfile(context.Background(), domain.NewCreditProfile("0xwallet1", now)); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped client error, got %v", err)
	}
	if _, err := repo.LoadProfile(context.Background(), "0xwallet1"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped client error, got %v", err)
	}
}
