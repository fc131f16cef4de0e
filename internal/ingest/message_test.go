package ingest

import (
	"testing"

	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/domain"
)

func TestEventMessageToDomain(t *testing.T) {
	msg := EventMessage{
		TxHash:     "0xtx1",
		Address:    "0xwallet1",
		Impact:     map[string]float64{"defi_reliability": 0.8, "liquidity_provider": 0.3},
		RiskScore:  0.2,
		DataWeight: 0.9,
		Value:      2.5,
		Protocol:   "uniswap",
		Timestamp:  "2025-06-01T12:00:00Z",
	}

	event, err := msg.ToDomain()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Address != "0xwallet1" || event.Protocol != "uniswap" {
		t.Fatalf("unexpected event %+v", event)
	}
	if event.Impact[domain.DimensionDefiReliability] != 0.8 {
		t.Fatalf("expected defi impact 0.8, got %v", event.Impact[domain.DimensionDefiReliability])
	}
	if event.Timestamp.IsZero() {
		t.Fatalf("expected parsed timestamp")
	}
}

func TestEventMessageRejectsBadTimestamp(t *testing.T) {
	msg := EventMessage{
		TxHash:    "0xtx1",
		Address:   "0xwallet1",
		Timestamp: "yesterday",
	}
	if _, err := msg.ToDomain(); err == nil {
		t.Fatalf("expected timestamp parse error")
	}
}

func TestEventMessageRejectsUnknownDimension(t *testing.T) {
	msg := EventMessage{
		TxHash:    "0xtx1",
		Address:   "0xwallet1",
		Impact:    map[string]float64{"meme_trading": 0.5},
		Timestamp: "2025-06-01T12:00:00Z",
	}
	if _, err := msg.ToDomain(); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEventMessageRoundTrip(t *testing.T) {
	original := EventMessage{
		TxHash:    "0xtx1",
		Address:   "0xwallet1",
		Impact:    map[string]float64{"staking_commitment": 1.0},
		RiskScore: 0.1,
		Value:     32,
		Protocol:  "lido",
		Timestamp: "2025-06-01T12:00:00Z",
	}

	event, err := original.ToDomain()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	back := FromDomain(event, domain.PriorityHigh)
	if back.Address != original.Address || back.Timestamp != original.Timestamp {
		t.Fatalf("expected round-trip to preserve identity, got %+v", back)
	}
	if back.Priority != string(domain.PriorityHigh) {
		t.Fatalf("expected high priority carried, got %q", back.Priority)
	}
}
