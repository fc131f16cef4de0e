package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/domain"
	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/graph"
)

// ErrProfileNotFound indicates no snapshot exists for the requested wallet.
var ErrProfileNotFound = errors.New("profile not found")

// HistoryQuery filters a wallet's score log.
type HistoryQuery struct {
	Dimension domain.Dimension
	From      time.Time
	To        time.Time
	Limit     int
}

// Repository persists credit profiles and score history in the graph store.
// Each wallet is a node with one Dimension node per scoring dimension and an
// append-only chain of ScoreEvent nodes.
type Repository struct {
	client graph.Client
}

// New instantiates a Repository backed by the supplied graph client.
func New(client graph.Client) *Repository {
	return &Repository{client: client}
}

// SaveProfile upserts the wallet node and all five dimension nodes.
func (r *Repository) SaveProfile(ctx context.Context, profile domain.CreditProfile) error {
	if profile.Address == "" {
		return errors.New("wallet address is required")
	}

	dimensions := make([]map[string]any, 0, len(profile.Dimensions))
	for name, dim := range profile.Dimensions {
		dimensions = append(dimensions, map[string]any{
			"name":           string(name),
			"score":          dim.Score,
			"confidence":     dim.Confidence,
			"dataPoints":     dim.DataPoints,
			"trend":          string(dim.Trend),
			"lastCalculated": formatTime(dim.LastCalculated),
		})
	}

	params := map[string]any{
		"address":     profile.Address,
		"lastUpdated": formatTime(profile.LastUpdated),
		"dimensions":  dimensions,
	}

	if _, err := r.client.ExecuteWrite(ctx, upsertProfileCypher, params); err != nil {
		return fmt.Errorf("save profile %s: %w", profile.Address, err)
	}
	return nil
}

// AppendHistory records score events against the wallet node.
func (r *Repository) AppendHistory(ctx context.Context, address string, entries []domain.HistoryEntry) error {
	if address == "" {
		return errors.New("wallet address is required")
	}
	if len(entries) == 0 {
		return nil
	}

	events := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		events = append(events, map[string]any{
			"timestamp":  formatTime(entry.Timestamp),
			"dimension":  string(entry.Dimension),
			"score":      entry.Score,
			"confidence": entry.Confidence,
			"trigger":    entry.Trigger,
		})
	}

	params := map[string]any{
		"address": address,
		"events":  events,
	}

	if _, err := r.client.ExecuteWrite(ctx, appendHistoryCypher, params); err != nil {
		return fmt.Errorf("append history for %s: %w", address, err)
	}
	return nil
}

// LoadProfile reconstructs a wallet's profile from its dimension nodes.
// Dimensions absent from the store come back at the neutral defaults so a
// partially persisted profile still loads complete.
func (r *Repository) LoadProfile(ctx context.Context, address string) (domain.CreditProfile, error) {
	if address == "" {
		return domain.CreditProfile{}, errors.New("wallet address is required")
	}

	res, err := r.client.ExecuteRead(ctx, loadProfileCypher, map[string]any{
		"address": address,
	})
	if err != nil {
		return domain.CreditProfile{}, fmt.Errorf("load profile %s: %w", address, err)
	}
	if len(res.Records) == 0 {
		return domain.CreditProfile{}, ErrProfileNotFound
	}

	profile := domain.NewCreditProfile(address, time.Time{})
	for _, record := range res.Records {
		if updated := toTimePtr(record["lastUpdated"]); updated != nil {
			profile.LastUpdated = *updated
		}

		name, err := domain.ParseDimension(toString(record["name"]))
		if err != nil {
			continue
		}
		dim := profile.Dimensions[name]
		dim.Score = toFloat64(record["score"])
		dim.Confidence = toFloat64(record["confidence"])
		dim.DataPoints = toInt(record["dataPoints"])
		dim.Trend = domain.Trend(toString(record["trend"]))
		if ts := toTimePtr(record["lastCalculated"]); ts != nil {
			dim.LastCalculated = *ts
		}
	}
	return profile, nil
}

// LoadHistory returns a wallet's score events matching the query, oldest first.
func (r *Repository) LoadHistory(ctx context.Context, address string, q HistoryQuery) ([]domain.HistoryEntry, error) {
	if address == "" {
		return nil, errors.New("wallet address is required")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 1000
	}

	params := map[string]any{
		"address":   address,
		"dimension": string(q.Dimension),
		"from":      formatOptionalTime(q.From),
		"to":        formatOptionalTime(q.To),
		"limit":     limit,
	}

	res, err := r.client.ExecuteRead(ctx, loadHistoryCypher, params)
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", address, err)
	}

	var entries []domain.HistoryEntry
	for _, record := range res.Records {
		entry := domain.HistoryEntry{
			Dimension:  domain.Dimension(toString(record["dimension"])),
			Score:      toFloat64(record["score"]),
			Confidence: toFloat64(record["confidence"]),
			Trigger:    toString(record["trigger"]),
		}
		if ts := toTimePtr(record["timestamp"]); ts != nil {
			entry.Timestamp = *ts
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ListAddresses returns every persisted wallet address, used for warm starts.
func (r *Repository) ListAddresses(ctx context.Context) ([]string, error) {
	res, err := r.client.ExecuteRead(ctx, listAddressesCypher, nil)
	if err != nil {
		return nil, fmt.Errorf("list wallet addresses: %w", err)
	}

	var addresses []string
	for _, record := range res.Records {
		if addr := toString(record["address"]); addr != "" {
			addresses = append(addresses, addr)
		}
	}
	return addresses, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatOptionalTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func toString(val any) string {
	s, _ := val.(string)
	return s
}

func toFloat64(val any) float64 {
	switch v := val.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

func toInt(val any) int {
	switch v := val.(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func toTimePtr(val any) *time.Time {
	switch v := val.(type) {
	case time.Time:
		return &v
	case string:
		if v == "" {
			return nil
		}
		if parsed, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return &parsed
		}
	}
	return nil
}

const upsertProfileCypher = `
MERGE (w:Wallet {address: $address})
SET w.lastUpdated = $lastUpdated
WITH w
UNWIND $dimensions AS dim
MERGE (w)-[:HAS_DIMENSION]->(d:Dimension {name: dim.name})
SET d.score = dim.score,
    d.confidence = dim.confidence,
    d.dataPoints = dim.dataPoints,
    d.trend = dim.trend,
    d.lastCalculated = dim.lastCalculated
`

const appendHistoryCypher = `
MERGE (w:Wallet {address: $address})
WITH w
UNWIND $events AS event
CREATE (w)-[:SCORED]->(:ScoreEvent {
  timestamp: event.timestamp,
  dimension: event.dimension,
  score: event.score,
  confidence: event.confidence,
  trigger: event.trigger
})
`

const loadProfileCypher = `
MATCH (w:Wallet {address: $address})-[:HAS_DIMENSION]->(d:Dimension)
RETURN w.lastUpdated AS lastUpdated,
       d.name AS name,
       d.score AS score,
       d.confidence AS confidence,
       d.dataPoints AS dataPoints,
       d.trend AS trend,
       d.lastCalculated AS lastCalculated
`

const loadHistoryCypher = `
MATCH (w:Wallet {address: $address})-[:SCORED]->(e:ScoreEvent)
WHERE ($dimension = '' OR e.dimension = $dimension)
  AND ($from = '' OR e.timestamp >= $from)
  AND ($to = '' OR e.timestamp <= $to)
RETURN e.timestamp AS timestamp,
       e.dimension AS dimension,
       e.score AS score,
       e.confidence AS confidence,
       e.trigger AS trigger
ORDER BY e.timestamp ASC
LIMIT $limit
`

const listAddressesCypher = `
MATCH (w:Wallet)
RETURN w.address AS address
ORDER BY address ASC
`
