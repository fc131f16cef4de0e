package generator

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/domain"
	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/ingest"
)

// Dataset contains the generated wallet events in wire form.
type Dataset struct {
	Events []ingest.EventMessage `json:"events"`
}

// Generator produces synthetic categorized events aligned with the scoring schema.
type Generator struct {
	cfg       Config
	rand      *rand.Rand
	protocols []protocolProfile
}

type protocolProfile struct {
	name      string
	dimension domain.Dimension
	baseline  float64
}

// New returns a configured Generator instance.
func New(cfg Config) *Generator {
	if cfg.NumWallets <= 0 {
		cfg.NumWallets = DefaultConfig().NumWallets
	}
	if cfg.NumEvents <= 0 {
		cfg.NumEvents = DefaultConfig().NumEvents
	}
	if cfg.HighRiskChance <= 0 {
		cfg.HighRiskChance = DefaultConfig().HighRiskChance
	}
	if cfg.BurstChance <= 0 {
		cfg.BurstChance = DefaultConfig().BurstChance
	}
	if cfg.Span <= 0 {
		cfg.Span = DefaultConfig().Span
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	return &Generator{
		cfg:  cfg,
		rand: rand.New(rand.NewSource(cfg.Seed)),
		protocols: []protocolProfile{
			{name: "aave", dimension: domain.DimensionDefiReliability, baseline: 0.6},
			{name: "compound", dimension: domain.DimensionDefiReliability, baseline: 0.55},
			{name: "makerdao", dimension: domain.DimensionDefiReliability, baseline: 0.6},
			{name: "uniswap", dimension: domain.DimensionTradingConsistency, baseline: 0.45},
			{name: "sushi", dimension: domain.DimensionTradingConsistency, baseline: 0.35},
			{name: "lido", dimension: domain.DimensionStakingCommitment, baseline: 0.65},
			{name: "snapshot", dimension: domain.DimensionGovernanceParticipation, baseline: 0.5},
			{name: "curve", dimension: domain.DimensionLiquidityProvider, baseline: 0.5},
			{name: "balancer", dimension: domain.DimensionLiquidityProvider, baseline: 0.4},
		},
	}
}

// Generate synthesises categorized events. It respects context cancellation.
func (g *Generator) Generate(ctx context.Context) (Dataset, error) {
	wallets := make([]string, g.cfg.NumWallets)
	for i := range wallets {
		wallets[i] = g.randomAddress()
	}

	now := time.Now().UTC()
	start := now.Add(-g.cfg.Span)
	step := g.cfg.Span / time.Duration(g.cfg.NumEvents)

	events := make([]ingest.EventMessage, 0, g.cfg.NumEvents)
	seq := 0

	for i := 0; i < g.cfg.NumEvents && len(events) < g.cfg.NumEvents; i++ {
		if err := ctx.Err(); err != nil {
			return Dataset{}, err
		}

		at := start.Add(time.Duration(i) * step)
		wallet := wallets[g.rand.Intn(len(wallets))]

		if g.rand.Float64() < g.cfg.BurstChance {
			// Fraud-style burst: several high-risk transfers from one wallet
			// inside a few minutes.
			burst := 3 + g.rand.Intn(3)
			for b := 0; b < burst && len(events) < g.cfg.NumEvents; b++ {
				seq++
				events = append(events, g.highRiskEvent(wallet, seq, at.Add(time.Duration(b)*time.Minute)))
			}
			continue
		}

		seq++
		if g.rand.Float64() < g.cfg.HighRiskChance {
			events = append(events, g.highRiskEvent(wallet, seq, at))
			continue
		}
		events = append(events, g.normalEvent(wallet, seq, at))
	}

	return Dataset{Events: events}, nil
}

func (g *Generator) normalEvent(wallet string, seq int, at time.Time) ingest.EventMessage {
	proto := g.protocols[g.rand.Intn(len(g.protocols))]
	impact := proto.baseline + g.rand.Float64()*0.4 - 0.1
	if impact > 1 {
		impact = 1
	}
	if impact < 0 {
		impact = 0
	}

	return ingest.EventMessage{
		TxHash:     g.randomTxHash(seq),
		Address:    wallet,
		Impact:     map[string]float64{string(proto.dimension): impact},
		RiskScore:  g.rand.Float64() * 0.3,
		DataWeight: 0.4 + g.rand.Float64()*0.6,
		Value:      g.randomValue(),
		Protocol:   proto.name,
		Timestamp:  at.Format(time.RFC3339Nano),
	}
}

func (g *Generator) highRiskEvent(wallet string, seq int, at time.Time) ingest.EventMessage {
	proto := g.protocols[g.rand.Intn(len(g.protocols))]
	return ingest.EventMessage{
		TxHash:     g.randomTxHash(seq),
		Address:    wallet,
		Impact:     map[string]float64{string(proto.dimension): 0.4 + g.rand.Float64()*0.6},
		RiskScore:  0.8 + g.rand.Float64()*0.2,
		DataWeight: 0.6 + g.rand.Float64()*0.4,
		Value:      5 + g.rand.Float64()*50,
		Protocol:   proto.name,
		Timestamp:  at.Format(time.RFC3339Nano),
	}
}

func (g *Generator) randomValue() float64 {
	// Heavy tail: most events are small, a few are large.
	switch g.rand.Intn(10) {
	case 0:
		return 10 + g.rand.Float64()*100
	case 1, 2:
		return 1 + g.rand.Float64()*9
	default:
		return g.rand.Float64()
	}
}

func (g *Generator) randomAddress() string {
	const hex = "0123456789abcdef"
	buf := make([]byte, 40)
	for i := range buf {
		buf[i] = hex[g.rand.Intn(len(hex))]
	}
	return "0x" + string(buf)
}

func (g *Generator) randomTxHash(seq int) string {
	return fmt.Sprintf("0x%056x%08x", g.rand.Int63(), seq)
}
