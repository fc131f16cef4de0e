package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/domain"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP    HTTPConfig
	Graph   GraphConfig
	Logging LoggingConfig
	Kafka   KafkaConfig
	Scoring ScoringConfig
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Host              string
	Port              int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	AllowedOriginsCSV string
}

// GraphConfig describes connectivity to the graph store used for profile and
// history snapshots.
type GraphConfig struct {
	URI            string
	Database       string
	Username       string
	Password       string
	MaxConnections int
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string
	Format        string // text|json
	IncludeCaller bool
}

// KafkaConfig describes the categorized-event topic consumed by the ingest
// worker and written by the data generator.
type KafkaConfig struct {
	BrokersCSV string
	Topic      string
	GroupID    string
}

// ScoringConfig groups the tunables of every engine component. All values are
// independently overridable through the environment; the weighting tables and
// thresholds below are starting points, not empirically validated constants.
type ScoringConfig struct {
	Calculator CalculatorConfig
	Confidence ConfidenceConfig
	Trend      TrendConfig
	Anomaly    AnomalyConfig
	Scheduler  SchedulerConfig
	Engine     EngineConfig
}

// CalculatorConfig parameterizes score delta computation.
type CalculatorConfig struct {
	RiskPenaltyWeight     float64
	DataWeightCoefficient float64
	ScaleFactor           float64
	MinChange             float64
	ProtocolCeiling       float64
	HighRiskCutoff        float64
	HighRiskPenaltyFactor float64
	StakingLowRiskBonus   float64
	StakingLowRiskCutoff  float64
	TradingHighRiskFactor float64
	DimensionMultipliers  map[domain.Dimension]float64
	ProtocolReliability   map[string]float64
	ValueBands            []ValueBand
}

// ValueBand maps a minimum event value to its magnitude multiplier. Bands are
// evaluated from the largest threshold down.
type ValueBand struct {
	Threshold  float64
	Multiplier float64
}

// ConfidenceConfig parameterizes the confidence analyzer.
type ConfidenceConfig struct {
	Baseline float64

	// Data sufficiency step thresholds (data points) and their deltas.
	MinimalPoints   int
	AdequatePoints  int
	ExcellentPoints int

	InsufficientDelta float64
	MinimalDelta      float64
	AdequateDelta     float64
	ExcellentDelta    float64

	// Freshness bands for the age of the last calculation.
	FreshHourDelta float64
	FreshDayDelta  float64
	FreshWeekDelta float64
	StaleDelta     float64

	// Trend consistency deltas.
	StableDelta    float64
	ImprovingDelta float64
	DecliningDelta float64

	// Cross-dimension validation bands: absolute deviation from the mean of
	// the wallet's other dimensions that carry data.
	CloseDeviation float64
	MidDeviation   float64
	FarDeviation   float64
	CloseDelta     float64
	MidDelta       float64
	NoPeerPenalty  float64
	FarPenalty     float64

	IntervalWidthFactor float64
}

// TrendConfig parameterizes trend analysis.
type TrendConfig struct {
	MinDataPoints     int
	DeadBandBase      float64
	StrengthScale     float64
	VolatilityWindow  int
	MomentumMinPoints int
	ProjectionHorizon time.Duration
}

// AnomalyConfig parameterizes behavioural anomaly detection.
type AnomalyConfig struct {
	WindowSize        int
	RecentWindow      time.Duration
	VolumeRatio       float64
	FrequencyRatio    float64
	MinLifetimeEvents int
	FraudClusterSize  int
	FraudRiskCutoff   float64
	FraudWindow       time.Duration
	ReportBuffer      int
}

// SchedulerConfig parameterizes SLA-governed publication timing.
type SchedulerConfig struct {
	PositiveSLA       time.Duration
	NegativeSLA       time.Duration
	SweepInterval     time.Duration
	HighEarlyWindow   time.Duration
	NormalEarlyWindow time.Duration
	MaxAttempts       int
}

// EngineConfig parameterizes the orchestrator.
type EngineConfig struct {
	MinConfidence       float64
	RiskCutoff          float64
	ImmediateEscalation bool
	HistoryLimit        int
	LockStripes         int
	PersistTimeout      time.Duration
}

const (
	defaultHost            = "0.0.0.0"
	defaultPort            = 8080
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 15 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultLoggingLevel    = "info"
	defaultLoggingFormat   = "text"
	defaultGraphSessions   = 10
	defaultKafkaTopic      = "categorized-events"
	defaultKafkaGroup      = "credit-scoring"
)

// DefaultScoringConfig returns the engine tunables with their documented defaults.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		Calculator: CalculatorConfig{
			RiskPenaltyWeight:     0.5,
			DataWeightCoefficient: 0.2,
			ScaleFactor:           50,
			MinChange:             1.0,
			ProtocolCeiling:       1.5,
			HighRiskCutoff:        0.7,
			HighRiskPenaltyFactor: 0.6,
			StakingLowRiskBonus:   0.15,
			StakingLowRiskCutoff:  0.2,
			TradingHighRiskFactor: 1.5,
			DimensionMultipliers: map[domain.Dimension]float64{
				domain.DimensionDefiReliability:         1.0,
				domain.DimensionTradingConsistency:      0.9,
				domain.DimensionStakingCommitment:       1.2,
				domain.DimensionGovernanceParticipation: 1.5,
				domain.DimensionLiquidityProvider:       1.1,
			},
			ProtocolReliability: map[string]float64{
				"aave":     1.2,
				"compound": 1.15,
				"makerdao": 1.2,
				"uniswap":  1.1,
				"curve":    1.1,
				"lido":     1.15,
				"balancer": 1.05,
				"sushi":    1.0,
			},
			ValueBands: []ValueBand{
				{Threshold: 10, Multiplier: 1.5},
				{Threshold: 1, Multiplier: 1.2},
				{Threshold: 0.1, Multiplier: 1.0},
				{Threshold: 0.01, Multiplier: 0.8},
				{Threshold: 0, Multiplier: 0.5},
			},
		},
		Confidence: ConfidenceConfig{
			Baseline:            50,
			MinimalPoints:       5,
			AdequatePoints:      20,
			ExcellentPoints:     50,
			InsufficientDelta:   -20,
			MinimalDelta:        -5,
			AdequateDelta:       10,
			ExcellentDelta:      20,
			FreshHourDelta:      10,
			FreshDayDelta:       5,
			FreshWeekDelta:      -5,
			StaleDelta:          -15,
			StableDelta:         5,
			ImprovingDelta:      2,
			DecliningDelta:      -3,
			CloseDeviation:      50,
			MidDeviation:        150,
			FarDeviation:        300,
			CloseDelta:          10,
			MidDelta:            5,
			NoPeerPenalty:       -10,
			FarPenalty:          -10,
			IntervalWidthFactor: 2.0,
		},
		Trend: TrendConfig{
			MinDataPoints:     5,
			DeadBandBase:      10,
			StrengthScale:     10,
			VolatilityWindow:  20,
			MomentumMinPoints: 3,
			ProjectionHorizon: 30 * 24 * time.Hour,
		},
		Anomaly: AnomalyConfig{
			WindowSize:        50,
			RecentWindow:      time.Hour,
			VolumeRatio:       3.0,
			FrequencyRatio:    5.0,
			MinLifetimeEvents: 10,
			FraudClusterSize:  3,
			FraudRiskCutoff:   0.8,
			FraudWindow:       10 * time.Minute,
			ReportBuffer:      256,
		},
		Scheduler: SchedulerConfig{
			PositiveSLA:       4 * time.Hour,
			NegativeSLA:       24 * time.Hour,
			SweepInterval:     time.Minute,
			HighEarlyWindow:   30 * time.Minute,
			NormalEarlyWindow: 60 * time.Minute,
			MaxAttempts:       3,
		},
		Engine: EngineConfig{
			MinConfidence:       30,
			RiskCutoff:          0.7,
			ImmediateEscalation: true,
			HistoryLimit:        1000,
			LockStripes:         64,
			PersistTimeout:      5 * time.Second,
		},
	}
}

// Load reads configuration from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		HTTP: HTTPConfig{
			Host:            valueOrDefault("SERVER_HOST", defaultHost),
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			IdleTimeout:     defaultIdleTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:         valueOrDefault("LOG_LEVEL", defaultLoggingLevel),
			Format:        valueOrDefault("LOG_FORMAT", defaultLoggingFormat),
			IncludeCaller: parseBoolWithDefault("LOG_INCLUDE_CALLER", false),
		},
		Graph: GraphConfig{
			URI:            os.Getenv("GRAPH_URI"),
			Database:       valueOrDefault("GRAPH_DATABASE", ""),
			Username:       os.Getenv("GRAPH_USERNAME"),
			Password:       os.Getenv("GRAPH_PASSWORD"),
			MaxConnections: parseIntWithDefault("GRAPH_MAX_CONNECTIONS", defaultGraphSessions),
		},
		Kafka: KafkaConfig{
			BrokersCSV: os.Getenv("KAFKA_BROKERS"),
			Topic:      valueOrDefault("KAFKA_TOPIC", defaultKafkaTopic),
			GroupID:    valueOrDefault("KAFKA_GROUP_ID", defaultKafkaGroup),
		},
		Scoring: DefaultScoringConfig(),
	}

	port, err := parsePort("SERVER_PORT", defaultPort)
	if err != nil {
		return Config{}, err
	}
	cfg.HTTP.Port = port
	cfg.HTTP.AllowedOriginsCSV = os.Getenv("SERVER_ALLOWED_ORIGINS")

	if err := applyHTTPDurations(&cfg.HTTP); err != nil {
		return Config{}, err
	}
	if err := applyScoringOverrides(&cfg.Scoring); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyHTTPDurations(httpCfg *HTTPConfig) error {
	durations := []struct {
		key    string
		target *time.Duration
	}{
		{"SERVER_READ_TIMEOUT", &httpCfg.ReadTimeout},
		{"SERVER_WRITE_TIMEOUT", &httpCfg.WriteTimeout},
		{"SERVER_IDLE_TIMEOUT", &httpCfg.IdleTimeout},
		{"SERVER_SHUTDOWN_TIMEOUT", &httpCfg.ShutdownTimeout},
	}
	for _, d := range durations {
		if err := parseDurationEnv(d.key, d.target); err != nil {
			return err
		}
	}
	return nil
}

func applyScoringOverrides(sc *ScoringConfig) error {
	durations := []struct {
		key    string
		target *time.Duration
	}{
		{"SLA_POSITIVE", &sc.Scheduler.PositiveSLA},
		{"SLA_NEGATIVE", &sc.Scheduler.NegativeSLA},
		{"SCHEDULER_SWEEP_INTERVAL", &sc.Scheduler.SweepInterval},
		{"SCHEDULER_HIGH_EARLY_WINDOW", &sc.Scheduler.HighEarlyWindow},
		{"SCHEDULER_NORMAL_EARLY_WINDOW", &sc.Scheduler.NormalEarlyWindow},
		{"ANOMALY_RECENT_WINDOW", &sc.Anomaly.RecentWindow},
		{"ANOMALY_FRAUD_WINDOW", &sc.Anomaly.FraudWindow},
		{"ENGINE_PERSIST_TIMEOUT", &sc.Engine.PersistTimeout},
	}
	for _, d := range durations {
		if err := parseDurationEnv(d.key, d.target); err != nil {
			return err
		}
	}

	floats := []struct {
		key    string
		target *float64
	}{
		{"ENGINE_MIN_CONFIDENCE", &sc.Engine.MinConfidence},
		{"ENGINE_RISK_CUTOFF", &sc.Engine.RiskCutoff},
		{"ANOMALY_VOLUME_RATIO", &sc.Anomaly.VolumeRatio},
		{"ANOMALY_FREQUENCY_RATIO", &sc.Anomaly.FrequencyRatio},
		{"ANOMALY_FRAUD_RISK_CUTOFF", &sc.Anomaly.FraudRiskCutoff},
		{"CALC_RISK_PENALTY_WEIGHT", &sc.Calculator.RiskPenaltyWeight},
		{"CALC_SCALE_FACTOR", &sc.Calculator.ScaleFactor},
		{"CALC_MIN_CHANGE", &sc.Calculator.MinChange},
		{"CALC_PROTOCOL_CEILING", &sc.Calculator.ProtocolCeiling},
	}
	for _, f := range floats {
		if err := parseFloatEnv(f.key, f.target); err != nil {
			return err
		}
	}

	ints := []struct {
		key    string
		target *int
	}{
		{"TREND_MIN_DATA_POINTS", &sc.Trend.MinDataPoints},
		{"ANOMALY_FRAUD_CLUSTER_SIZE", &sc.Anomaly.FraudClusterSize},
		{"SCHEDULER_MAX_ATTEMPTS", &sc.Scheduler.MaxAttempts},
		{"ENGINE_HISTORY_LIMIT", &sc.Engine.HistoryLimit},
	}
	for _, i := range ints {
		if v := os.Getenv(i.key); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", i.key, err)
			}
			*i.target = parsed
		}
	}

	sc.Engine.ImmediateEscalation = parseBoolWithDefault("ENGINE_IMMEDIATE_ESCALATION", sc.Engine.ImmediateEscalation)

	if v := os.Getenv("CALC_PROTOCOL_WEIGHTS"); v != "" {
		table, err := parseWeightTable(v)
		if err != nil {
			return fmt.Errorf("invalid CALC_PROTOCOL_WEIGHTS: %w", err)
		}
		for protocol, weight := range table {
			sc.Calculator.ProtocolReliability[protocol] = weight
		}
	}

	if v := os.Getenv("CALC_DIMENSION_WEIGHTS"); v != "" {
		table, err := parseWeightTable(v)
		if err != nil {
			return fmt.Errorf("invalid CALC_DIMENSION_WEIGHTS: %w", err)
		}
		for name, weight := range table {
			dim, err := domain.ParseDimension(name)
			if err != nil {
				return fmt.Errorf("invalid CALC_DIMENSION_WEIGHTS: %w", err)
			}
			sc.Calculator.DimensionMultipliers[dim] = weight
		}
	}

	return nil
}

// parseWeightTable parses "name:weight,name:weight" override strings.
func parseWeightTable(raw string) (map[string]float64, error) {
	table := make(map[string]float64)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, found := strings.Cut(pair, ":")
		if !found {
			return nil, fmt.Errorf("entry %q is not name:weight", pair)
		}
		weight, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", pair, err)
		}
		table[strings.ToLower(strings.TrimSpace(name))] = weight
	}
	return table, nil
}

func parseDurationEnv(key string, target *time.Duration) error {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*target = d
	}
	return nil
}

func parseFloatEnv(key string, target *float64) error {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*target = f
	}
	return nil
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return val
	}
	return fallback
}

func parseIntWithDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			return val
		}
	}
	return fallback
}

func parsePort(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		if port <= 0 || port > 65535 {
			return 0, fmt.Errorf("port %d is out of range", port)
		}
		return port, nil
	}
	return fallback, nil
}
