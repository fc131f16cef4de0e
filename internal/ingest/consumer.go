package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/IBM/sarama"

	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/config"
	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/scoring"
)

// Consumer reads categorized events from the Kafka topic and feeds them into
// the scoring engine. Malformed or invalid messages are logged and skipped so
// one bad producer cannot stall the partition.
type Consumer struct {
	group  sarama.ConsumerGroup
	topic  string
	engine *scoring.Engine
	logger *slog.Logger
}

// NewConsumer joins the configured consumer group.
func NewConsumer(cfg config.KafkaConfig, engine *scoring.Engine, logger *slog.Logger) (*Consumer, error) {
	brokers := splitCSV(cfg.BrokersCSV)
	if len(brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}

	saramaCfg := sarama.NewConfig()
	saramaCfg.Version = sarama.V2_1_0_0
	saramaCfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRange()}
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaCfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(brokers, cfg.GroupID, saramaCfg)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		group:  group,
		topic:  cfg.Topic,
		engine: engine,
		logger: logger,
	}, nil
}

// Run consumes until the context is cancelled, rejoining the group after each
// rebalance.
func (c *Consumer) Run(ctx context.Context) error {
	handler := &eventHandler{engine: c.engine, logger: c.logger}

	for {
		if err := c.group.Consume(ctx, []string{c.topic}, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Errors exposes the consumer group error channel for supervision.
func (c *Consumer) Errors() <-chan error {
	return c.group.Errors()
}

// Close leaves the consumer group.
func (c *Consumer) Close() error {
	return c.group.Close()
}

type eventHandler struct {
	engine *scoring.Engine
	logger *slog.Logger
}

func (h *eventHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *eventHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *eventHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			h.handle(session.Context(), msg)
			session.MarkMessage(msg, "")
		}
	}
}

func (h *eventHandler) handle(ctx context.Context, msg *sarama.ConsumerMessage) {
	var wire EventMessage
	if err := json.Unmarshal(msg.Value, &wire); err != nil {
		h.logger.Warn("skipping malformed event message",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return
	}

	event, err := wire.ToDomain()
	if err != nil {
		h.logger.Warn("skipping invalid event",
			"txHash", wire.TxHash,
			"address", wire.Address,
			"error", err,
		)
		return
	}

	result, err := h.engine.ProcessEvent(ctx, event, wire.Priority)
	if err != nil {
		if errors.Is(err, scoring.ErrEngineClosed) || errors.Is(err, context.Canceled) {
			return
		}
		h.logger.Error("event processing failed",
			"txHash", event.TxHash,
			"address", event.Address,
			"error", err,
		)
		return
	}

	h.logger.Debug("event processed",
		"txHash", event.TxHash,
		"address", event.Address,
		"updates", len(result.Updated),
		"anomalies", len(result.Anomalies),
		"elapsed", result.Elapsed,
	)
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
