package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/IBM/sarama"

	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/config"
)

// Producer publishes categorized events onto the scoring topic. Used by the
// data generator; production traffic arrives from the categorization pipeline.
type Producer struct {
	topic string
	sync  sarama.SyncProducer
}

// NewProducer connects a synchronous producer with acked writes.
func NewProducer(cfg config.KafkaConfig) (*Producer, error) {
	brokers := splitCSV(cfg.BrokersCSV)
	if len(brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}

	saramaCfg := sarama.NewConfig()
	saramaCfg.Version = sarama.V2_1_0_0
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Retry.Max = 10
	saramaCfg.Producer.Retry.Backoff = 200 * time.Millisecond
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.Return.Errors = true
	saramaCfg.Producer.Idempotent = true
	saramaCfg.Net.MaxOpenRequests = 1

	sp, err := sarama.NewSyncProducer(brokers, saramaCfg)
	if err != nil {
		return nil, err
	}
	return &Producer{topic: cfg.Topic, sync: sp}, nil
}

// Publish sends one event message keyed by wallet address, so all events for
// a wallet land on the same partition and arrive in order.
func (p *Producer) Publish(ctx context.Context, msg EventMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	_, _, err = p.sync.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(msg.Address),
		Value: sarama.ByteEncoder(payload),
	})
	return err
}

// Close flushes and shuts the producer down.
func (p *Producer) Close() error {
	if p.sync != nil {
		return p.sync.Close()
	}
	return nil
}
