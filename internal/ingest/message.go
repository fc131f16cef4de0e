package ingest

import (
	"fmt"
	"time"

	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/domain"
)

// EventMessage is the wire representation of a categorized event as produced
// by the upstream categorization pipeline. The same shape is accepted on the
// Kafka topic and the HTTP ingestion endpoint.
type EventMessage struct {
	TxHash     string             `json:"txHash"`
	Address    string             `json:"address"`
	Impact     map[string]float64 `json:"impact"`
	RiskScore  float64            `json:"riskScore"`
	DataWeight float64            `json:"dataWeight"`
	Value      float64            `json:"value"`
	Protocol   string             `json:"protocol"`
	Timestamp  string             `json:"timestamp"`
	Priority   string             `json:"priority,omitempty"`
}

// ToDomain converts the wire message into a validated domain event.
func (m EventMessage) ToDomain() (domain.CategorizedEvent, error) {
	event := domain.CategorizedEvent{
		TxHash:     m.TxHash,
		Address:    m.Address,
		RiskScore:  m.RiskScore,
		DataWeight: m.DataWeight,
		Value:      m.Value,
		Protocol:   m.Protocol,
	}

	if m.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, m.Timestamp)
		if err != nil {
			return domain.CategorizedEvent{}, fmt.Errorf("parse timestamp: %w", err)
		}
		event.Timestamp = ts
	}

	if len(m.Impact) > 0 {
		event.Impact = make(map[domain.Dimension]float64, len(m.Impact))
		for name, weight := range m.Impact {
			event.Impact[domain.Dimension(name)] = weight
		}
	}

	if err := event.Validate(); err != nil {
		return domain.CategorizedEvent{}, err
	}
	return event, nil
}

// FromDomain converts a domain event into its wire representation.
func FromDomain(event domain.CategorizedEvent, priority domain.Priority) EventMessage {
	msg := EventMessage{
		TxHash:     event.TxHash,
		Address:    event.Address,
		RiskScore:  event.RiskScore,
		DataWeight: event.DataWeight,
		Value:      event.Value,
		Protocol:   event.Protocol,
		Timestamp:  event.Timestamp.UTC().Format(time.RFC3339),
	}
	if priority != "" && priority != domain.PriorityNormal {
		msg.Priority = string(priority)
	}
	if len(event.Impact) > 0 {
		msg.Impact = make(map[string]float64, len(event.Impact))
		for dim, weight := range event.Impact {
			msg.Impact[string(dim)] = weight
		}
	}
	return msg
}
