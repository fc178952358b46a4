// Package kafka streams audit events to a Kafka topic when brokers are
// configured. Delivery is best effort and asynchronous; the durable trail
// lives in the store.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"certledger/internal/audit"
)

// DefaultTopic is where audit events land unless overridden.
const DefaultTopic = "certledger.audit"

// Sink publishes audit events via franz-go.
type Sink struct {
	client *kgo.Client
	log    *slog.Logger
}

// NewSink connects to the brokers. Returns nil when no brokers are
// configured.
func NewSink(brokers []string, topic string, log *slog.Logger) (*Sink, error) {
	if len(brokers) == 0 {
		return nil, nil
	}
	if topic == "" {
		topic = DefaultTopic
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Sink{client: client, log: log}, nil
}

// payload is the wire shape; field names are part of the consumer contract.
type payload struct {
	ID            string `json:"id"`
	Timestamp     string `json:"timestamp"`
	CertificateID string `json:"certificate_id"`
	Action        string `json:"action"`
	TxHash        string `json:"tx_hash,omitempty"`
	RequestID     string `json:"request_id,omitempty"`
	Detail        string `json:"detail,omitempty"`
}

// Publish produces the event asynchronously, keyed by certificate so one
// certificate's trail stays ordered within a partition.
func (s *Sink) Publish(ctx context.Context, event audit.Event) {
	value, err := json.Marshal(payload{
		ID:            event.ID,
		Timestamp:     event.Timestamp.Format(time.RFC3339Nano),
		CertificateID: event.CertificateID,
		Action:        string(event.Action),
		TxHash:        event.TxHash,
		RequestID:     event.RequestID,
		Detail:        event.Detail,
	})
	if err != nil {
		s.log.ErrorContext(ctx, "marshal audit payload", "error", err.Error())
		return
	}

	record := &kgo.Record{Key: []byte(event.CertificateID), Value: value}
	s.client.Produce(ctx, record, func(r *kgo.Record, err error) {
		if err != nil {
			s.log.Error("audit event publish failed",
				"action", string(event.Action),
				"certificate_id", event.CertificateID,
				"error", err.Error(),
			)
		}
	})
}

// Close flushes buffered records and tears down the client.
func (s *Sink) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.client.Flush(ctx)
	s.client.Close()
}
