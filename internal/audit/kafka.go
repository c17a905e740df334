package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"othello/internal/platform/kafka/producer"
)

// KafkaSink publishes audit records to a Kafka topic for downstream
// consumers (compliance archival, analytics). Keyed by user so one user's
// trail stays ordered within a partition.
type KafkaSink struct {
	producer *producer.Producer
	topic    string
}

func NewKafkaSink(p *producer.Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: p, topic: topic}
}

type kafkaRecord struct {
	UserID        string `json:"user_id"`
	Seq           uint64 `json:"seq"`
	Kind          string `json:"kind"`
	Before        string `json:"before,omitempty"`
	After         string `json:"after"`
	Actor         string `json:"actor"`
	CorrelationID string `json:"correlation_id"`
	Timestamp     string `json:"timestamp"`
}

func (s *KafkaSink) Publish(ctx context.Context, record Record) error {
	payload, err := json.Marshal(kafkaRecord{
		UserID:        record.UserID.String(),
		Seq:           record.Seq,
		Kind:          string(record.Kind),
		Before:        record.Before,
		After:         record.After,
		Actor:         string(record.Actor),
		CorrelationID: record.CorrelationID.String(),
		Timestamp:     record.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
	})
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	return s.producer.Produce(ctx, &producer.Message{
		Topic: s.topic,
		Key:   []byte(record.UserID.String()),
		Value: payload,
		Headers: map[string]string{
			"kind": string(record.Kind),
		},
	})
}
