// Package events publishes case lifecycle events. Kafka is the production
// transport; an in-process broadcaster serves tests and single node setups.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"credence/internal/cases/ports"
)

// DefaultTopic is where case lifecycle events land unless configured otherwise.
const DefaultTopic = "credence.case-events"

// KafkaPublisher emits events as JSON records keyed by case ID, so all
// events for one case stay ordered within a partition.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafkaPublisher wraps an existing client.
func NewKafkaPublisher(client *kgo.Client, topic string, logger *slog.Logger) (*KafkaPublisher, error) {
	if client == nil {
		return nil, errors.New("kafka client is required")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{client: client, topic: topic, logger: logger}, nil
}

// Publish produces one event. Production is asynchronous; delivery failures
// are logged, not returned, because events never gate case processing.
func (p *KafkaPublisher) Publish(ctx context.Context, event ports.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.CaseID),
		Value: value,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Warn("case event delivery failed",
				"kind", event.Kind,
				"case_id", event.CaseID,
				"error", err,
			)
		}
	})
	return nil
}

// Close flushes outstanding records.
func (p *KafkaPublisher) Close(ctx context.Context) error {
	return p.client.Flush(ctx)
}

// EnsureTopic creates the events topic if it does not exist yet.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32) error {
	if topic == "" {
		topic = DefaultTopic
	}
	admin := kadm.NewClient(client)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	resp, err := admin.CreateTopic(ctx, partitions, 1, nil, topic)
	if err != nil {
		return err
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return resp.Err
	}
	return nil
}
