// Package publisher sends committed project status transitions to Kafka.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"carbonregistry/internal/platform/config"
	"carbonregistry/internal/project/models"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	headerEventType = "event-type"
	eventType       = "project.status_transition"
)

// KafkaPublisher produces one record per transition, keyed by project id so
// a project's events stay ordered within a partition.
type KafkaPublisher struct {
	client            *kgo.Client
	topic             string
	partitions        int32
	replicationFactor int16
	logger            *slog.Logger
}

type Option func(*KafkaPublisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *KafkaPublisher) {
		p.logger = logger
	}
}

// NewKafka connects lazily; the first produce or EnsureTopic dials brokers.
func NewKafka(cfg config.KafkaConfig, opts ...Option) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka publisher requires at least one broker")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka publisher requires a topic")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchMaxBytes(1<<20),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	p := &KafkaPublisher{
		client:            client,
		topic:             cfg.Topic,
		partitions:        cfg.Partitions,
		replicationFactor: cfg.ReplicationFactor,
		logger:            slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// EnsureTopic creates the transitions topic if it does not exist yet.
func (p *KafkaPublisher) EnsureTopic(ctx context.Context) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopics(ctx, p.partitions, p.replicationFactor, nil, p.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", p.topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	p.logger.InfoContext(ctx, "transition topic ready", "topic", p.topic)
	return nil
}

// Publish produces the event and waits for the broker acknowledgement.
func (p *KafkaPublisher) Publish(ctx context.Context, event models.TransitionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal transition event: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.ProjectID),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: headerEventType, Value: []byte(eventType)},
		},
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce transition event for %s: %w", event.ProjectID, err)
	}
	return nil
}

// Ping checks broker reachability for readiness probes.
func (p *KafkaPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close flushes buffered records and releases connections.
func (p *KafkaPublisher) Close() {
	p.client.Close()
}
