package events

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/eventpass/backend/internal/models"
)

// Kafka produces each event to one topic, keyed by ticket.
type Kafka struct {
	client *kgo.Client
	topic  string
}

// NewKafka connects a producer to brokers. Close it on shutdown.
func NewKafka(brokers []string, topic string) (*Kafka, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Kafka{client: client, topic: topic}, nil
}

func (k *Kafka) Publish(ctx context.Context, ev models.Event) error {
	rec, err := record(k.topic, ev)
	if err != nil {
		return err
	}
	if err := k.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce event %d to %s: %w", ev.Seq, k.topic, err)
	}
	return nil
}

// record keys by ticket so one ticket's events share a partition.
func record(topic string, ev models.Event) (*kgo.Record, error) {
	body, err := Encode(ev)
	if err != nil {
		return nil, fmt.Errorf("%w: encode event %d: %v", ErrPermanent, ev.Seq, err)
	}
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(key(ev)),
		Value: body,
		Headers: []kgo.RecordHeader{
			{Key: "kind", Value: []byte(ev.Kind)},
			{Key: "seq", Value: []byte(fmt.Sprint(ev.Seq))},
		},
	}, nil
}

// Health pings the cluster.
func (k *Kafka) Health(ctx context.Context) error {
	return k.client.Ping(ctx)
}

func (k *Kafka) Close() {
	k.client.Close()
}
