package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gigmarket/backend/internal/models"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/plain"
)

const eventSchemaVersion = "1.0"

// recordProducer is the subset of *kgo.Client the notifier uses.
type recordProducer interface {
	TryProduce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
	Close()
}

// KafkaConfig configures the order event producer.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	Username string
	Password string
}

// KafkaNotifier publishes order events to a topic keyed by order id, so all
// events of one order land on the same partition in commit order.
type KafkaNotifier struct {
	client recordProducer
	topic  string
}

func NewKafkaNotifier(cfg KafkaConfig) (*KafkaNotifier, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.AllowAutoTopicCreation(),
		kgo.RequiredAcks(kgo.AllISRAcks()),

		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.ProducerLinger(10 * time.Millisecond),
		kgo.RecordDeliveryTimeout(30 * time.Second),
		kgo.ProduceRequestTimeout(10 * time.Second),

		kgo.WithLogger(kgo.BasicLogger(os.Stderr, kgo.LogLevelWarn, nil)),
	}

	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts, kgo.SASL(plain.Auth{
			User: cfg.Username,
			Pass: cfg.Password,
		}.AsMechanism()))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	return &KafkaNotifier{client: client, topic: cfg.Topic}, nil
}

// NotifyOrderEvent enqueues the record and returns without waiting for the
// broker. A full producer buffer drops the record instead of blocking the
// caller; drops and delivery failures are logged by the produce callback.
func (k *KafkaNotifier) NotifyOrderEvent(ctx context.Context, evt models.OrderEvent) error {
	record, err := k.record(evt)
	if err != nil {
		return err
	}

	// The request context ends with the HTTP call; the record must outlive it.
	k.client.TryProduce(context.WithoutCancel(ctx), record, func(r *kgo.Record, err error) {
		if errors.Is(err, kgo.ErrMaxBuffered) {
			log.Printf("WARN: Kafka buffer full, dropped %s for order %s", evt.Type, evt.OrderID)
			return
		}
		if err != nil {
			log.Printf("ERROR: Failed to produce %s for order %s: %v", evt.Type, evt.OrderID, err)
		}
	})
	return nil
}

func (k *KafkaNotifier) record(evt models.OrderEvent) (*kgo.Record, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order event: %w", err)
	}

	return &kgo.Record{
		Topic: k.topic,
		Key:   []byte(evt.OrderID),
		Value: data,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(evt.Type)},
			{Key: "version", Value: []byte(eventSchemaVersion)},
		},
		Timestamp: time.Now(),
	}, nil
}

func (k *KafkaNotifier) Close() {
	k.client.Close()
}
