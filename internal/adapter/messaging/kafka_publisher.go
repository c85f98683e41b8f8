package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/config"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/core/domain"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/pkg/logger"
)

// producer is the subset of *kgo.Client the publisher uses.
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

type KafkaPublisher struct {
	client  producer
	topic   string
	encoder *AvroEncoder
	log     logger.Logger
}

func NewKafkaPublisher(cfg config.KafkaConfig, encoder *AvroEncoder, log logger.Logger) (*KafkaPublisher, error) {
	log.Info("connecting kafka producer",
		logger.Any("brokers", cfg.Brokers),
		logger.String("topic", cfg.OrderTopic),
	)

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.OrderTopic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(10*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return newKafkaPublisher(client, cfg.OrderTopic, encoder, log), nil
}

func newKafkaPublisher(client producer, topic string, encoder *AvroEncoder, log logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{client: client, topic: topic, encoder: encoder, log: log}
}

func (p *KafkaPublisher) PublishOrderPlaced(ctx context.Context, event domain.OrderPlaced) error {
	payload, err := p.encoder.EncodeOrderPlaced(event)
	if err != nil {
		return err
	}

	rec := &kgo.Record{
		Topic:     p.topic,
		Key:       []byte(event.OrderID),
		Value:     payload,
		Timestamp: time.Now().UTC(),
		Headers: []kgo.RecordHeader{
			{Key: "content-type", Value: []byte("avro/binary")},
			{Key: "event-type", Value: []byte("OrderPlaced")},
		},
	}

	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		p.log.Warn("kafka publish failed",
			logger.String("topic", p.topic),
			logger.String("order_id", event.OrderID),
			logger.Int("payload_bytes", len(payload)),
			logger.Error(err),
		)
		return fmt.Errorf("publish to kafka topic %s: %w", p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() {
	p.log.Info("closing kafka producer", logger.String("topic", p.topic))
	p.client.Close()
}
