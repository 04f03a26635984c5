package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/IBM/sarama"

	"github.com/rawblock/riskgraph/pkg/models"
)

// Event types carried in the envelope
const (
	EventVerdict = "risk_verdict"
	EventAudit   = "audit_entry"
)

// Envelope wraps every message published to the topic
type Envelope struct {
	Type string          `json:"type"`
	TS   int64           `json:"ts"`
	Data json.RawMessage `json:"data"`
}

// KafkaPublisher streams verdicts and audit entries to a Kafka topic
type KafkaPublisher struct {
	topic string
	p     sarama.SyncProducer
	now   func() time.Time
}

// NewKafkaPublisher dials brokers with a synchronous, all-acks producer
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	log.Printf("[Kafka] Producer connected to %v (topic %s)", brokers, topic)
	return NewPublisherWithProducer(p, topic), nil
}

// NewPublisherWithProducer wraps an existing producer
func NewPublisherWithProducer(p sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{topic: topic, p: p, now: time.Now}
}

func (k *KafkaPublisher) Close() error {
	if k.p != nil {
		return k.p.Close()
	}
	return nil
}

// PublishVerdict sends v keyed by its sender address, so verdicts for the
// same address land on the same partition
func (k *KafkaPublisher) PublishVerdict(ctx context.Context, v models.RiskVerdict) error {
	return k.emit(ctx, EventVerdict, v.FromAddress, v)
}

// PublishAudit sends an audit entry keyed by its id
func (k *KafkaPublisher) PublishAudit(ctx context.Context, entry models.AuditEntry) error {
	return k.emit(ctx, EventAudit, entry.ID, entry)
}

// AuditHook adapts PublishAudit to the evaluator hook signature. Failures are
// logged.
func (k *KafkaPublisher) AuditHook(entry models.AuditEntry) {
	if err := k.PublishAudit(context.Background(), entry); err != nil {
		log.Printf("[Kafka] Audit entry %s not published: %v", entry.ID, err)
	}
}

func (k *KafkaPublisher) emit(ctx context.Context, typ, key string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	b, err := json.Marshal(Envelope{Type: typ, TS: k.now().UnixMilli(), Data: data})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Value: sarama.ByteEncoder(b),
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}
	if _, _, err := k.p.SendMessage(msg); err != nil {
		return fmt.Errorf("kafka emit %s: %w", typ, err)
	}
	return nil
}
