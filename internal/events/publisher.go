// Package events publishes shipment lifecycle events for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	ShipmentScheduled = "shipment.scheduled"
	ShipmentLive      = "shipment.live"
	ShipmentAwarded   = "shipment.awarded"
)

// LifecycleEvent is the message value, keyed by shipment id.
type LifecycleEvent struct {
	Event      string    `json:"event"`
	ShipmentID string    `json:"shipmentId"`
	Status     string    `json:"status"`
	Source     string    `json:"source,omitempty"`
	TaskName   string    `json:"taskName,omitempty"`
	At         time.Time `json:"at"`
}

// Publisher is the interface used by the go-live pipeline to publish events.
type Publisher interface {
	Publish(ctx context.Context, ev LifecycleEvent) error
	Close() error
}

// Writer defines the subset of kafka.Writer we need. This makes the producer testable.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w}
}

// NewKafkaPublisherWithWriter allows injecting a test writer.
func NewKafkaPublisherWithWriter(w Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev LifecycleEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := kafka.Message{Key: []byte(ev.ShipmentID), Value: b}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Printf("[events] kafka write error for %s/%s: %v", ev.Event, ev.ShipmentID, err)
		return err
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Noop is used when Kafka is not configured.
type Noop struct{}

func (Noop) Publish(context.Context, LifecycleEvent) error { return nil }
func (Noop) Close() error                                  { return nil }
