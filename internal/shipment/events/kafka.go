package events

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/segmentio/kafka-go"
)

// Writer is the subset of kafka.Writer used by KafkaPublisher.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON keyed by shipment id, so every event of a
// shipment lands on the same partition in order.
type KafkaPublisher struct {
	writer Writer
}

// NewKafkaPublisher creates a publisher for the comma separated broker list and topic.
func NewKafkaPublisher(brokers, topic string) *KafkaPublisher {
	addrs := strings.Split(brokers, ",")
	for i := range addrs {
		addrs[i] = strings.TrimSpace(addrs[i])
	}
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(addrs...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}}
}

// NewKafkaPublisherWithWriter allows injecting a test writer.
func NewKafkaPublisherWithWriter(w Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev StatusChanged) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.ShipmentID),
		Value: b,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte("shipment.status_changed")},
			{Key: "status", Value: []byte(ev.To)},
		},
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
