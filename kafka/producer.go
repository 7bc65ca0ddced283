package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// MessageIDHeader carries the id generated for every produced message.
const MessageIDHeader = "message_id"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes abandonment events to Kafka. The destination passed to
// Publish is the topic; the key is the user id so one user's events stay
// ordered within a partition.
type Producer struct {
	writer messageWriter
}

func NewProducer(brokers []string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
		},
	}
}

// Publish writes payload to topic. An empty key leaves the message unkeyed.
func (p *Producer) Publish(ctx context.Context, topic, key string, payload []byte) (string, error) {
	if topic == "" {
		return "", fmt.Errorf("empty kafka topic")
	}

	id := uuid.NewString()
	msg := kafka.Message{
		Topic:   topic,
		Key:     messageKey(key),
		Value:   payload,
		Headers: []kafka.Header{{Key: MessageIDHeader, Value: []byte(id)}},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return "", fmt.Errorf("failed to write kafka message to %s: %w", topic, err)
	}
	return id, nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func messageKey(key string) []byte {
	if key == "" {
		return nil
	}
	return []byte(key)
}
