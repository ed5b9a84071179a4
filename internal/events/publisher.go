// Package events publishes domain events to Kafka after they are durable.
// Downstream consumers (analytics, notification fan-out) are out of scope
// here; publishing is fire-and-forget from the send pipeline's view.
package events

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/naserallahataya/mern-realtime-chat-server/internal/models"
)

type Producer struct {
	writer *kafkago.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
		Async:        false,
	}
	return &Producer{writer: w}
}

// PublishMessageSent emits one event per accepted send, keyed by
// conversation so a partition preserves per-conversation order.
func (p *Producer) PublishMessageSent(ctx context.Context, msg *models.PopulatedMessage) error {
	b, err := json.Marshal(map[string]any{
		"message_id":      msg.ID.Hex(),
		"conversation_id": msg.ConversationID,
		"sender_id":       msg.SenderID,
		"text":            msg.Text,
		"attachments":     len(msg.Attachments),
		"created_at":      msg.CreatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(msg.ConversationID),
		Value: b,
		Time:  time.Now(),
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
