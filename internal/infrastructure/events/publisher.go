package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"flightscout-service/internal/domain/entity"

	"github.com/segmentio/kafka-go"
)

// SessionEvent is the message published for every session update
type SessionEvent struct {
	SessionID string                 `json:"sessionId"`
	Status    entity.SessionStatus   `json:"status"`
	Update    map[string]interface{} `json:"update"`
	At        time.Time              `json:"at"`
}

// NewSessionEvent builds the event for a persisted session and the update that produced it
func NewSessionEvent(session *entity.ScrapeSession, update entity.SessionUpdate) SessionEvent {
	return SessionEvent{
		SessionID: session.SessionID,
		Status:    session.Status,
		Update:    update.Fields(),
		At:        session.UpdatedAt,
	}
}

// KafkaPublisher writes session events to a kafka topic keyed by session id
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher for the given brokers and topic
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		MaxAttempts:            5,
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           10 * time.Second,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w}
}

// Publish sends one session event
func (p *KafkaPublisher) Publish(ctx context.Context, session *entity.ScrapeSession, update entity.SessionUpdate) error {
	value, err := json.Marshal(NewSessionEvent(session, update))
	if err != nil {
		return fmt.Errorf("failed to marshal session event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(session.SessionID),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to write session event: %w", err)
	}
	return nil
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher drops events. Used when no brokers are configured.
type NoopPublisher struct{}

// Publish does nothing
func (NoopPublisher) Publish(context.Context, *entity.ScrapeSession, entity.SessionUpdate) error {
	return nil
}

// Close does nothing
func (NoopPublisher) Close() error { return nil }
