package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/subscription-sync/internal/domain"
	"github.com/Dhoini/subscription-sync/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// Topics
const (
	TopicSubscriptionChanges = "subscription_changes"
	DefaultTopicDeadLetter   = "stripe-webhook-dead-letter"
	defaultWriteTimeout      = 15 * time.Second
)

// messageWriter подмножество kafka.Writer
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer публикует уведомления об изменении подписок и dead-letter записи.
type Producer struct {
	writer          messageWriter
	deadLetterTopic string
	log             *logger.Logger
}

// NewKafkaProducer создает продюсер на segmentio/kafka-go.
func NewKafkaProducer(brokers []string, deadLetterTopic string, log *logger.Logger) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are not configured")
	}

	// Топик задается в каждом сообщении, поэтому у Writer его нет.
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	log.Infow("Kafka producer initialized", "brokers", brokers, "deadLetterTopic", deadLetterTopic)
	return newProducer(writer, deadLetterTopic, log), nil
}

func newProducer(writer messageWriter, deadLetterTopic string, log *logger.Logger) *Producer {
	if deadLetterTopic == "" {
		deadLetterTopic = DefaultTopicDeadLetter
	}
	return &Producer{writer: writer, deadLetterTopic: deadLetterTopic, log: log}
}

// PublishSubscriptionChange отправляет уведомление об изменении подписки.
// Ключ сообщения - Stripe ID подписки, чтобы события одной подписки шли в одну партицию.
func (p *Producer) PublishSubscriptionChange(ctx context.Context, change domain.SubscriptionChange) error {
	return p.publish(ctx, TopicSubscriptionChanges, change.StripeSubscriptionID, change)
}

// PublishDeadLetter отправляет событие, которое не удалось обработать.
func (p *Producer) PublishDeadLetter(ctx context.Context, letter domain.DeadLetter) error {
	return p.publish(ctx, p.deadLetterTopic, letter.EventID, letter)
}

func (p *Producer) publish(ctx context.Context, topic, key string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("kafka: failed to marshal message data: %w", err)
	}

	message := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	}

	writeCtx, cancel := context.WithTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	if err := p.writer.WriteMessages(writeCtx, message); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			p.log.Errorw("Kafka write timeout exceeded", "error", err, "topic", topic, "key", key)
			return fmt.Errorf("kafka: write timeout: %w", err)
		}
		p.log.Errorw("Failed to write message to Kafka", "error", err, "topic", topic, "key", key)
		return fmt.Errorf("kafka: failed to write message: %w", err)
	}

	p.log.Debugw("Published message to Kafka", "topic", topic, "key", key)
	return nil
}

// Close закрывает Kafka Writer.
func (p *Producer) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("kafka: failed to close writer: %w", err)
	}
	p.log.Infow("Kafka producer writer closed")
	return nil
}
