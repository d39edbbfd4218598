package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Dhoini/subscription-sync/internal/domain"
	"github.com/Dhoini/subscription-sync/pkg/logger"
	"github.com/IBM/sarama"
)

const (
	TopicPaymentCompleted = "payment.completed"
	TopicPaymentFailed    = "payment.failed"
)

// PaymentEvent событие о записанном платеже
type PaymentEvent struct {
	ID              string               `json:"id"`
	UserID          string               `json:"user_id"`
	Amount          int64                `json:"amount"`
	Currency        string               `json:"currency"`
	Status          domain.PaymentStatus `json:"status"`
	StripePaymentID string               `json:"stripe_payment_id"`
	Description     string               `json:"description,omitempty"`
	Timestamp       time.Time            `json:"timestamp"`
}

// PaymentProducer публикует события платежей через sarama.SyncProducer
type PaymentProducer struct {
	producer sarama.SyncProducer
	log      *logger.Logger
}

// NewKafkaPaymentProducer создает новый продюсер событий платежей
func NewKafkaPaymentProducer(producer sarama.SyncProducer, log *logger.Logger) *PaymentProducer {
	return &PaymentProducer{
		producer: producer,
		log:      log,
	}
}

// TopicFor возвращает топик для статуса платежа
func TopicFor(status domain.PaymentStatus) string {
	if status == domain.PaymentStatusFailed {
		return TopicPaymentFailed
	}
	return TopicPaymentCompleted
}

// PublishPaymentRecorded публикует событие о записанном платеже
func (p *PaymentProducer) PublishPaymentRecorded(ctx context.Context, payment domain.Payment) error {
	topic := TopicFor(payment.Status)
	event := PaymentEvent{
		ID:              payment.ID.String(),
		UserID:          payment.UserID,
		Amount:          payment.Amount,
		Currency:        payment.Currency,
		Status:          payment.Status,
		StripePaymentID: payment.StripePaymentID,
		Description:     payment.Description,
		Timestamp:       time.Now().UTC(),
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal payment event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(payment.StripePaymentID),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(topic)},
		},
		Timestamp: event.Timestamp,
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to publish payment event: %w", err)
	}

	p.log.Debug("Published payment event to topic %s: partition=%d offset=%d", topic, partition, offset)
	return nil
}

// Close закрывает продюсер
func (p *PaymentProducer) Close() error {
	return p.producer.Close()
}
