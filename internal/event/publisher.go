package event

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lshigami/examgrader/config"
	"github.com/rs/zerolog/log"
	"github.com/streadway/amqp"
)

const TypeAttemptFinalized = "exam.attempt.finalized"

type Publisher interface {
	Publish(eventType string, payload interface{}) error
	Close() error
}

// Envelope is the body of every published message.
type Envelope struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// AttemptFinalized is the payload of TypeAttemptFinalized.
type AttemptFinalized struct {
	ExamID           uint      `json:"exam_id"`
	UserID           uint      `json:"user_id"`
	CompletionType   string    `json:"completion_type"`
	Score            int       `json:"score"`
	TotalPoints      int       `json:"total_points"`
	PercentageScore  int       `json:"percentage_score"`
	Passed           bool      `json:"passed"`
	TimeSpentSeconds int       `json:"time_spent_seconds"`
	SubmittedAt      time.Time `json:"submitted_at"`
	NeedsReview      []uint    `json:"needs_review,omitempty"`
}

func encode(eventType string, payload interface{}) ([]byte, error) {
	return json.Marshal(Envelope{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	})
}

// AMQPPublisher sends events to a topic exchange using the event type as the
// routing key.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func NewAMQPPublisher(amqpURL, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return &AMQPPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

func (p *AMQPPublisher) Publish(eventType string, payload interface{}) error {
	body, err := encode(eventType, payload)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.Publish(
		p.exchange,
		eventType,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", eventType, err)
	}
	log.Debug().Str("type", eventType).Msg("Publish: event sent")
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// NopPublisher logs events instead of sending them.
type NopPublisher struct{}

func (NopPublisher) Publish(eventType string, payload interface{}) error {
	log.Debug().Str("type", eventType).Interface("payload", payload).Msg("Publish: no broker configured, event dropped")
	return nil
}

func (NopPublisher) Close() error { return nil }

// NewPublisher connects to RabbitMQ when RABBITMQ_URL is set and falls back to
// a NopPublisher otherwise.
func NewPublisher(cfg *config.Config) (Publisher, error) {
	if cfg.RabbitMQ.URL == "" {
		log.Info().Msg("RabbitMQ not configured, finalize events will not be published")
		return NopPublisher{}, nil
	}
	p, err := NewAMQPPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
	if err != nil {
		return nil, err
	}
	log.Info().Str("exchange", cfg.RabbitMQ.Exchange).Msg("Connected to RabbitMQ")
	return p, nil
}
