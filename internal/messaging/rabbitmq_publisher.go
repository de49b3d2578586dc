package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

var _ EventPublisher = (*RabbitMQEventPublisher)(nil)

// RabbitMQEventPublisher публикует события мастера в durable-очередь.
type RabbitMQEventPublisher struct {
	mu        sync.Mutex
	ch        *amqp091.Channel
	queueName string
	logger    *zap.Logger
}

// NewRabbitMQEventPublisher открывает канал и объявляет очередь событий.
// Соединение conn управляется вызывающим кодом.
func NewRabbitMQEventPublisher(conn *amqp091.Connection, queueName string, logger *zap.Logger) (*RabbitMQEventPublisher, error) {
	if conn == nil {
		return nil, fmt.Errorf("rabbitmq connection is nil")
	}
	log := logger.Named("WizardEventPublisher")

	ch, err := conn.Channel()
	if err != nil {
		log.Error("Failed to open a channel", zap.Error(err))
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		_ = ch.Close()
		log.Error("Failed to declare queue", zap.String("queue", queueName), zap.Error(err))
		return nil, fmt.Errorf("failed to declare queue '%s': %w", queueName, err)
	}

	log.Info("Wizard events queue declared", zap.String("queue", queueName))
	return &RabbitMQEventPublisher{ch: ch, queueName: queueName, logger: log}, nil
}

// PublishWizardEvent публикует событие в очередь.
func (p *RabbitMQEventPublisher) PublishWizardEvent(ctx context.Context, event WizardEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal wizard event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx,
		"",          // exchange
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    event.EventID,
			Timestamp:    time.Now(),
			Type:         event.Type,
			Body:         body,
		},
	)
	if err != nil {
		p.logger.Error("Failed to publish wizard event", zap.Error(err),
			zap.String("type", event.Type), zap.String("sessionID", event.SessionID))
		return fmt.Errorf("failed to publish wizard event: %w", err)
	}

	p.logger.Debug("Wizard event published", zap.String("type", event.Type), zap.String("sessionID", event.SessionID))
	return nil
}

// Close закрывает канал RabbitMQ.
func (p *RabbitMQEventPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		return p.ch.Close()
	}
	return nil
}
