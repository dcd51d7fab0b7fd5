package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the part of *amqp.Channel the publisher needs.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type PredictionPublisher struct {
	channel Channel

	mu                sync.Mutex
	declared          bool
	messagesPublished int64
	messagesFailed    int64
}

func NewPredictionPublisher(channel Channel) *PredictionPublisher {
	return &PredictionPublisher{channel: channel}
}

// PublishPredictionCompleted sends the event to the prediction events queue.
func (p *PredictionPublisher) PublishPredictionCompleted(ctx context.Context, event PredictionCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.declared {
		_, err := p.channel.QueueDeclare(
			PredictionCompletedQueue, // queue name
			true,                     // durable
			false,                    // delete when unused
			false,                    // exclusive
			false,                    // no-wait
			nil,                      // arguments
		)
		if err != nil {
			p.messagesFailed++
			return fmt.Errorf("failed to declare queue: %w", err)
		}
		p.declared = true
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.messagesFailed++
		return fmt.Errorf("failed to marshal prediction event: %w", err)
	}

	err = p.channel.PublishWithContext(
		ctx,
		"",                       // exchange
		PredictionCompletedQueue, // routing key (queue name)
		false,                    // mandatory
		false,                    // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    event.EventID,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		p.messagesFailed++
		return fmt.Errorf("failed to publish prediction event: %w", err)
	}

	p.messagesPublished++
	slog.Info("Prediction event published", "queue", PredictionCompletedQueue, "event_id", event.EventID)
	return nil
}

// Stats returns published and failed message counts.
func (p *PredictionPublisher) Stats() (published, failed int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.messagesPublished, p.messagesFailed
}
