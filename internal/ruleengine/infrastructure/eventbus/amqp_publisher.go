// Package eventbus carries RuleEvent notifications (§6.1, §6.2, §9 "Signals
// to channels") out of the process, grounded on the teacher's RabbitMQ
// publisher.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hearthctl/ruleengine/internal/ruleengine/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

const exchangeName = "ruleengine.rule.events"

// AMQPPublisher republishes every domain.RuleEvent read off an Engine's
// Events() channel onto a durable topic exchange, for deployments that run
// the rule store, thing manager and subscribers as separate processes.
type AMQPPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *slog.Logger
	mu       sync.Mutex
}

func NewAMQPPublisher(url string, logger *slog.Logger) (*AMQPPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &AMQPPublisher{conn: conn, channel: ch, exchange: exchangeName, logger: logger}, nil
}

// Run reads from events until the channel closes or ctx is cancelled,
// publishing each RuleEvent under a routing key derived from its kind.
func (p *AMQPPublisher) Run(ctx context.Context, events <-chan domain.RuleEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			if err := p.publish(ctx, evt); err != nil {
				p.logger.Error("rule event publish failed", "error", err)
			}
		}
	}
}

func (p *AMQPPublisher) publish(ctx context.Context, evt domain.RuleEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal rule event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel.PublishWithContext(ctx, p.exchange, routingKey(evt), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

func routingKey(evt domain.RuleEvent) string {
	switch evt.Kind {
	case domain.RuleEventAdded:
		return "rule.added"
	case domain.RuleEventRemoved:
		return "rule.removed"
	case domain.RuleEventChanged:
		return "rule.changed"
	case domain.RuleEventActiveChanged:
		return "rule.active_changed"
	default:
		return "rule.unknown"
	}
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
