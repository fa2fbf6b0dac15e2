package mq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher публикует сообщения в RabbitMQ: republish входящих job
// (C3) и исходящие outcome-события (C6, см. internal/outcome), на
// собственном выделенном канале. PublishRaw вызывается конкурентно из
// горутин каждой партиции и из таймеров internal/backoff, поэтому
// доступ к каналу сериализован mu — сам по себе AMQP-канал не
// потокобезопасен для конкурентных Publish (spec §5).
type Publisher struct {
	conn   *Connection
	logger *slog.Logger

	mu sync.Mutex
	ch *amqp.Channel
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, logger: logger}
}

// PublishRaw публикует произвольное JSON-тело в указанный exchange с
// routing key, persistent delivery, с заданными заголовками.
//
// headers принимается как map[string]any, а не amqp.Table, чтобы
// вызывающий код (internal/outcome, internal/backoff) не тянул за собой
// зависимость на драйвер AMQP ради одного интерфейса.
func (p *Publisher) PublishRaw(ctx context.Context, exchange Exchange, routingKey RoutingKey, body []byte, headers map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channelLocked()
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(
		ctx,
		string(exchange),
		string(routingKey),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Headers:      amqp.Table(headers),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
	}

	p.logger.Debug("published message",
		"exchange", exchange,
		"routing_key", routingKey,
	)

	return nil
}

// channelLocked returns the publisher's dedicated channel, opening (or
// reopening, after a reconnect closed the old one) it as needed. Caller
// must hold p.mu.
func (p *Publisher) channelLocked() (*amqp.Channel, error) {
	if p.ch == nil || p.ch.IsClosed() {
		ch, err := p.conn.OpenChannel()
		if err != nil {
			return nil, fmt.Errorf("open publisher channel: %w", err)
		}
		p.ch = ch
	}
	return p.ch, nil
}

// RepublishJob re-publishes the original ingress body to the given
// partition's ingress routing key, with x-partition/x-retry-count
// headers rewritten (C3, spec §4.3). Implements backoff.Republisher.
func (p *Publisher) RepublishJob(ctx context.Context, partition, retryCount int, body []byte) error {
	headers := map[string]any{
		"x-partition":   partition,
		"x-retry-count": retryCount,
	}

	return p.PublishRaw(ctx, ExchangeProcessing, PartitionRoutingKey(partition), body, headers)
}
