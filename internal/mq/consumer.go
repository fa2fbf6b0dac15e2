package mq

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ramirezdev26/swifty-ai-digester/internal/domain"
)

// Handler — функция обработки сообщения партиции. Сама доставка
// (Delivery) несёт Ack/Nack — обработчик обязан вызвать ровно один из
// них на каждом достижимом пути (spec §4.5/§8); Consumer не ack/nack-ает
// за него.
type Handler func(ctx context.Context, delivery *Delivery)

// Delivery — доставленное сообщение партиции с методами ack/nack и уже
// извлечённым DeliveryContext.
type Delivery struct {
	Body    []byte
	Context domain.DeliveryContext

	raw amqp.Delivery
}

// Ack подтверждает успешную обработку сообщения.
func (d *Delivery) Ack() error {
	return d.raw.Ack(false)
}

// Nack отклоняет сообщение. requeue=false отправляет его в DLQ через
// x-dead-letter-exchange, сконфигурированный на очереди.
func (d *Delivery) Nack(requeue bool) error {
	return d.raw.Nack(false, requeue)
}

// Consumer потребляет сообщения из одной партиционированной очереди с
// заданным prefetch (back-pressure, spec §4.5/§5), на собственном
// выделенном AMQP-канале — канал не используется другими consumer'ами
// или Publisher, так как конкурентный доступ к одному каналу небезопасен.
type Consumer struct {
	conn      *Connection
	logger    *slog.Logger
	queue     string
	partition int
	handler   Handler
	prefetch  int

	ch         *amqp.Channel
	cancelFunc context.CancelFunc
}

// ConsumerConfig — конфигурация Consumer.
type ConsumerConfig struct {
	Queue     string
	Partition int
	Handler   Handler
	Prefetch  int
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}

	return &Consumer{
		conn:      conn,
		logger:    logger,
		queue:     cfg.Queue,
		partition: cfg.Partition,
		handler:   cfg.Handler,
		prefetch:  prefetch,
	}
}

// Start запускает потребление сообщений; блокируется до отмены ctx или
// неустранимой ошибки канала.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	return c.consume(ctx)
}

func (c *Consumer) consume(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		deliveries, err := c.setupConsume()
		if err != nil {
			c.logger.Error("failed to setup consume", "queue", c.queue, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.conn.ReconnectNotify():
				c.logger.Info("reconnected, restarting consumer", "queue", c.queue)
				continue
			}
		}

		c.logger.Info("consumer started", "queue", c.queue, "prefetch", c.prefetch)

		if err := c.processDeliveries(ctx, deliveries); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("deliveries channel closed, reconnecting", "queue", c.queue)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.conn.ReconnectNotify():
				continue
			}
		}
	}
}

func (c *Consumer) setupConsume() (<-chan amqp.Delivery, error) {
	if c.ch != nil {
		c.ch.Close()
	}

	ch, err := c.conn.OpenChannel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	c.ch = ch

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		c.queue, // queue
		"",      // consumer tag (auto-generated)
		false,   // auto-ack (мы ack вручную)
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}

	return deliveries, nil
}

func (c *Consumer) processDeliveries(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}

			c.handleDelivery(ctx, raw)
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, raw amqp.Delivery) {
	delivery := &Delivery{
		Body:    raw.Body,
		Context: extractDeliveryContext(raw, c.partition),
		raw:     raw,
	}

	// The handler gets a context that Stop/shutdown does not cancel, so a
	// delivery already in flight runs to its ack/nack during the drain.
	c.handler(context.WithoutCancel(ctx), delivery)
}

// extractDeliveryContext извлекает partition/retryCount из заголовков
// доставки, с fallback на имя очереди для partition.
func extractDeliveryContext(raw amqp.Delivery, fallbackPartition int) domain.DeliveryContext {
	dc := domain.DeliveryContext{
		Partition:     fallbackPartition,
		RetryCount:    0,
		DeliveryTag:   raw.DeliveryTag,
		MessageID:     raw.MessageId,
		CorrelationID: raw.CorrelationId,
		Timestamp:     raw.Timestamp,
	}

	if raw.Headers == nil {
		return dc
	}

	if p, ok := headerInt(raw.Headers, "x-partition"); ok {
		dc.Partition = p
	}
	if rc, ok := headerInt(raw.Headers, "x-retry-count"); ok {
		dc.RetryCount = rc
	}

	return dc
}

func headerInt(headers amqp.Table, key string) (int, bool) {
	val, ok := headers[key]
	if !ok {
		return 0, false
	}

	switch v := val.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// Stop останавливает consumer.
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}
