package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников (spec §6).
const (
	ExchangeProcessing Exchange = "pixpro.processing"
	ExchangeResults    Exchange = "image.results"
	ExchangeDLX        Exchange = "pixpro.dlx"
)

// RoutingKeyDLQ — ключ, на который DLX маршрутизирует мёртвые сообщения.
const RoutingKeyDLQ RoutingKey = "dead"

// DLQQueue — имя очереди, в которую попадают мёртвые сообщения.
const DLQQueue = "pixpro.dlq"

// TopologyConfig управляет параметрами, зависящими от конфигурации
// воркера (число партиций, TTL, имя DLX).
type TopologyConfig struct {
	Partitions   int
	MessageTTLMs int
	DLXExchange  string
}

// PartitionQueue возвращает имя очереди для партиции p.
func PartitionQueue(p int) string {
	return fmt.Sprintf("image.processing.partition.%d", p)
}

// PartitionRoutingKey возвращает ключ маршрутизации входящих сообщений
// для партиции p.
func PartitionRoutingKey(p int) RoutingKey {
	return RoutingKey(fmt.Sprintf("image.uploaded.partition.%d", p))
}

// SetupTopology объявляет exchanges, партиционированные очереди,
// привязки и DLQ согласно конфигурации.
func SetupTopology(ctx context.Context, conn *Connection, cfg TopologyConfig) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch, cfg); err != nil {
			return err
		}

		if err := declarePartitionQueues(ch, cfg); err != nil {
			return err
		}

		if err := declareDLQ(ch, cfg); err != nil {
			return err
		}

		return nil
	})
}

func declareExchanges(ch *amqp.Channel, cfg TopologyConfig) error {
	dlx := cfg.DLXExchange
	if dlx == "" {
		dlx = string(ExchangeDLX)
	}

	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeProcessing, "topic"},
		{ExchangeResults, "fanout"},
		{Exchange(dlx), "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declarePartitionQueues создаёт по одной durable-очереди на партицию,
// привязанной к ExchangeProcessing своим routing key, с DLX-аргументами
// и TTL из конфигурации.
func declarePartitionQueues(ch *amqp.Channel, cfg TopologyConfig) error {
	dlx := cfg.DLXExchange
	if dlx == "" {
		dlx = string(ExchangeDLX)
	}

	ttlMs := cfg.MessageTTLMs
	if ttlMs <= 0 {
		ttlMs = 300_000
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    dlx,
		"x-dead-letter-routing-key": string(RoutingKeyDLQ),
		"x-message-ttl":             int32(ttlMs),
	}

	partitions := cfg.Partitions
	if partitions <= 0 {
		partitions = 3
	}

	for p := 0; p < partitions; p++ {
		queue := PartitionQueue(p)
		routingKey := PartitionRoutingKey(p)

		_, err := ch.QueueDeclare(queue, true, false, false, false, args)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}

		err = ch.QueueBind(queue, string(routingKey), string(ExchangeProcessing), false, nil)
		if err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}

	return nil
}

// declareDLQ создаёт очередь для мёртвых сообщений и привязывает её к DLX.
func declareDLQ(ch *amqp.Channel, cfg TopologyConfig) error {
	dlx := cfg.DLXExchange
	if dlx == "" {
		dlx = string(ExchangeDLX)
	}

	_, err := ch.QueueDeclare(DLQQueue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", DLQQueue, err)
	}

	err = ch.QueueBind(DLQQueue, string(RoutingKeyDLQ), dlx, false, nil)
	if err != nil {
		return fmt.Errorf("bind queue %s: %w", DLQQueue, err)
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования при старте.
func TopologyInfo(cfg TopologyConfig) string {
	partitions := cfg.Partitions
	if partitions <= 0 {
		partitions = 3
	}

	info := "pixpro.processing (topic)\n"
	for p := 0; p < partitions; p++ {
		info += fmt.Sprintf("  %s [routing: %s]\n", PartitionQueue(p), PartitionRoutingKey(p))
	}
	info += "image.results (fanout) — outcome events\n"
	info += fmt.Sprintf("pixpro.dlx (direct) -> %s\n", DLQQueue)

	return info
}
