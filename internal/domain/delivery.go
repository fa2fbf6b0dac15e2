package domain

import "time"

// DeliveryContext описывает метаданные одного полученного сообщения,
// извлечённые Consumer'ом (C5) из заголовков AMQP-доставки.
//
// Invariant: 0 <= RetryCount <= MAX_RETRIES. Сообщения, пришедшие с
// RetryCount больше потолка, немедленно уходят в DLQ без выполнения.
type DeliveryContext struct {
	// Partition — номер партиции в [0, P), из заголовка x-partition
	// или из имени очереди.
	Partition int

	// RetryCount — неотрицательный счётчик повторов, заголовок
	// x-retry-count (по умолчанию 0).
	RetryCount int

	// DeliveryTag — хэндл брокера, нужен только для логирования;
	// ack/nack выполняются через саму доставку (mq.Delivery).
	DeliveryTag uint64

	// MessageID, CorrelationID, Timestamp — необязательные метаданные.
	MessageID     string
	CorrelationID string
	Timestamp     time.Time
}

// ExceedsRetryBudget сообщает, превышает ли RetryCount допустимый потолок.
func (d DeliveryContext) ExceedsRetryBudget(maxRetries int) bool {
	return d.RetryCount > maxRetries
}
