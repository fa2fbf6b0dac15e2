// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings, DLX
//   - publisher.go  — публикация входящих (republish) и исходящих (outcome) сообщений
//   - consumer.go   — потребление сообщений из партиционированных очередей
//
// Топология (см. spec §6):
//   - pixpro.processing (topic)  — входные ключи image.uploaded.partition.<p>
//   - image.processing.partition.<p> — по одной очереди на партицию, DLX настроен
//   - image.results (fanout) — исходящие события ImageProcessed/image.failed
//   - pixpro.dlx — dead-letter exchange, принимает nack(requeue=false)
package mq
