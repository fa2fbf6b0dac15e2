package backoff

import (
	"context"
	"log/slog"
	"time"

	"github.com/ramirezdev26/swifty-ai-digester/internal/domain"
)

// Republisher re-publishes a raw job body to a partition's ingress
// routing key with an updated retry-count header. Implemented by
// internal/mq.Publisher.
type Republisher interface {
	RepublishJob(ctx context.Context, partition int, retryCount int, body []byte) error
}

// Scheduler computes the retry delay for an attempt index and schedules
// a deferred republish without blocking its caller (C3).
type Scheduler struct {
	republisher Republisher
	logger      *slog.Logger

	// afterFunc is swappable in tests so they don't have to sleep.
	afterFunc func(d time.Duration, f func())
}

// NewScheduler builds a Scheduler publishing through republisher.
func NewScheduler(republisher Republisher, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		republisher: republisher,
		logger:      logger,
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// ScheduleRepublish computes the delay for newRetryCount via policy and
// issues the republish after that delay elapses, on its own goroutine.
// It returns as soon as the timer has been armed — never waits for the
// timer to fire, so the consumer's ack path is never blocked.
//
// Documented limitation (spec §9 "Deferred republish"): this is an
// in-process timer. A crash between scheduling and firing loses the
// scheduled republish. The original delivery was already acked by the
// caller only after this call returns, so the message is not duplicated
// — it is simply not retried. The retry path writes no journal row, so
// such a job has no journal entry to find or replay (see DESIGN.md,
// Open Question O3).
func (s *Scheduler) ScheduleRepublish(ctx context.Context, partition, newRetryCount int, body []byte, policy domain.RetryPolicy) {
	delay := policy.DelayFor(newRetryCount)

	s.afterFunc(delay, func() {
		// A fresh context: the original request context is long gone by
		// the time this timer fires.
		pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.republisher.RepublishJob(pubCtx, partition, newRetryCount, body); err != nil {
			s.logger.Error("failed to republish job after backoff",
				"partition", partition,
				"retry_count", newRetryCount,
				"error", err,
			)
		}
	})
}
