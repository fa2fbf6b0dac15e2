package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ramirezdev26/swifty-ai-digester/internal/domain"
	"github.com/ramirezdev26/swifty-ai-digester/internal/journal"
	"github.com/ramirezdev26/swifty-ai-digester/internal/mq"
	"github.com/ramirezdev26/swifty-ai-digester/internal/pipeline"
	"github.com/ramirezdev26/swifty-ai-digester/internal/telemetry"
)

// Pipeline is the subset of pipeline.Pipeline the dispatcher needs,
// narrowed so tests can substitute a fake.
type Pipeline interface {
	Process(ctx context.Context, job domain.ImageJob, policy domain.RetryPolicy, timings *domain.PhaseTimings) (domain.PipelineSuccess, error)
}

// OutcomePublisher is the subset of outcome.Publisher the dispatcher needs.
type OutcomePublisher interface {
	PublishSuccess(ctx context.Context, userID string, success domain.PipelineSuccess) error
	PublishFailure(ctx context.Context, failure domain.PipelineFailure) error
}

// JournalRecorder is the subset of journal.Journal the dispatcher needs.
type JournalRecorder interface {
	Record(ctx context.Context, entry journal.Entry) error
}

// Scheduler is the subset of backoff.Scheduler the dispatcher needs.
type Scheduler interface {
	ScheduleRepublish(ctx context.Context, partition, newRetryCount int, body []byte, policy domain.RetryPolicy)
}

// ackNacker is the ack/nack surface of mq.Delivery, narrowed so tests
// can drive the state machine without a live amqp091-go delivery.
type ackNacker interface {
	Ack() error
	Nack(requeue bool) error
}

// Dispatcher implements the per-message state machine (spec §4.5): it
// owns the Received → Executing → Faulted/Terminal decision for every
// delivery handed to it by an mq.Consumer.
type Dispatcher struct {
	Pipeline  Pipeline
	Scheduler Scheduler
	Outcome   OutcomePublisher
	Journal   JournalRecorder
	Policy    domain.RetryPolicy
	Logger    *slog.Logger

	// NowFunc is swappable in tests so ObservedAt is deterministic.
	NowFunc func() time.Time
}

// New builds a Dispatcher. journalRecorder may be nil — a nil journal
// is a no-op best-effort sink, matching an operator running without the
// audit database configured.
func New(pl Pipeline, sched Scheduler, out OutcomePublisher, jr JournalRecorder, policy domain.RetryPolicy, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		Pipeline:  pl,
		Scheduler: sched,
		Outcome:   out,
		Journal:   jr,
		Policy:    policy,
		Logger:    logger,
		NowFunc:   time.Now,
	}
}

// Handle is an mq.Handler: it runs a single delivery through the state
// machine and issues exactly one of ack/nack before returning.
func (d *Dispatcher) Handle(ctx context.Context, delivery *mq.Delivery) {
	d.dispatch(ctx, delivery, delivery.Body, delivery.Context)
}

// dispatch is the state machine proper (spec §4.5), taking its ack/nack
// target as a narrow interface so it can be driven directly from tests
// without a live amqp091-go delivery.
func (d *Dispatcher) dispatch(ctx context.Context, an ackNacker, body []byte, dc domain.DeliveryContext) {
	logger := d.Logger.With("partition", dc.Partition, "retry_count", dc.RetryCount)

	partitionLabel := fmt.Sprintf("%d", dc.Partition)
	telemetry.InflightMessages.WithLabelValues(partitionLabel).Inc()
	defer telemetry.InflightMessages.WithLabelValues(partitionLabel).Dec()

	// Invariant (spec §4.3/§8): retryCount > MAX_RETRIES on ingress means
	// this message should never have been re-enqueued — route it to the
	// DLQ without running the pipeline at all.
	if dc.ExceedsRetryBudget(d.Policy.MaxRetries) {
		logger.Warn("delivery exceeds retry budget on ingress, routing to DLQ without execution")
		d.terminal(ctx, an, body, dc, nil, domain.PipelineFailure{
			ErrorCode:    domain.ErrorCodeUnknown,
			ErrorMessage: "retry count exceeds MAX_RETRIES on ingress",
			RetryCount:   dc.RetryCount,
			ObservedAt:   d.now(),
		})
		return
	}

	var msg domain.IngressMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		logger.Error("failed to decode ingress message", "error", err)
		d.terminal(ctx, an, body, dc, nil, domain.PipelineFailure{
			ErrorCode:    domain.ErrorCodeUnknown,
			ErrorMessage: fmt.Sprintf("decode ingress message: %v", err),
			RetryCount:   dc.RetryCount,
			ObservedAt:   d.now(),
		})
		return
	}

	job := msg.Payload
	logger = logger.With("image_id", job.ImageID, "style", job.Style)

	var timings domain.PhaseTimings
	success, err := d.Pipeline.Process(ctx, job, d.Policy, &timings)
	d.recordPhaseTimings(timings)
	if err == nil {
		logger.Info("pipeline succeeded", "processed_url", success.ProcessedURL)
		telemetry.JobsProcessedTotal.WithLabelValues(job.Style, "success").Inc()
		if pubErr := d.Outcome.PublishSuccess(ctx, job.UserID, success); pubErr != nil {
			logger.Error("failed to publish ImageProcessed event", "error", pubErr)
		}
		d.recordJournal(ctx, journal.Entry{
			EventID:    job.EventID,
			ImageID:    job.ImageID,
			UserID:     job.UserID,
			Partition:  dc.Partition,
			Outcome:    journal.OutcomeProcessed,
			RetryCount: dc.RetryCount,
			RecordedAt: d.now(),
		})
		if ackErr := an.Ack(); ackErr != nil {
			logger.Error("failed to ack delivery", "error", ackErr)
		}
		return
	}

	fault := pipeline.Classify(err)
	logger.Warn("pipeline failed", "error", err, "retryable", fault.Retryable, "error_code", fault.Code)

	failure := domain.PipelineFailure{
		ImageID:      job.ImageID,
		UserID:       job.UserID,
		ErrorCode:    fault.Code,
		ErrorMessage: err.Error(),
		RetryCount:   dc.RetryCount,
		ObservedAt:   d.now(),
		Timings:      timings,
	}

	if fault.Retryable && dc.RetryCount < d.Policy.MaxRetries {
		d.retry(ctx, an, body, dc, fault.Code)
		return
	}

	d.terminal(ctx, an, body, dc, &job, failure)
}

// retry hands the delivery to C3 for delay-scheduled republish, then
// acks the original. The republish is scheduled before the ack, per
// spec §4.5, to avoid losing the job if the process crashes in between.
func (d *Dispatcher) retry(ctx context.Context, an ackNacker, body []byte, dc domain.DeliveryContext, errorCode domain.ErrorCode) {
	newRetryCount := dc.RetryCount + 1
	d.Scheduler.ScheduleRepublish(ctx, dc.Partition, newRetryCount, body, d.Policy)
	telemetry.JobsRetriedTotal.WithLabelValues(string(errorCode)).Inc()

	if err := an.Ack(); err != nil {
		d.Logger.Error("failed to ack delivery handed off for retry", "error", err, "partition", dc.Partition)
	}
}

// terminal emits image.failed, records the journal entry, and nacks
// without requeue so the broker forwards the message to the DLQ.
func (d *Dispatcher) terminal(ctx context.Context, an ackNacker, body []byte, dc domain.DeliveryContext, job *domain.ImageJob, failure domain.PipelineFailure) {
	telemetry.JobsDeadLetteredTotal.WithLabelValues(string(failure.ErrorCode)).Inc()
	if job != nil {
		telemetry.JobsProcessedTotal.WithLabelValues(job.Style, "failure").Inc()
	}

	if pubErr := d.Outcome.PublishFailure(ctx, failure); pubErr != nil {
		d.Logger.Error("failed to publish image.failed event", "error", pubErr)
	}

	entry := journal.Entry{
		ImageID:      failure.ImageID,
		UserID:       failure.UserID,
		Partition:    dc.Partition,
		Outcome:      journal.OutcomeDeadLettered,
		ErrorCode:    failure.ErrorCode,
		Error:        failure.ErrorMessage,
		RetryCount:   failure.RetryCount,
		OriginalBody: body,
		RecordedAt:   d.now(),
	}
	if job != nil {
		entry.EventID = job.EventID
	}
	d.recordJournal(ctx, entry)

	if err := an.Nack(false); err != nil {
		d.Logger.Error("failed to nack delivery", "error", err)
	}
}

func (d *Dispatcher) recordJournal(ctx context.Context, entry journal.Entry) {
	if d.Journal == nil {
		return
	}
	if entry.EventID == "" {
		// Malformed-message path has no event id to key on; the journal's
		// primary key requires one, so synthesize one from the clock.
		entry.EventID = fmt.Sprintf("malformed_%d", d.now().UnixNano())
	}
	if err := d.Journal.Record(ctx, entry); err != nil {
		d.Logger.Error("failed to record journal entry", "error", err)
	}
}

// recordPhaseTimings feeds every recorded phase into its histogram, and
// the sum of the recorded phases into the overall pipeline duration
// histogram.
// Phases absent on a failed/timed-out run are simply not recorded.
func (d *Dispatcher) recordPhaseTimings(timings domain.PhaseTimings) {
	if len(timings) == 0 {
		return
	}
	for phase, ms := range timings {
		telemetry.PhaseDurationSeconds.WithLabelValues(string(phase)).Observe(float64(ms) / 1000)
	}
	telemetry.PipelineDurationSeconds.Observe(float64(timings.Total()) / 1000)
}

func (d *Dispatcher) now() time.Time {
	if d.NowFunc != nil {
		return d.NowFunc()
	}
	return time.Now()
}
