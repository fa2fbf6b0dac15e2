package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ramirezdev26/swifty-ai-digester/internal/backend"
	"github.com/ramirezdev26/swifty-ai-digester/internal/domain"
)

const storeFolder = "swifty-processed-images"
const storeFormat = "jpg"
const storeResourceType = "image"

// IDGenerator produces the monotonic-ms suffix for store object ids.
// Exists so tests can make object ids deterministic.
type IDGenerator func() int64

func defaultIDGenerator() int64 {
	return time.Now().UnixMilli()
}

// Pipeline orchestrates fetch → transform (inner-retried) → store for a
// single ImageJob, under a single wall-clock deadline (C1), recording
// per-phase timings for observability and failure-phase inference.
type Pipeline struct {
	Fetcher     backend.Fetcher
	Transformer backend.Transformer
	Store       backend.Store
	NowMillis   IDGenerator
}

// New builds a Pipeline from its three stage collaborators.
func New(fetcher backend.Fetcher, transformer backend.Transformer, store backend.Store) *Pipeline {
	return &Pipeline{
		Fetcher:     fetcher,
		Transformer: transformer,
		Store:       store,
		NowMillis:   defaultIDGenerator,
	}
}

// processOutcome bundles the two values process produces so a single
// RunWithDeadline race can carry both without any state shared with the
// caller — each call gets its own outcome value, written to only by the
// goroutine that owns it.
type processOutcome struct {
	success domain.PipelineSuccess
	timings domain.PhaseTimings
}

// Process runs the three stages of job under policy.ProcessingDeadline,
// returning a PipelineSuccess or an error classifiable by Classify.
// PhaseTimings collected so far are returned alongside the error via
// *domain.PhaseTimings out-param so the caller (C5) can compute the
// failure phase even on a mid-pipeline fault. On a C1 timeout the
// abandoned goroutine keeps accumulating into its own private map — it
// never touches anything the caller can see — so timings comes back
// empty for a timed-out call rather than racing with it.
func (p *Pipeline) Process(ctx context.Context, job domain.ImageJob, policy domain.RetryPolicy, timings *domain.PhaseTimings) (domain.PipelineSuccess, error) {
	outcome, err := RunWithDeadline(ctx, policy.ProcessingDeadline, func(ctx context.Context) (processOutcome, error) {
		success, runTimings, err := p.process(ctx, job, policy)
		return processOutcome{success: success, timings: runTimings}, err
	})

	*timings = outcome.timings
	return outcome.success, err
}

func (p *Pipeline) process(ctx context.Context, job domain.ImageJob, policy domain.RetryPolicy) (domain.PipelineSuccess, domain.PhaseTimings, error) {
	timings := make(domain.PhaseTimings)

	// Stage 1: fetch.
	start := time.Now()
	original, err := p.Fetcher.Fetch(ctx, job.OriginalImageURL)
	if err != nil {
		return domain.PipelineSuccess{}, timings, fmt.Errorf("fetch: %w", err)
	}
	timings[domain.PhaseFetch] = time.Since(start).Milliseconds()

	// Stage 2: transform, with inner retry on retryable faults only.
	start = time.Now()
	processed, err := p.transformWithInnerRetry(ctx, original, job.Style, policy)
	if err != nil {
		return domain.PipelineSuccess{}, timings, fmt.Errorf("transform: %w", err)
	}
	timings[domain.PhaseTransform] = time.Since(start).Milliseconds()

	// Pass-through: no image payload, no error.
	if processed == nil {
		processed = original
	}

	// Stage 3: store.
	start = time.Now()
	objectID := fmt.Sprintf("processed_%s_%d", job.ImageID, p.idGenerator()())
	stored, err := p.Store.Store(ctx, processed, backend.StoreParams{
		PublicID:     objectID,
		Folder:       storeFolder,
		Format:       storeFormat,
		ResourceType: storeResourceType,
	})
	if err != nil {
		return domain.PipelineSuccess{}, timings, fmt.Errorf("store: %w", err)
	}
	timings[domain.PhaseStore] = time.Since(start).Milliseconds()

	return domain.PipelineSuccess{
		ImageID:      job.ImageID,
		ProcessedURL: stored.SecureURL,
		PublicID:     stored.PublicID,
		Style:        job.Style,
		Timings:      timings.Clone(),
	}, timings, nil
}

func (p *Pipeline) idGenerator() IDGenerator {
	if p.NowMillis != nil {
		return p.NowMillis
	}
	return defaultIDGenerator
}

// transformWithInnerRetry retries the AI transform on retryable faults,
// sleeping 2^k seconds between attempt k (1-based), up to
// policy.TransformInnerRetryCap. Non-retryable faults rethrow
// immediately; once the cap is exceeded the last error is rethrown.
func (p *Pipeline) transformWithInnerRetry(ctx context.Context, image []byte, style string, policy domain.RetryPolicy) ([]byte, error) {
	retryCap := policy.TransformInnerRetryCap

	retryIdx := 0
	for {
		result, err := p.Transformer.Transform(ctx, image, style)
		if err == nil {
			return result, nil
		}

		fault := Classify(err)
		if !fault.Retryable {
			return nil, err
		}

		retryIdx++
		if retryIdx > retryCap {
			return nil, err
		}

		delay := time.Duration(1<<uint(retryIdx)) * time.Second

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
