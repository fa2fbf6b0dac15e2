package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ramirezdev26/swifty-ai-digester/internal/backend"
	"github.com/ramirezdev26/swifty-ai-digester/internal/domain"
)

func testPolicy() domain.RetryPolicy {
	return domain.RetryPolicy{
		MaxRetries:             3,
		Delays:                 []int64{5000, 15000, 30000},
		ProcessingDeadline:     60 * time.Second,
		TransformInnerRetryCap: 5,
	}
}

func TestPipeline_HappyPath(t *testing.T) {
	p := New(
		&backend.FakeFetcher{Bytes: make([]byte, 1024)},
		&backend.FakeTransformer{Results: [][]byte{make([]byte, 512)}},
		&backend.FakeStore{Result: backend.StoreResult{PublicID: "processed_i1_1", SecureURL: "https://cdn/x"}},
	)

	var timings domain.PhaseTimings
	success, err := p.Process(context.Background(), domain.ImageJob{ImageID: "i1", Style: "anime", OriginalImageURL: "https://x/i1.jpg"}, testPolicy(), &timings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if success.ProcessedURL != "https://cdn/x" {
		t.Errorf("expected processedUrl https://cdn/x, got %q", success.ProcessedURL)
	}
	for _, ph := range []domain.Phase{domain.PhaseFetch, domain.PhaseTransform, domain.PhaseStore} {
		if _, ok := timings[ph]; !ok {
			t.Errorf("missing timing for phase %s", ph)
		}
	}
}

func TestPipeline_PassThroughOnNilTransform(t *testing.T) {
	original := []byte("original-bytes")
	var capturedStoreInput []byte

	capturingStore := storeCaptureFn(func(image []byte) {
		capturedStoreInput = image
	})

	p := New(
		&backend.FakeFetcher{Bytes: original},
		&backend.FakeTransformer{Results: [][]byte{nil}},
		capturingStore,
	)

	var timings domain.PhaseTimings
	_, err := p.Process(context.Background(), domain.ImageJob{ImageID: "i2", OriginalImageURL: "https://x/i2.jpg"}, testPolicy(), &timings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if string(capturedStoreInput) != string(original) {
		t.Errorf("expected pass-through of original bytes, got %q", capturedStoreInput)
	}
}

func TestPipeline_TransformInnerRetryExhausted(t *testing.T) {
	p := New(
		&backend.FakeFetcher{Bytes: []byte("x")},
		&backend.FakeTransformer{Errs: []error{
			fmt.Errorf("%w: RATE_LIMIT_EXCEEDED", backend.ErrRateLimited),
		}},
		&backend.FakeStore{},
	)

	policy := testPolicy()
	policy.TransformInnerRetryCap = 0 // fail fast so the test doesn't sleep 2s+

	var timings domain.PhaseTimings
	_, err := p.Process(context.Background(), domain.ImageJob{ImageID: "i3", OriginalImageURL: "https://x/i3.jpg"}, policy, &timings)
	if err == nil {
		t.Fatal("expected error after inner retry cap exhausted")
	}

	fault := Classify(err)
	if !fault.Retryable || fault.Code != domain.ErrorCodeRateLimit {
		t.Errorf("expected retryable RATE_LIMIT_ERROR, got %+v", fault)
	}

	if _, ok := timings[domain.PhaseStore]; ok {
		t.Error("store phase should not be recorded when transform fails")
	}
	if timings.FailurePhase() != string(domain.PhaseTransform) {
		t.Errorf("expected failure phase transform, got %s", timings.FailurePhase())
	}
}

func TestPipeline_DeadlineZeroIsImmediateTimeout(t *testing.T) {
	p := New(&backend.FakeFetcher{}, &backend.FakeTransformer{}, &backend.FakeStore{})

	policy := testPolicy()
	policy.ProcessingDeadline = 0

	var timings domain.PhaseTimings
	_, err := p.Process(context.Background(), domain.ImageJob{ImageID: "i4"}, policy, &timings)

	fault := Classify(err)
	if fault.Retryable || fault.Code != domain.ErrorCodeProcessingTimeout {
		t.Errorf("expected non-retryable PROCESSING_TIMEOUT, got %+v (err=%v)", fault, err)
	}
}

// storeCaptureFn adapts a func into backend.Store for assertions on the
// bytes handed to Store without needing a full fake struct per test.
type storeCaptureFn func(image []byte)

func (f storeCaptureFn) Store(_ context.Context, image []byte, _ backend.StoreParams) (backend.StoreResult, error) {
	f(image)
	return backend.StoreResult{PublicID: "p", SecureURL: "https://cdn/y"}, nil
}
