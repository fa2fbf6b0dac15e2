package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ramirezdev26/swifty-ai-digester/internal/backend"
	"github.com/ramirezdev26/swifty-ai-digester/internal/domain"
	"github.com/ramirezdev26/swifty-ai-digester/internal/journal"
)

type fakeAckNacker struct {
	acked       bool
	nacked      bool
	nackRequeue bool
}

func (f *fakeAckNacker) Ack() error {
	f.acked = true
	return nil
}

func (f *fakeAckNacker) Nack(requeue bool) error {
	f.nacked = true
	f.nackRequeue = requeue
	return nil
}

type fakePipeline struct {
	success domain.PipelineSuccess
	err     error
}

func (f *fakePipeline) Process(_ context.Context, _ domain.ImageJob, _ domain.RetryPolicy, _ *domain.PhaseTimings) (domain.PipelineSuccess, error) {
	return f.success, f.err
}

type fakeOutcome struct {
	successCalls int
	failureCalls int
	lastFailure  domain.PipelineFailure
}

func (f *fakeOutcome) PublishSuccess(_ context.Context, _ string, _ domain.PipelineSuccess) error {
	f.successCalls++
	return nil
}

func (f *fakeOutcome) PublishFailure(_ context.Context, failure domain.PipelineFailure) error {
	f.failureCalls++
	f.lastFailure = failure
	return nil
}

type fakeScheduler struct {
	calls      int
	partition  int
	retryCount int
}

func (f *fakeScheduler) ScheduleRepublish(_ context.Context, partition, newRetryCount int, _ []byte, _ domain.RetryPolicy) {
	f.calls++
	f.partition = partition
	f.retryCount = newRetryCount
}

type fakeJournal struct {
	entries []journal.Entry
}

func (f *fakeJournal) Record(_ context.Context, entry journal.Entry) error {
	f.entries = append(f.entries, entry)
	return nil
}

func testPolicy() domain.RetryPolicy {
	return domain.RetryPolicy{
		MaxRetries:             3,
		Delays:                 []int64{5000, 15000, 30000},
		ProcessingDeadline:     30 * time.Second,
		TransformInnerRetryCap: 2,
	}
}

func jobBody(t *testing.T, job domain.ImageJob) []byte {
	t.Helper()
	body, err := json.Marshal(domain.IngressMessage{Payload: job})
	if err != nil {
		t.Fatalf("marshal ingress message: %v", err)
	}
	return body
}

func TestDispatch_Success_AcksAndRecordsJournal(t *testing.T) {
	outcome := &fakeOutcome{}
	jrnl := &fakeJournal{}
	d := New(
		&fakePipeline{success: domain.PipelineSuccess{ImageID: "img1"}},
		&fakeScheduler{},
		outcome,
		jrnl,
		testPolicy(),
		nil,
	)

	an := &fakeAckNacker{}
	body := jobBody(t, domain.ImageJob{ImageID: "img1", EventID: "evt1"})

	d.dispatch(context.Background(), an, body, domain.DeliveryContext{Partition: 1, RetryCount: 0})

	if !an.acked || an.nacked {
		t.Fatalf("expected ack only, got acked=%v nacked=%v", an.acked, an.nacked)
	}
	if outcome.successCalls != 1 {
		t.Errorf("expected 1 success publish, got %d", outcome.successCalls)
	}
	if len(jrnl.entries) != 1 || jrnl.entries[0].Outcome != journal.OutcomeProcessed {
		t.Errorf("expected one PROCESSED journal entry, got %+v", jrnl.entries)
	}
}

func TestDispatch_RetryableUnderCap_SchedulesRepublishAndAcksOriginal(t *testing.T) {
	sched := &fakeScheduler{}
	outcome := &fakeOutcome{}
	d := New(
		&fakePipeline{err: backend.ErrNetworkTimeout},
		sched,
		outcome,
		nil,
		testPolicy(),
		nil,
	)

	an := &fakeAckNacker{}
	body := jobBody(t, domain.ImageJob{ImageID: "img1", EventID: "evt1"})

	d.dispatch(context.Background(), an, body, domain.DeliveryContext{Partition: 2, RetryCount: 1})

	if !an.acked || an.nacked {
		t.Fatalf("expected ack of original on scheduled retry, got acked=%v nacked=%v", an.acked, an.nacked)
	}
	if sched.calls != 1 {
		t.Fatalf("expected exactly one scheduled republish, got %d", sched.calls)
	}
	if sched.partition != 2 || sched.retryCount != 2 {
		t.Errorf("expected republish(partition=2, retryCount=2), got partition=%d retryCount=%d", sched.partition, sched.retryCount)
	}
	if outcome.failureCalls != 0 {
		t.Errorf("expected no image.failed on a scheduled retry, got %d", outcome.failureCalls)
	}
}

func TestDispatch_RetryableAtCap_GoesTerminal(t *testing.T) {
	sched := &fakeScheduler{}
	outcome := &fakeOutcome{}
	jrnl := &fakeJournal{}
	policy := testPolicy()
	d := New(
		&fakePipeline{err: backend.ErrRateLimited},
		sched,
		outcome,
		jrnl,
		policy,
		nil,
	)

	an := &fakeAckNacker{}
	body := jobBody(t, domain.ImageJob{ImageID: "img1", EventID: "evt1"})

	d.dispatch(context.Background(), an, body, domain.DeliveryContext{Partition: 0, RetryCount: policy.MaxRetries})

	if an.acked || !an.nacked || an.nackRequeue {
		t.Fatalf("expected nack(requeue=false) at retry cap, got acked=%v nacked=%v requeue=%v", an.acked, an.nacked, an.nackRequeue)
	}
	if sched.calls != 0 {
		t.Errorf("expected no republish once retries are exhausted, got %d", sched.calls)
	}
	if outcome.failureCalls != 1 {
		t.Fatalf("expected exactly one image.failed event, got %d", outcome.failureCalls)
	}
	if outcome.lastFailure.ErrorCode != domain.ErrorCodeRateLimit {
		t.Errorf("expected errorCode RATE_LIMIT_ERROR, got %s", outcome.lastFailure.ErrorCode)
	}
	if outcome.lastFailure.RetryCount != policy.MaxRetries {
		t.Errorf("expected retryCount %d in failure event, got %d", policy.MaxRetries, outcome.lastFailure.RetryCount)
	}
	if len(jrnl.entries) != 1 || jrnl.entries[0].Outcome != journal.OutcomeDeadLettered {
		t.Errorf("expected one DEAD_LETTERED journal entry, got %+v", jrnl.entries)
	}
}

func TestDispatch_NonRetryable_GoesTerminalWithoutConsultingCap(t *testing.T) {
	outcome := &fakeOutcome{}
	d := New(
		&fakePipeline{err: backend.ErrImageDownload},
		&fakeScheduler{},
		outcome,
		nil,
		testPolicy(),
		nil,
	)

	an := &fakeAckNacker{}
	body := jobBody(t, domain.ImageJob{ImageID: "img1", EventID: "evt1"})

	d.dispatch(context.Background(), an, body, domain.DeliveryContext{Partition: 0, RetryCount: 0})

	if an.acked || !an.nacked {
		t.Fatalf("expected nack on non-retryable fault regardless of retryCount, got acked=%v nacked=%v", an.acked, an.nacked)
	}
	if outcome.lastFailure.ErrorCode != domain.ErrorCodeImageDownload {
		t.Errorf("expected errorCode IMAGE_DOWNLOAD_ERROR, got %s", outcome.lastFailure.ErrorCode)
	}
}

func TestDispatch_MalformedMessage_TerminalWithNullIDs(t *testing.T) {
	outcome := &fakeOutcome{}
	jrnl := &fakeJournal{}
	d := New(
		&fakePipeline{},
		&fakeScheduler{},
		outcome,
		jrnl,
		testPolicy(),
		nil,
	)

	an := &fakeAckNacker{}
	body := []byte("not json")

	d.dispatch(context.Background(), an, body, domain.DeliveryContext{Partition: 0, RetryCount: 0})

	if an.acked || !an.nacked {
		t.Fatalf("expected nack on malformed message, got acked=%v nacked=%v", an.acked, an.nacked)
	}
	if outcome.failureCalls != 1 {
		t.Fatalf("expected exactly one image.failed event for a malformed message, got %d", outcome.failureCalls)
	}
	if outcome.lastFailure.ImageID != "" {
		t.Errorf("expected empty imageId on a malformed message, got %q", outcome.lastFailure.ImageID)
	}
	if outcome.lastFailure.ErrorCode != domain.ErrorCodeUnknown {
		t.Errorf("expected UNKNOWN_ERROR for malformed message, got %s", outcome.lastFailure.ErrorCode)
	}
	if len(jrnl.entries) != 1 {
		t.Fatalf("expected one journal entry, got %d", len(jrnl.entries))
	}
	if jrnl.entries[0].EventID == "" {
		t.Error("expected a synthesized event id for the journal entry on a malformed message")
	}
}

func TestDispatch_RetryCountExceedsBudgetOnIngress_SkipsExecution(t *testing.T) {
	pl := &fakePipeline{err: errors.New("must not be called")}
	outcome := &fakeOutcome{}
	policy := testPolicy()
	d := New(pl, &fakeScheduler{}, outcome, nil, policy, nil)

	an := &fakeAckNacker{}
	body := jobBody(t, domain.ImageJob{ImageID: "img1"})

	d.dispatch(context.Background(), an, body, domain.DeliveryContext{Partition: 0, RetryCount: policy.MaxRetries + 1})

	if an.acked || !an.nacked {
		t.Fatalf("expected immediate nack when retryCount exceeds MAX_RETRIES on ingress")
	}
	if outcome.failureCalls != 1 {
		t.Fatalf("expected one image.failed event, got %d", outcome.failureCalls)
	}
}
