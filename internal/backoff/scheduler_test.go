package backoff

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ramirezdev26/swifty-ai-digester/internal/domain"
)

type fakeRepublisher struct {
	mu        sync.Mutex
	calls     int
	partition int
	retry     int
	body      []byte
	err       error
}

func (f *fakeRepublisher) RepublishJob(_ context.Context, partition, retryCount int, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.partition = partition
	f.retry = retryCount
	f.body = body
	return f.err
}

func testPolicy() domain.RetryPolicy {
	return domain.RetryPolicy{
		MaxRetries: 3,
		Delays:     []int64{5000, 15000, 30000},
	}
}

func TestScheduler_FiresAfterDelayAndReturnsImmediately(t *testing.T) {
	rep := &fakeRepublisher{}
	s := NewScheduler(rep, nil)

	var armedDelay time.Duration
	var fired func()
	s.afterFunc = func(d time.Duration, f func()) {
		armedDelay = d
		fired = f
	}

	done := make(chan struct{})
	go func() {
		s.ScheduleRepublish(context.Background(), 1, 2, []byte(`{"eventId":"e1"}`), testPolicy())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ScheduleRepublish should return immediately without waiting for the timer")
	}

	if armedDelay != 15*time.Second {
		t.Errorf("expected delay for retryCount=2 to be delays[1]=15s, got %v", armedDelay)
	}

	fired()

	rep.mu.Lock()
	defer rep.mu.Unlock()
	if rep.calls != 1 || rep.partition != 1 || rep.retry != 2 {
		t.Errorf("unexpected republish call: %+v", rep)
	}
}

func TestScheduler_RepublishErrorIsLoggedNotPanicked(t *testing.T) {
	rep := &fakeRepublisher{err: errors.New("broker unavailable")}
	s := NewScheduler(rep, nil)

	var fired func()
	s.afterFunc = func(_ time.Duration, f func()) { fired = f }

	s.ScheduleRepublish(context.Background(), 0, 1, nil, testPolicy())
	fired() // must not panic even though RepublishJob returns an error
}
