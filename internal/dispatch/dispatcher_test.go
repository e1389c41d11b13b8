package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daechan-jo/auto-store-services-coupang/internal/jobs"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func descriptor(pattern, jobID, store string) jobs.Descriptor {
	return jobs.Descriptor{Pattern: pattern, JobID: jobID, Store: store}
}

func TestDispatchSuccessEnvelope(t *testing.T) {
	d := NewDispatcher(discardLogger())
	d.Register("echo", func(ctx context.Context, job jobs.Descriptor) (jobs.Result, error) {
		return jobs.Result{Status: jobs.StatusSuccess, Data: job.JobID}, nil
	})

	result := d.Dispatch(context.Background(), descriptor("echo", "job-1", "store-01"))
	assert.Equal(t, jobs.StatusSuccess, result.Status)
	assert.Equal(t, "job-1", result.Data)
}

func TestDispatchUnknownPattern(t *testing.T) {
	d := NewDispatcher(discardLogger())

	result := d.Dispatch(context.Background(), descriptor("no-such-thing", "job-1", "store-01"))
	assert.Equal(t, jobs.StatusError, result.Status)
	assert.Equal(t, "unknown pattern: no-such-thing", result.Message)
}

func TestDispatchHandlerErrorBecomesEnvelope(t *testing.T) {
	d := NewDispatcher(discardLogger())
	d.Register("boom", func(ctx context.Context, job jobs.Descriptor) (jobs.Result, error) {
		return jobs.Result{}, errors.New("console offline")
	})

	result := d.Dispatch(context.Background(), descriptor("boom", "job-1", "store-01"))
	assert.Equal(t, jobs.StatusError, result.Status)
	assert.Equal(t, "console offline", result.Message)
}

func TestDispatchRecoversPanics(t *testing.T) {
	d := NewDispatcher(discardLogger())
	d.Register("panic", func(ctx context.Context, job jobs.Descriptor) (jobs.Result, error) {
		panic("nil dereference somewhere deep")
	})

	result := d.Dispatch(context.Background(), descriptor("panic", "job-1", "store-01"))
	assert.Equal(t, jobs.StatusError, result.Status)
	assert.Contains(t, result.Message, "handler panic")
	assert.Contains(t, result.Message, "nil dereference somewhere deep")
}

func TestDispatchSerializesPerQueue(t *testing.T) {
	d := NewDispatcher(discardLogger())

	var inFlight, maxInFlight int32
	d.Register("slow", func(ctx context.Context, job jobs.Descriptor) (jobs.Result, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			seen := atomic.LoadInt32(&maxInFlight)
			if n <= seen || atomic.CompareAndSwapInt32(&maxInFlight, seen, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return jobs.Result{Status: jobs.StatusSuccess}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Dispatch(context.Background(), descriptor("slow", "job", "store-01"))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight), "same-store jobs must never overlap")
}

func TestDispatchAllowsCrossQueueConcurrency(t *testing.T) {
	d := NewDispatcher(discardLogger())

	// both handlers block until the other has started, which only resolves
	// if the two stores run concurrently
	started := make(chan string, 2)
	release := make(chan struct{})
	d.Register("meet", func(ctx context.Context, job jobs.Descriptor) (jobs.Result, error) {
		started <- job.Store
		select {
		case <-release:
		case <-time.After(2 * time.Second):
			return jobs.Result{}, errors.New("peer never started")
		}
		return jobs.Result{Status: jobs.StatusSuccess}, nil
	})

	results := make(chan jobs.Result, 2)
	go func() { results <- d.Dispatch(context.Background(), descriptor("meet", "job-a", "store-a")) }()
	go func() { results <- d.Dispatch(context.Background(), descriptor("meet", "job-b", "store-b")) }()

	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatal("jobs for distinct stores did not run concurrently")
		}
	}
	close(release)

	for i := 0; i < 2; i++ {
		result := <-results
		require.Equal(t, jobs.StatusSuccess, result.Status)
	}
}
