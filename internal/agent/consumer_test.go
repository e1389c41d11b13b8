package agent

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daechan-jo/auto-store-services-coupang/internal/dispatch"
	"github.com/daechan-jo/auto-store-services-coupang/internal/jobs"
)

type fakeAcknowledger struct {
	mu     sync.Mutex
	acks   int
	nacks  int
	requeu bool
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks++
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nacks++
	f.requeu = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error { return nil }

type fakeBroker struct {
	deliveries chan amqp.Delivery
	prefetch   int

	mu      sync.Mutex
	replyTo string
	corrID  string
	reply   []byte
}

func (f *fakeBroker) Qos(prefetch int) error {
	f.prefetch = prefetch
	return nil
}

func (f *fakeBroker) Consume(consumerTag string) (<-chan amqp.Delivery, error) {
	return f.deliveries, nil
}

func (f *fakeBroker) Reply(ctx context.Context, replyTo, correlationID string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replyTo = replyTo
	f.corrID = correlationID
	f.reply = body
	return nil
}

type ledgerUpdate struct {
	jobID  string
	status string
}

type fakeLedger struct {
	mu      sync.Mutex
	updates []ledgerUpdate
}

func (f *fakeLedger) UpdateJobStatus(ctx context.Context, jobID, status string, result any, errorMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, ledgerUpdate{jobID: jobID, status: status})
	return nil
}

func (f *fakeLedger) snapshot() []ledgerUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ledgerUpdate, len(f.updates))
	copy(out, f.updates)
	return out
}

func jobBody(t *testing.T, pattern, jobID, store string) []byte {
	t.Helper()
	body, err := json.Marshal(jobs.Message{
		Pattern: pattern,
		Payload: jobs.Payload{JobID: jobID, JobType: pattern, Store: store},
	})
	require.NoError(t, err)
	return body
}

func runConsumer(t *testing.T, broker *fakeBroker, d *dispatch.Dispatcher, ledger *fakeLedger) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	c := NewConsumer(broker, d, ledger, "store-01", 2, discardLogger())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("consumer did not stop")
		}
	})
	return cancel
}

func TestConsumerDispatchesAndRecordsOutcome(t *testing.T) {
	jobID := uuid.NewString()
	d := dispatch.NewDispatcher(discardLogger())
	seenStore := make(chan string, 1)
	d.Register("order-status-update", func(ctx context.Context, job jobs.Descriptor) (jobs.Result, error) {
		seenStore <- job.Store
		return jobs.Result{Status: jobs.StatusSuccess, Data: "done"}, nil
	})

	ack := &fakeAcknowledger{}
	broker := &fakeBroker{deliveries: make(chan amqp.Delivery, 1)}
	ledger := &fakeLedger{}
	runConsumer(t, broker, d, ledger)

	broker.deliveries <- amqp.Delivery{
		Acknowledger: ack,
		Body:         jobBody(t, "order-status-update", jobID, ""),
	}

	select {
	case store := <-seenStore:
		// store was empty on the wire so the configured default applies
		assert.Equal(t, "store-01", store)
	case <-time.After(2 * time.Second):
		t.Fatal("job never dispatched")
	}

	assert.Eventually(t, func() bool {
		updates := ledger.snapshot()
		return len(updates) == 2 &&
			updates[0] == ledgerUpdate{jobID: jobID, status: "RUNNING"} &&
			updates[1] == ledgerUpdate{jobID: jobID, status: "COMPLETED"}
	}, 2*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		ack.mu.Lock()
		defer ack.mu.Unlock()
		return ack.acks == 1 && ack.nacks == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, broker.prefetch)
}

func TestConsumerRepliesWhenRequested(t *testing.T) {
	jobID := uuid.NewString()
	d := dispatch.NewDispatcher(discardLogger())
	d.Register("get-comparison-count", func(ctx context.Context, job jobs.Descriptor) (jobs.Result, error) {
		return jobs.Result{Status: jobs.StatusSuccess, Data: map[string]int64{"count": 42}}, nil
	})

	ack := &fakeAcknowledger{}
	broker := &fakeBroker{deliveries: make(chan amqp.Delivery, 1)}
	ledger := &fakeLedger{}
	runConsumer(t, broker, d, ledger)

	broker.deliveries <- amqp.Delivery{
		Acknowledger:  ack,
		ReplyTo:       "amq.rabbitmq.reply-to.g1",
		CorrelationId: "corr-7",
		Body:          jobBody(t, "get-comparison-count", jobID, "store-01"),
	}

	assert.Eventually(t, func() bool {
		broker.mu.Lock()
		defer broker.mu.Unlock()
		return broker.replyTo == "amq.rabbitmq.reply-to.g1" && broker.corrID == "corr-7"
	}, 2*time.Second, 10*time.Millisecond)

	var envelope jobs.Result
	broker.mu.Lock()
	require.NoError(t, json.Unmarshal(broker.reply, &envelope))
	broker.mu.Unlock()
	assert.Equal(t, jobs.StatusSuccess, envelope.Status)
}

func TestConsumerFailedJobMarksLedgerFailed(t *testing.T) {
	jobID := uuid.NewString()
	d := dispatch.NewDispatcher(discardLogger())
	// unknown pattern produces an error envelope

	ack := &fakeAcknowledger{}
	broker := &fakeBroker{deliveries: make(chan amqp.Delivery, 1)}
	ledger := &fakeLedger{}
	runConsumer(t, broker, d, ledger)

	broker.deliveries <- amqp.Delivery{
		Acknowledger: ack,
		Body:         jobBody(t, "no-such-pattern", jobID, "store-01"),
	}

	assert.Eventually(t, func() bool {
		updates := ledger.snapshot()
		return len(updates) == 2 && updates[1].status == "FAILED"
	}, 2*time.Second, 10*time.Millisecond)

	// processed jobs are acked even when they fail: the outcome is the envelope
	assert.Eventually(t, func() bool {
		ack.mu.Lock()
		defer ack.mu.Unlock()
		return ack.acks == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConsumerRejectsMalformedMessages(t *testing.T) {
	d := dispatch.NewDispatcher(discardLogger())
	ack := &fakeAcknowledger{}
	broker := &fakeBroker{deliveries: make(chan amqp.Delivery, 2)}
	ledger := &fakeLedger{}
	runConsumer(t, broker, d, ledger)

	broker.deliveries <- amqp.Delivery{Acknowledger: ack, Body: []byte("{not json")}
	broker.deliveries <- amqp.Delivery{Acknowledger: ack, Body: jobBody(t, "x", "not-a-uuid", "store-01")}

	assert.Eventually(t, func() bool {
		ack.mu.Lock()
		defer ack.mu.Unlock()
		return ack.nacks == 2 && !ack.requeu
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, ledger.snapshot())
}
