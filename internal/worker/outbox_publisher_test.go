package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/kafka"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/model"
)

// memOutbox mimics the repository: due rows are handed to fn together and
// the returned updates are applied in order.
type memOutbox struct {
	mu   sync.Mutex
	rows []*model.OutboxEntry
}

func (m *memOutbox) ProcessDue(_ context.Context, now time.Time, limit int, fn func([]model.OutboxEntry) []model.OutboxUpdate) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []*model.OutboxEntry
	for _, r := range m.rows {
		if len(due) == limit {
			break
		}
		if (r.Status != model.OutboxPending && r.Status != model.OutboxFailed) || r.NextAttemptAt.After(now) {
			continue
		}
		due = append(due, r)
	}
	if len(due) == 0 {
		return 0, nil
	}
	batch := make([]model.OutboxEntry, len(due))
	for i, r := range due {
		batch[i] = *r
	}
	updates := fn(batch)
	for i, u := range updates {
		r := due[i]
		r.Status, r.AttemptCount, r.NextAttemptAt, r.LastError = u.Status, u.AttemptCount, u.NextAttemptAt, u.LastError
	}
	return len(updates), nil
}

type published struct {
	topic, key string
	value      []byte
}

type fakeBus struct {
	mu    sync.Mutex
	sent  []published
	calls int
	err   func(key string) error
}

func (b *fakeBus) PublishBatch(_ context.Context, msgs []kafka.Message) []error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	errs := make([]error, len(msgs))
	for i, m := range msgs {
		if b.err != nil {
			if errs[i] = b.err(string(m.Key)); errs[i] != nil {
				continue
			}
		}
		b.sent = append(b.sent, published{topic: m.Topic, key: string(m.Key), value: m.Value})
	}
	return errs
}

var t0 = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func pending(id int64, agg string) *model.OutboxEntry {
	return &model.OutboxEntry{
		ID: id, EventType: "CREATED", AggregateID: agg, Payload: []byte(`{}`),
		Status: model.OutboxPending, NextAttemptAt: t0,
	}
}

func newPublisher(store OutboxStore, bus Publisher) *OutboxPublisher {
	p := NewOutboxPublisher(store, bus, OutboxPublisherConfig{DefaultTopic: "notification.events"}, zap.NewNop())
	p.now = func() time.Time { return t0 }
	return p
}

func TestBackoff(t *testing.T) {
	cases := map[int]time.Duration{
		0:  time.Second,
		1:  2 * time.Second,
		2:  4 * time.Second,
		5:  32 * time.Second,
		6:  60 * time.Second,
		40: 60 * time.Second,
	}
	for attempt, want := range cases {
		assert.Equal(t, want, Backoff(attempt), "attempt %d", attempt)
	}
}

func TestPublishSuccess(t *testing.T) {
	store := &memOutbox{rows: []*model.OutboxEntry{pending(1, "t1"), pending(2, "t2")}}
	store.rows[1].Topic = "other.topic"
	bus := &fakeBus{}

	n, err := newPublisher(store, bus).PublishPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, r := range store.rows {
		assert.Equal(t, model.OutboxPublished, r.Status)
		assert.Equal(t, 1, r.AttemptCount)
		assert.Nil(t, r.LastError)
	}
	require.Len(t, bus.sent, 2)
	assert.Equal(t, "notification.events", bus.sent[0].topic)
	assert.Equal(t, "t1", bus.sent[0].key)
	assert.Equal(t, "other.topic", bus.sent[1].topic)
}

func TestPublishSendsDueRowsInOneCall(t *testing.T) {
	store := &memOutbox{}
	for i := int64(1); i <= 3; i++ {
		store.rows = append(store.rows, pending(i, fmt.Sprintf("t%d", i)))
	}
	bus := &fakeBus{}

	n, err := newPublisher(store, bus).PublishPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 1, bus.calls)
	require.Len(t, bus.sent, 3)
	for i, m := range bus.sent {
		assert.Equal(t, fmt.Sprintf("t%d", i+1), m.key)
	}
}

func TestPublishSkipsBusWhenNothingDue(t *testing.T) {
	row := pending(1, "t1")
	row.NextAttemptAt = t0.Add(time.Minute)
	bus := &fakeBus{}

	n, err := newPublisher(&memOutbox{rows: []*model.OutboxEntry{row}}, bus).PublishPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Zero(t, bus.calls)
}

func TestPublishFailureSchedulesRetry(t *testing.T) {
	store := &memOutbox{rows: []*model.OutboxEntry{pending(1, "bad"), pending(2, "good")}}
	bus := &fakeBus{err: func(key string) error {
		if key == "bad" {
			return errors.New(strings.Repeat("x", 600))
		}
		return nil
	}}

	p := newPublisher(store, bus)
	_, err := p.PublishPending(context.Background())
	require.NoError(t, err)

	bad, good := store.rows[0], store.rows[1]
	assert.Equal(t, model.OutboxPublished, good.Status, "one failure does not abort the batch")

	assert.Equal(t, model.OutboxFailed, bad.Status)
	assert.Equal(t, 1, bad.AttemptCount)
	assert.Equal(t, t0.Add(2*time.Second), bad.NextAttemptAt)
	require.NotNil(t, bad.LastError)
	assert.Len(t, *bad.LastError, 512)

	// not due yet
	n, err := p.PublishPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestPublishGoesDeadAfterMaxAttempts(t *testing.T) {
	row := pending(1, "t1")
	store := &memOutbox{rows: []*model.OutboxEntry{row}}
	bus := &fakeBus{err: func(string) error { return errors.New("broker down") }}
	p := newPublisher(store, bus)

	for i := 0; i < 8; i++ {
		_, err := p.PublishPending(context.Background())
		require.NoError(t, err)
		// jump to the next attempt time
		p.now = func() time.Time { return row.NextAttemptAt }
	}

	assert.Equal(t, model.OutboxDead, row.Status)
	assert.Equal(t, 8, row.AttemptCount)
	require.NotNil(t, row.LastError)
	assert.Equal(t, "broker down", *row.LastError)

	n, err := p.PublishPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n, "dead rows are not retried")
}

func TestPublishRespectsBatchSize(t *testing.T) {
	store := &memOutbox{}
	for i := int64(1); i <= 5; i++ {
		store.rows = append(store.rows, pending(i, "t"))
	}
	p := NewOutboxPublisher(store, &fakeBus{}, OutboxPublisherConfig{BatchSize: 2}, zap.NewNop())
	p.now = func() time.Time { return t0 }

	n, err := p.PublishPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPublisherRunStopsOnCancel(t *testing.T) {
	row := pending(1, "t1")
	row.NextAttemptAt = time.Time{}
	store := &memOutbox{rows: []*model.OutboxEntry{row}}
	bus := &fakeBus{}
	p := NewOutboxPublisher(store, bus, OutboxPublisherConfig{Interval: 5 * time.Millisecond}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		bus.mu.Lock()
		defer bus.mu.Unlock()
		return len(bus.sent) == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

type silentBus struct{}

func (silentBus) PublishBatch(context.Context, []kafka.Message) []error { return nil }

func TestPublishWithoutResultIsRetried(t *testing.T) {
	store := &memOutbox{rows: []*model.OutboxEntry{pending(1, "t1")}}

	_, err := newPublisher(store, silentBus{}).PublishPending(context.Background())
	require.NoError(t, err)

	row := store.rows[0]
	assert.Equal(t, model.OutboxFailed, row.Status)
	require.NotNil(t, row.LastError)
	assert.Equal(t, errNoPublishResult.Error(), *row.LastError)
}
