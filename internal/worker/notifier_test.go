package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/kafka"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/model"
)

type fakeFetcher struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	failOnce  bool
}

func (f *fakeFetcher) Fetch(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if f.failOnce {
		f.failOnce = false
		f.mu.Unlock()
		return kafka.Message{}, errors.New("rebalance")
	}
	if len(f.queue) > 0 {
		m := f.queue[0]
		f.queue = f.queue[1:]
		f.mu.Unlock()
		return m, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeFetcher) Commit(_ context.Context, m kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, m.Offset)
	return nil
}

func (f *fakeFetcher) commits() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.committed...)
}

type captured struct {
	mu     sync.Mutex
	events []model.EventPayload
}

func (c *captured) Enqueue(_ context.Context, ev model.EventPayload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captured) got() []model.EventPayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.EventPayload(nil), c.events...)
}

func TestNotifierHandlesAndCommitsEverything(t *testing.T) {
	f := &fakeFetcher{failOnce: true, queue: []kafka.Message{
		{Offset: 1, Key: []byte("t1"), Value: []byte(`{"eventId":"e1","eventType":"TASK_CREATED","aggregateId":"t1","newRadiusMeters":500}`)},
		{Offset: 2, Value: []byte(`not json`)},
		{Offset: 3, Value: []byte(`{"eventType":"SOMETHING_ELSE","aggregateId":"t1"}`)},
		{Offset: 4, Key: []byte("t2"), Value: []byte(`{"eventType":"TASK_REOPENED","assignmentChange":"unassigned"}`)},
	}}
	sink := &captured{}
	n := NewNotifier(f, sink, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	require.Eventually(t, func() bool { return len(f.commits()) == 4 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int64{1, 2, 3, 4}, f.commits(), "poison messages are committed too")

	got := sink.got()
	require.Len(t, got, 2)
	assert.Equal(t, model.EventCreated, got[0].EventType)
	assert.Equal(t, "t1", got[0].AggregateID)
	assert.Equal(t, model.EventReleased, got[1].EventType)
	assert.Equal(t, "t2", got[1].AggregateID, "message key fills a missing aggregate id")
}
