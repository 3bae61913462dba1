package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/model"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/normalizer"
)

// journal records writes and discards them when the transaction fails.
type journal struct {
	committed []string
	pending   []string
	outbox    []model.OutboxEntry
	failOn    string
}

func (j *journal) runTx(_ context.Context, fn func(tx *sqlx.Tx) error) error {
	j.pending = nil
	if err := fn(nil); err != nil {
		j.pending = nil
		return err
	}
	j.committed = append(j.committed, j.pending...)
	return nil
}

func (j *journal) write(op string) error {
	if op == j.failOn {
		return errors.New(op + " failed")
	}
	j.pending = append(j.pending, op)
	return nil
}

func (j *journal) Insert(_ context.Context, _ *sqlx.Tx, e model.OutboxEntry) (int64, error) {
	if err := j.write("outbox"); err != nil {
		return 0, err
	}
	j.outbox = append(j.outbox, e)
	return int64(len(j.outbox)), nil
}

func (j *journal) Record(_ context.Context, _ *sqlx.Tx, _ string, _ model.EventType, _ int, _ []string) error {
	return j.write("audience")
}

func (j *journal) InsertPending(_ context.Context, _ *sqlx.Tx, _ string, _ []string) error {
	return j.write("candidates")
}

type finderFunc func(ev model.EventPayload) ([]string, error)

func (f finderFunc) FindAudience(_ context.Context, ev model.EventPayload) ([]string, error) { return f(ev) }

func newTestService(j *journal, finder AudienceFinder) *Service {
	return &Service{
		runTx:      j.runTx,
		outbox:     j,
		audience:   j,
		candidates: j,
		finder:     finder,
		topic:      "notification.events",
		now:        func() time.Time { return time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC) },
	}
}

func radius(m int) *int { return &m }

func TestEmitCreatedWritesAudienceCandidatesAndOutbox(t *testing.T) {
	j := &journal{}
	s := newTestService(j, nil)

	res, err := s.Emit(context.Background(), model.EventPayload{
		EventType: model.EventCreated, AggregateID: "t1", NewRadiusMeters: radius(1000),
	}, []string{"u1", "u2", "u1", " "})
	require.NoError(t, err)

	assert.Equal(t, []string{"audience", "candidates", "outbox"}, j.committed)
	assert.Equal(t, 2, res.Audience)
	assert.Equal(t, int64(1), res.OutboxID)
	assert.Len(t, res.EventID, 26, "generated ULID")

	require.Len(t, j.outbox, 1)
	row := j.outbox[0]
	assert.Equal(t, "CREATED", row.EventType)
	assert.Equal(t, "t1", row.AggregateID)
	assert.Equal(t, "notification.events", row.Topic)

	// the payload round-trips through the consumer path
	raw, err := normalizer.Decode(row.Payload)
	require.NoError(t, err)
	ev, err := normalizer.Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, res.EventID, ev.EventID)
	assert.Equal(t, model.EventCreated, ev.EventType)
	assert.False(t, ev.OccurredAt.IsZero())
}

func TestEmitNonInvitationSkipsAudience(t *testing.T) {
	j := &journal{}
	s := newTestService(j, nil)

	res, err := s.Emit(context.Background(), model.EventPayload{
		EventID: "e1", EventType: model.EventCancelled, AggregateID: "t1", PreviousHelperID: "h",
	}, []string{"ignored"})
	require.NoError(t, err)
	assert.Equal(t, "e1", res.EventID)
	assert.Equal(t, 0, res.Audience)
	assert.Equal(t, []string{"outbox"}, j.committed)
}

func TestEmitUsesFinderWhenNoAudienceGiven(t *testing.T) {
	j := &journal{}
	s := newTestService(j, finderFunc(func(ev model.EventPayload) ([]string, error) {
		return []string{"near1", "near2"}, nil
	}))

	res, err := s.Emit(context.Background(), model.EventPayload{
		EventType: model.EventRadiusExpanded, AggregateID: "t1", NewRadiusMeters: radius(2000),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Audience)
}

func TestEmitIsAtomic(t *testing.T) {
	j := &journal{failOn: "outbox"}
	s := newTestService(j, nil)

	_, err := s.Emit(context.Background(), model.EventPayload{
		EventType: model.EventCreated, AggregateID: "t1", NewRadiusMeters: radius(1000),
	}, []string{"u1"})
	require.Error(t, err)
	assert.Empty(t, j.committed)
}

func TestEmitValidation(t *testing.T) {
	s := newTestService(&journal{}, nil)
	ctx := context.Background()

	_, err := s.Emit(ctx, model.EventPayload{EventType: "NOPE", AggregateID: "t1"}, nil)
	require.ErrorIs(t, err, ErrInvalidEventType)

	_, err = s.Emit(ctx, model.EventPayload{EventType: model.EventCreated}, nil)
	require.ErrorIs(t, err, ErrMissingAggregate)

	_, err = s.Emit(ctx, model.EventPayload{EventType: model.EventCreated, AggregateID: "t1"}, []string{"u1"})
	require.ErrorIs(t, err, ErrMissingRadius)
}

func TestEmitPayloadKeepsOffer(t *testing.T) {
	j := &journal{}
	s := newTestService(j, nil)

	var ev model.EventPayload
	require.NoError(t, json.Unmarshal([]byte(`{"eventType":"OFFER_UPDATED","aggregateId":"t1","offerAmount":"150.50","offerCurrency":"INR"}`), &ev))
	_, err := s.Emit(context.Background(), ev, nil)
	require.NoError(t, err)

	var back model.EventPayload
	require.NoError(t, json.Unmarshal(j.outbox[0].Payload, &back))
	require.True(t, back.HasOffer())
	assert.Equal(t, "150.5", back.OfferAmount.Decimal.String())
}
