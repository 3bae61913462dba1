package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/model"
)

func normalize(t *testing.T, raw string) (model.EventPayload, error) {
	t.Helper()
	ev, err := Decode([]byte(raw))
	require.NoError(t, err)
	return Normalize(ev)
}

func TestCanonicalPassThrough(t *testing.T) {
	p, err := normalize(t, `{
		"eventId":"e1","eventType":"CREATED","aggregateId":"t1",
		"occurredAt":"2026-01-02T03:04:05Z","newRadiusMeters":1000,
		"offerAmount":"150.00","offerCurrency":"INR"
	}`)
	require.NoError(t, err)
	assert.Equal(t, model.EventCreated, p.EventType)
	assert.Equal(t, "e1", p.EventID)
	assert.Equal(t, "t1", p.TaskID())
	require.NotNil(t, p.NewRadiusMeters)
	assert.Equal(t, 1000, *p.NewRadiusMeters)
	require.True(t, p.HasOffer())
	assert.Equal(t, "150", p.OfferAmount.Decimal.String())
}

func TestTaskIDAlias(t *testing.T) {
	p, err := normalize(t, `{"eventType":"cancelled","taskId":"t9"}`)
	require.NoError(t, err)
	assert.Equal(t, model.EventCancelled, p.EventType)
	assert.Equal(t, "t9", p.AggregateID)
}

func TestReopenedMapping(t *testing.T) {
	cases := map[string]model.EventType{
		"unassigned": model.EventReleased,
		"assigned":   model.EventReassigned,
		"changed":    model.EventReassigned,
		"CHANGED":    model.EventReassigned,
	}
	for change, want := range cases {
		p, err := normalize(t, `{"eventType":"TASK_REOPENED","aggregateId":"t1","assignmentChange":"`+change+`"}`)
		require.NoErrorf(t, err, "change %q", change)
		assert.Equal(t, want, p.EventType)
		assert.Equal(t, "t1", p.AggregateID)
	}
}

func TestReopenedUnknownChangeDropped(t *testing.T) {
	_, err := normalize(t, `{"eventType":"TASK_REOPENED","aggregateId":"t1","assignmentChange":"swapped"}`)
	require.ErrorIs(t, err, ErrUnmappableChange)
}

func TestAliases(t *testing.T) {
	for legacy, want := range aliases {
		p, err := normalize(t, `{"eventType":"`+legacy+`","aggregateId":"t1"}`)
		require.NoError(t, err)
		assert.Equal(t, want, p.EventType, legacy)
	}
}

func TestUnknownDropped(t *testing.T) {
	_, err := normalize(t, `{"eventType":"TASK_EXPLODED","aggregateId":"t1"}`)
	require.ErrorIs(t, err, ErrUnknownEventType)

	_, err = normalize(t, `{"aggregateId":"t1"}`)
	require.ErrorIs(t, err, ErrMissingEventType)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte(`{not json`))
	require.Error(t, err)
}
