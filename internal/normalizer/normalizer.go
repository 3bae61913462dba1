// Package normalizer maps raw bus events, including deprecated shapes, onto
// the canonical event set.
package normalizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/model"
)

var (
	ErrUnknownEventType = errors.New("unknown event type")
	ErrUnmappableChange = errors.New("unmappable assignment change")
	ErrMissingEventType = errors.New("missing event type")
)

// legacyReopened carried the assignment change in a side field.
const legacyReopened = "TASK_REOPENED"

var aliases = map[string]model.EventType{
	"TASK_CREATED":            model.EventCreated,
	"SEARCH_RADIUS_EXPANDED":  model.EventRadiusExpanded,
	"HELPER_AUTH_REQUESTED":   model.EventAuthRequested,
	"HELPER_AUTH_APPROVED":    model.EventAuthApproved,
	"HELPER_AUTH_REJECTED":    model.EventAuthRejected,
	"HELPER_AUTH_TIMEOUT":     model.EventAuthTimeout,
	"TASK_CANCELLED":          model.EventCancelled,
	"TASK_RELEASED":           model.EventReleased,
	"TASK_REASSIGNED":         model.EventReassigned,
	"TASK_TIMEOUT":            model.EventTimeout,
	"OFFER_CHANGED":           model.EventOfferUpdated,
	"PAYMENT_ACTION_REQUIRED": model.EventPaymentRequested,
	"PAYMENT_SUCCEEDED":       model.EventPaymentCompleted,
}

// RawEvent is the wire shape: the canonical payload plus legacy side fields.
type RawEvent struct {
	model.EventPayload

	// Type is the event type as received, before mapping.
	Type             string `json:"-"`
	AssignmentChange string `json:"assignmentChange,omitempty"`
	// LegacyTaskID is accepted as an alias of aggregateId by older producers.
	LegacyTaskID string `json:"taskId,omitempty"`
}

// Decode parses a bus message value.
func Decode(raw []byte) (RawEvent, error) {
	var ev RawEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return RawEvent{}, fmt.Errorf("decode event: %w", err)
	}
	ev.Type = strings.ToUpper(strings.TrimSpace(string(ev.EventType)))
	if ev.AggregateID == "" {
		ev.AggregateID = ev.LegacyTaskID
	}
	return ev, nil
}

// Normalize returns the canonical payload, or an error when the event must be
// dropped. Dropped events are not retried.
func Normalize(ev RawEvent) (model.EventPayload, error) {
	typ := ev.Type
	if typ == "" {
		typ = strings.ToUpper(strings.TrimSpace(string(ev.EventType)))
	}
	if typ == "" {
		return model.EventPayload{}, ErrMissingEventType
	}

	if t, ok := model.ParseEventType(typ); ok {
		return ev.EventPayload.WithType(t), nil
	}

	if typ == legacyReopened {
		switch strings.ToLower(strings.TrimSpace(ev.AssignmentChange)) {
		case "unassigned":
			return ev.EventPayload.WithType(model.EventReleased), nil
		case "assigned", "changed":
			return ev.EventPayload.WithType(model.EventReassigned), nil
		default:
			return model.EventPayload{}, fmt.Errorf("%w: %q", ErrUnmappableChange, ev.AssignmentChange)
		}
	}

	if t, ok := aliases[typ]; ok {
		return ev.EventPayload.WithType(t), nil
	}

	return model.EventPayload{}, fmt.Errorf("%w: %s", ErrUnknownEventType, typ)
}
