package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EventType is the canonical notification event type.
type EventType string

const (
	EventCreated          EventType = "CREATED"
	EventRadiusExpanded   EventType = "RADIUS_EXPANDED"
	EventAuthRequested    EventType = "AUTH_REQUESTED"
	EventAuthApproved     EventType = "AUTH_APPROVED"
	EventAuthRejected     EventType = "AUTH_REJECTED"
	EventAuthTimeout      EventType = "AUTH_TIMEOUT"
	EventCancelled        EventType = "CANCELLED"
	EventReleased         EventType = "RELEASED"
	EventReassigned       EventType = "REASSIGNED"
	EventTimeout          EventType = "TIMEOUT"
	EventOfferUpdated     EventType = "OFFER_UPDATED"
	EventPaymentRequested EventType = "PAYMENT_REQUESTED"
	EventPaymentCompleted EventType = "PAYMENT_COMPLETED"
)

// EventTypes lists every canonical event type.
var EventTypes = []EventType{
	EventCreated,
	EventRadiusExpanded,
	EventAuthRequested,
	EventAuthApproved,
	EventAuthRejected,
	EventAuthTimeout,
	EventCancelled,
	EventReleased,
	EventReassigned,
	EventTimeout,
	EventOfferUpdated,
	EventPaymentRequested,
	EventPaymentCompleted,
}

func (t EventType) String() string { return string(t) }

func (t EventType) Valid() bool {
	for _, c := range EventTypes {
		if c == t {
			return true
		}
	}
	return false
}

// ParseEventType trims and upper-cases s; ok reports whether it is canonical.
func ParseEventType(s string) (EventType, bool) {
	t := EventType(strings.ToUpper(strings.TrimSpace(s)))
	return t, t.Valid()
}

// Priority is used by the coalescer; higher wins.
func (t EventType) Priority() int {
	switch t {
	case EventCancelled:
		return 100
	case EventAuthTimeout:
		return 90
	case EventReassigned:
		return 80
	case EventTimeout:
		return 70
	default:
		return 10
	}
}

// InvitesAudience reports whether the event addresses the radius audience
// (and therefore moves candidates to NOTIFIED on success).
func (t EventType) InvitesAudience() bool {
	return t == EventCreated || t == EventRadiusExpanded
}

// RoleKeyed reports whether template wording depends on the recipient role.
func (t EventType) RoleKeyed() bool {
	return t == EventPaymentRequested || t == EventPaymentCompleted
}

type Geo struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// EventPayload is the canonical event flowing through the pipeline.
// Treat it as immutable once built.
type EventPayload struct {
	EventID              string              `json:"eventId,omitempty"`
	EventType            EventType           `json:"eventType"`
	AggregateID          string              `json:"aggregateId,omitempty"` // task id
	OccurredAt           time.Time           `json:"occurredAt"`
	ActorUserID          string              `json:"actorUserId,omitempty"`
	RequesterUserID      string              `json:"requesterUserId,omitempty"`
	PreviousHelperID     string              `json:"previousHelperId,omitempty"`
	NewHelperID          string              `json:"newHelperId,omitempty"`
	PreviousRadiusMeters *int                `json:"previousRadiusMeters,omitempty"`
	NewRadiusMeters      *int                `json:"newRadiusMeters,omitempty"`
	OfferAmount          decimal.NullDecimal `json:"offerAmount"`
	OfferCurrency        string              `json:"offerCurrency,omitempty"`
	PaymentRequestID     string              `json:"paymentRequestId,omitempty"`
	Geo                  *Geo                `json:"geo,omitempty"`
}

// TaskID is an alias of AggregateID.
func (p EventPayload) TaskID() string { return p.AggregateID }

// HelperID returns the new helper if set, else the previous one.
func (p EventPayload) HelperID() string {
	if strings.TrimSpace(p.NewHelperID) != "" {
		return p.NewHelperID
	}
	return p.PreviousHelperID
}

// HasOffer reports whether an offer amount is present.
func (p EventPayload) HasOffer() bool { return p.OfferAmount.Valid }

// WithType returns a copy with the event type replaced.
func (p EventPayload) WithType(t EventType) EventPayload {
	p.EventType = t
	return p
}
