// Package recipients decides which users an event is addressed to.
package recipients

import (
	"context"
	"fmt"
	"strings"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/model"
)

// AudienceLister returns the users recorded as the audience of a task for
// an event type at a given radius.
type AudienceLister interface {
	ListUserIDs(ctx context.Context, taskID string, t model.EventType, radiusMeters int) ([]string, error)
}

// CandidateLister returns helpers invited to a request in the given states.
type CandidateLister interface {
	ListHelperIDs(ctx context.Context, requestID string, states ...model.CandidateState) ([]string, error)
}

type Resolver struct {
	audience   AudienceLister
	candidates CandidateLister
}

func NewResolver(a AudienceLister, c CandidateLister) *Resolver {
	return &Resolver{audience: a, candidates: c}
}

// Resolve returns the ordered, de-duplicated recipient ids for ev.
func (r *Resolver) Resolve(ctx context.Context, ev model.EventPayload) ([]string, error) {
	var ids []string

	switch ev.EventType {
	case model.EventCreated, model.EventRadiusExpanded:
		if ev.NewRadiusMeters == nil {
			return nil, nil
		}
		aud, err := r.audience.ListUserIDs(ctx, ev.TaskID(), ev.EventType, *ev.NewRadiusMeters)
		if err != nil {
			return nil, fmt.Errorf("list audience: %w", err)
		}
		ids = aud

	case model.EventAuthRequested, model.EventReleased:
		ids = []string{ev.RequesterUserID}

	case model.EventAuthApproved, model.EventAuthRejected:
		ids = []string{ev.HelperID()}

	case model.EventAuthTimeout, model.EventReassigned, model.EventTimeout,
		model.EventPaymentRequested, model.EventPaymentCompleted:
		ids = []string{ev.RequesterUserID, ev.HelperID()}

	case model.EventCancelled:
		cands, err := r.outstanding(ctx, ev.TaskID())
		if err != nil {
			return nil, err
		}
		ids = append([]string{ev.PreviousHelperID}, cands...)

	case model.EventOfferUpdated:
		cands, err := r.outstanding(ctx, ev.TaskID())
		if err != nil {
			return nil, err
		}
		ids = append([]string{ev.HelperID()}, cands...)

	default:
		return nil, nil
	}

	return dedupe(ids), nil
}

func (r *Resolver) outstanding(ctx context.Context, taskID string) ([]string, error) {
	if taskID == "" {
		return nil, nil
	}
	ids, err := r.candidates.ListHelperIDs(ctx, taskID, model.CandidatePending, model.CandidateNotified)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	return ids, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
