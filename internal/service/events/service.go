// Package events is the producer side of the pipeline: it records who an
// event addresses and writes the event to the outbox in the same
// transaction.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/model"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/util"
)

var (
	ErrInvalidEventType = errors.New("invalid event type")
	ErrMissingAggregate = errors.New("missing aggregate id")
	ErrMissingRadius    = errors.New("audience given without newRadiusMeters")
)

type OutboxWriter interface {
	Insert(ctx context.Context, tx *sqlx.Tx, e model.OutboxEntry) (int64, error)
}

type AudienceWriter interface {
	Record(ctx context.Context, tx *sqlx.Tx, taskID string, t model.EventType, radiusMeters int, userIDs []string) error
}

type CandidateWriter interface {
	InsertPending(ctx context.Context, tx *sqlx.Tx, requestID string, helperIDs []string) error
}

// AudienceFinder looks up the users within the event's radius. The geo
// query lives in the task service; this package only consumes the result.
type AudienceFinder interface {
	FindAudience(ctx context.Context, ev model.EventPayload) ([]string, error)
}

type txRunner func(ctx context.Context, fn func(tx *sqlx.Tx) error) error

type Service struct {
	runTx      txRunner
	outbox     OutboxWriter
	audience   AudienceWriter
	candidates CandidateWriter
	finder     AudienceFinder
	topic      string
	now        func() time.Time
}

// New constructs the emitter. finder may be nil, in which case invitation
// events only reach the audience passed to Emit.
func New(
	db *sqlx.DB,
	outboxRepo OutboxWriter,
	audienceRepo AudienceWriter,
	candidatesRepo CandidateWriter,
	finder AudienceFinder,
	topic string,
) *Service {
	return &Service{
		runTx: func(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
			tx, err := db.BeginTxx(ctx, nil)
			if err != nil {
				return err
			}
			defer func() { _ = tx.Rollback() }()
			if err := fn(tx); err != nil {
				return err
			}
			return tx.Commit()
		},
		outbox:     outboxRepo,
		audience:   audienceRepo,
		candidates: candidatesRepo,
		finder:     finder,
		topic:      topic,
		now:        time.Now,
	}
}

type Result struct {
	EventID  string `json:"event_id"`
	OutboxID int64  `json:"outbox_id"`
	Audience int    `json:"audience"`
}

// Emit stores ev for publication. For CREATED and RADIUS_EXPANDED the
// audience is recorded and every member becomes a PENDING candidate in the
// same transaction as the outbox row.
func (s *Service) Emit(ctx context.Context, ev model.EventPayload, audience []string) (Result, error) {
	if !ev.EventType.Valid() {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidEventType, ev.EventType)
	}
	ev.AggregateID = strings.TrimSpace(ev.AggregateID)
	if ev.AggregateID == "" {
		return Result{}, ErrMissingAggregate
	}
	if ev.EventID == "" {
		ev.EventID = util.NewID()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = s.now().UTC()
	}

	if ev.EventType.InvitesAudience() {
		if len(audience) == 0 && s.finder != nil && ev.NewRadiusMeters != nil {
			found, err := s.finder.FindAudience(ctx, ev)
			if err != nil {
				return Result{}, fmt.Errorf("find audience: %w", err)
			}
			audience = found
		}
		if len(audience) > 0 && ev.NewRadiusMeters == nil {
			return Result{}, ErrMissingRadius
		}
	} else {
		audience = nil
	}
	audience = uniq(audience)

	payload, err := json.Marshal(ev)
	if err != nil {
		return Result{}, fmt.Errorf("marshal event: %w", err)
	}

	res := Result{EventID: ev.EventID, Audience: len(audience)}
	err = s.runTx(ctx, func(tx *sqlx.Tx) error {
		if len(audience) > 0 {
			if err := s.audience.Record(ctx, tx, ev.TaskID(), ev.EventType, *ev.NewRadiusMeters, audience); err != nil {
				return fmt.Errorf("record audience: %w", err)
			}
			if err := s.candidates.InsertPending(ctx, tx, ev.TaskID(), audience); err != nil {
				return fmt.Errorf("insert candidates: %w", err)
			}
		}

		id, err := s.outbox.Insert(ctx, tx, model.OutboxEntry{
			EventType:   ev.EventType.String(),
			AggregateID: ev.AggregateID,
			Topic:       s.topic,
			Payload:     payload,
		})
		if err != nil {
			return fmt.Errorf("insert outbox: %w", err)
		}
		res.OutboxID = id
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func uniq(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
