// Package dispatcher turns a canonical event into push notifications with
// at most one effective delivery per (notification, recipient).
//
// A recipient is claimed in the delivery log (PROCESSING) before any
// provider call, and its outcome (SENT or FAILED) is written in a separate
// step. Dispatch never returns an error; every failure ends up as a FAILED
// row and a log line.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/metrics"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/model"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/repository"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/templates"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/util"
)

const (
	reasonNoTokens   = "no active tokens"
	reasonSendFailed = "expo send failed"
	reasonNoTicket   = "no ticket"
	reasonNoTemplate = "no template"
)

// invalidTokenErrors are ticket errors that mean the device will never
// accept a push again.
var invalidTokenErrors = map[string]struct{}{
	"DeviceNotRegistered": {},
	"InvalidCredentials":  {},
}

type Resolver interface {
	Resolve(ctx context.Context, ev model.EventPayload) ([]string, error)
}

type DeliveryLog interface {
	GetByKey(ctx context.Context, key string) (*model.DeliveryLogEntry, error)
	InsertProcessing(ctx context.Context, e model.DeliveryLogEntry) error
	ReclaimFailed(ctx context.Context, key string) (bool, error)
	MarkSent(ctx context.Context, key string) error
	MarkFailed(ctx context.Context, key, reason string) error
}

type DeviceStore interface {
	ListActiveByUsers(ctx context.Context, userIDs []string) (map[string][]model.Device, error)
	DeactivateByTokenHash(ctx context.Context, tokenHash string) error
}

type CandidateStore interface {
	MarkNotified(ctx context.Context, requestID string, helperIDs []string) (int64, error)
}

// ReportSink receives one analytics row per finished recipient.
type ReportSink interface {
	InsertBatch(ctx context.Context, rows []model.DeliveryReport) error
}

type Config struct {
	BatchSize       int // default 100
	MaxSendAttempts int // default 3
}

type Deps struct {
	Resolver   Resolver
	Deliveries DeliveryLog
	Devices    DeviceStore
	Candidates CandidateStore
	Catalog    *templates.Catalog
	Provider   Provider
	Reports    ReportSink // optional
}

type Dispatcher struct {
	resolver   Resolver
	deliveries DeliveryLog
	devices    DeviceStore
	candidates CandidateStore
	catalog    *templates.Catalog
	provider   Provider
	reports    ReportSink

	batchSize   int
	maxAttempts int
	newID       func() string
	now         func() time.Time
	log         *zap.Logger
}

func NewDispatcher(deps Deps, cfg Config, log *zap.Logger) *Dispatcher {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 100
	}
	if cfg.MaxSendAttempts < 1 {
		cfg.MaxSendAttempts = 3
	}
	if log == nil {
		log = zap.NewNop()
	}
	catalog := deps.Catalog
	if catalog == nil {
		catalog = templates.MustNew()
	}
	return &Dispatcher{
		resolver:    deps.Resolver,
		deliveries:  deps.Deliveries,
		devices:     deps.Devices,
		candidates:  deps.Candidates,
		catalog:     catalog,
		provider:    deps.Provider,
		reports:     deps.Reports,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxSendAttempts,
		newID:       util.NewID,
		now:         time.Now,
		log:         log,
	}
}

// recipientState tracks one claimed recipient through a dispatch call.
type recipientState struct {
	userID   string
	key      string
	devices  int
	ok       bool
	firstErr string
}

func (s *recipientState) fail(reason string) {
	if s.firstErr == "" {
		s.firstErr = reason
	}
}

// target ties a provider message back to its recipient and device.
type target struct {
	rs        *recipientState
	tokenHash string
}

// Dispatch delivers ev to every resolved recipient that has not already
// been served.
func (d *Dispatcher) Dispatch(ctx context.Context, ev model.EventPayload) {
	log := d.log.With(
		zap.String("event_id", ev.EventID),
		zap.String("event_type", ev.EventType.String()),
		zap.String("task_id", ev.TaskID()),
	)

	recipients, err := d.resolver.Resolve(ctx, ev)
	if err != nil {
		log.Error("resolve recipients failed", zap.Error(err))
		return
	}
	if len(recipients) == 0 {
		log.Debug("no recipients")
		return
	}

	claimed := make([]*recipientState, 0, len(recipients))
	for _, r := range recipients {
		key := IdempotencyKey(ev, r)
		if d.claim(ctx, log, ev, r, key) {
			claimed = append(claimed, &recipientState{userID: r, key: key})
		} else {
			metrics.DeliveriesTotal.WithLabelValues("skipped", ev.EventType.String()).Inc()
		}
	}
	if len(claimed) == 0 {
		return
	}

	userIDs := make([]string, 0, len(claimed))
	for _, rs := range claimed {
		userIDs = append(userIDs, rs.userID)
	}
	devices, err := d.devices.ListActiveByUsers(ctx, userIDs)
	if err != nil {
		log.Error("device lookup failed", zap.Error(err))
		for _, rs := range claimed {
			rs.fail(fmt.Sprintf("device lookup failed: %v", err))
		}
		d.finish(ctx, log, ev, claimed)
		return
	}

	var (
		msgs    []PushMessage
		targets []target
	)
	for _, rs := range claimed {
		devs := devices[rs.userID]
		if len(devs) == 0 {
			rs.fail(reasonNoTokens)
			continue
		}
		rs.devices = len(devs)
		role := roleOf(ev, rs.userID)
		for _, dev := range devs {
			tpl, ok := d.catalog.TemplateFor(ev.EventType, role, dev.Locale)
			if !ok {
				rs.fail(reasonNoTemplate)
				continue
			}
			msgs = append(msgs, PushMessage{
				To:    dev.Token,
				Title: tpl.Title,
				Body:  withOfferSuffix(tpl.Body, ev),
				Data:  dataPayload(ev),
				Sound: "default",
			})
			targets = append(targets, target{rs: rs, tokenHash: dev.TokenHash})
		}
	}

	for start := 0; start < len(msgs); start += d.batchSize {
		end := min(start+d.batchSize, len(msgs))
		d.sendBatch(ctx, log, msgs[start:end], targets[start:end])
	}

	d.finish(ctx, log, ev, claimed)
}

// claim reports whether this call owns delivery for the key.
func (d *Dispatcher) claim(ctx context.Context, log *zap.Logger, ev model.EventPayload, recipient, key string) bool {
	existing, err := d.deliveries.GetByKey(ctx, key)
	if err != nil {
		log.Warn("delivery log lookup failed", zap.String("recipient", recipient), zap.Error(err))
		return false
	}
	if existing != nil {
		switch existing.Status {
		case model.DeliveryFailed:
			ok, err := d.deliveries.ReclaimFailed(ctx, key)
			if err != nil {
				log.Warn("delivery reclaim failed", zap.String("recipient", recipient), zap.Error(err))
				return false
			}
			return ok
		default:
			// SENT or PROCESSING: delivered or in flight elsewhere
			return false
		}
	}

	err = d.deliveries.InsertProcessing(ctx, model.DeliveryLogEntry{
		ID:              d.newID(),
		IdempotencyKey:  key,
		EventID:         ev.EventID,
		RecipientUserID: recipient,
		Provider:        d.provider.Name(),
		Status:          model.DeliveryProcessing,
	})
	if errors.Is(err, repository.ErrDuplicateKey) {
		log.Debug("delivery claimed by another worker", zap.String("recipient", recipient))
		return false
	}
	if err != nil {
		log.Warn("delivery claim failed", zap.String("recipient", recipient), zap.Error(err))
		return false
	}
	return true
}

func (d *Dispatcher) sendBatch(ctx context.Context, log *zap.Logger, msgs []PushMessage, targets []target) {
	tickets, err := d.sendWithRetry(ctx, msgs)
	if err != nil {
		log.Warn("push batch failed",
			zap.Int("messages", len(msgs)),
			zap.Int("attempts", d.maxAttempts),
			zap.Error(err))
		for _, t := range targets {
			t.rs.fail(reasonSendFailed)
		}
		return
	}

	for i, t := range targets {
		if i >= len(tickets) {
			t.rs.fail(reasonNoTicket)
			continue
		}
		tk := tickets[i]
		if tk.OK() {
			t.rs.ok = true
			continue
		}

		reason := tk.Message
		if reason == "" {
			reason = tk.ErrorCode()
		}
		if reason == "" {
			reason = "ticket status " + tk.Status
		}
		t.rs.fail(reason)

		if _, invalid := invalidTokenErrors[tk.ErrorCode()]; invalid {
			err := d.devices.DeactivateByTokenHash(context.WithoutCancel(ctx), t.tokenHash)
			if errors.Is(err, repository.ErrNotFound) {
				log.Debug("device already inactive", zap.String("token_hash", t.tokenHash))
				continue
			}
			if err != nil {
				log.Warn("device deactivation failed", zap.String("token_hash", t.tokenHash), zap.Error(err))
				continue
			}
			metrics.DevicesDeactivated.Inc()
			log.Info("device deactivated",
				zap.String("recipient", t.rs.userID),
				zap.String("token_hash", t.tokenHash),
				zap.String("reason", tk.ErrorCode()))
		}
	}
}

// sendWithRetry retries immediately, without backoff.
func (d *Dispatcher) sendWithRetry(ctx context.Context, msgs []PushMessage) ([]Ticket, error) {
	var last error
	for i := 0; i < d.maxAttempts; i++ {
		tickets, err := d.provider.SendBatch(ctx, msgs)
		if err == nil {
			return tickets, nil
		}
		last = err
		if ctx.Err() != nil {
			break
		}
	}

	if last == nil {
		last = errors.New(reasonSendFailed)
	}

	return nil, last
}

// finish writes each recipient's outcome and promotes notified candidates.
// Claimed rows are always settled, even after ctx is cancelled, so none is
// left PROCESSING.
func (d *Dispatcher) finish(ctx context.Context, log *zap.Logger, ev model.EventPayload, claimed []*recipientState) {
	ctx = context.WithoutCancel(ctx)
	var (
		sent    []string
		reports = make([]model.DeliveryReport, 0, len(claimed))
		now     = d.now().UTC()
	)
	for _, rs := range claimed {
		status, outcome := model.DeliverySent, "sent"
		if rs.ok {
			if err := d.deliveries.MarkSent(ctx, rs.key); err != nil {
				log.Error("mark sent failed", zap.String("recipient", rs.userID), zap.Error(err))
			}
			sent = append(sent, rs.userID)
		} else {
			status, outcome = model.DeliveryFailed, "failed"
			if rs.firstErr == "" {
				rs.firstErr = reasonSendFailed
			}
			if err := d.deliveries.MarkFailed(ctx, rs.key, rs.firstErr); err != nil {
				log.Error("mark failed failed", zap.String("recipient", rs.userID), zap.Error(err))
			}
			log.Info("delivery failed", zap.String("recipient", rs.userID), zap.String("reason", rs.firstErr))
		}
		metrics.DeliveriesTotal.WithLabelValues(outcome, ev.EventType.String()).Inc()

		reports = append(reports, model.DeliveryReport{
			IdempotencyKey:  rs.key,
			EventID:         ev.EventID,
			EventType:       ev.EventType,
			TaskID:          ev.TaskID(),
			RecipientUserID: rs.userID,
			Status:          status,
			Devices:         rs.devices,
			Error:           rs.firstErr,
			CreatedAt:       now,
		})
	}

	if ev.EventType.InvitesAudience() && len(sent) > 0 && ev.TaskID() != "" {
		if n, err := d.candidates.MarkNotified(ctx, ev.TaskID(), sent); err != nil {
			log.Error("mark candidates notified failed", zap.Error(err))
		} else {
			log.Debug("candidates notified", zap.Int64("rows", n))
		}
	}

	if d.reports != nil {
		if err := d.reports.InsertBatch(ctx, reports); err != nil {
			log.Warn("delivery report write failed", zap.Error(err))
		}
	}

	log.Info("dispatch finished",
		zap.Int("recipients", len(claimed)),
		zap.Int("sent", len(sent)))
}
