package dispatcher

import (
	"context"
	"sync"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/model"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/repository"
)

type staticResolver []string

func (r staticResolver) Resolve(context.Context, model.EventPayload) ([]string, error) {
	return r, nil
}

type memDeliveries struct {
	mu        sync.Mutex
	rows      map[string]*model.DeliveryLogEntry
	insertErr error
}

func newMemDeliveries() *memDeliveries {
	return &memDeliveries{rows: make(map[string]*model.DeliveryLogEntry)}
}

func (m *memDeliveries) GetByKey(_ context.Context, key string) (*model.DeliveryLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[key]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (m *memDeliveries) InsertProcessing(_ context.Context, e model.DeliveryLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	if _, ok := m.rows[e.IdempotencyKey]; ok {
		return repository.ErrDuplicateKey
	}
	e.Status = model.DeliveryProcessing
	m.rows[e.IdempotencyKey] = &e
	return nil
}

func (m *memDeliveries) ReclaimFailed(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[key]
	if !ok || e.Status != model.DeliveryFailed {
		return false, nil
	}
	e.Status = model.DeliveryProcessing
	return true, nil
}

// Writes fail on a cancelled context, as the SQL driver does.
func (m *memDeliveries) MarkSent(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.rows[key]; ok {
		e.Status = model.DeliverySent
		e.LastError = nil
	}
	return nil
}

func (m *memDeliveries) MarkFailed(ctx context.Context, key, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.rows[key]; ok {
		e.Status = model.DeliveryFailed
		e.LastError = &reason
	}
	return nil
}

func (m *memDeliveries) byStatus(s model.DeliveryStatus) []model.DeliveryLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.DeliveryLogEntry
	for _, e := range m.rows {
		if e.Status == s {
			out = append(out, *e)
		}
	}
	return out
}

type memDevices struct {
	mu            sync.Mutex
	byUser        map[string][]model.Device
	deactivated   []string
	deactivateErr error
}

func newMemDevices() *memDevices {
	return &memDevices{byUser: make(map[string][]model.Device)}
}

func (m *memDevices) add(user, token, locale string) {
	m.byUser[user] = append(m.byUser[user], model.Device{
		UserID: user, Token: token, TokenHash: model.HashToken(token),
		Provider: "expo", Locale: locale, Active: true,
	})
}

func (m *memDevices) ListActiveByUsers(_ context.Context, ids []string) (map[string][]model.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]model.Device)
	for _, id := range ids {
		for _, d := range m.byUser[id] {
			if d.Active {
				out[id] = append(out[id], d)
			}
		}
	}
	return out, nil
}

func (m *memDevices) DeactivateByTokenHash(ctx context.Context, hash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deactivateErr != nil {
		return m.deactivateErr
	}
	m.deactivated = append(m.deactivated, hash)
	for u, devs := range m.byUser {
		for i := range devs {
			if devs[i].TokenHash == hash {
				m.byUser[u][i].Active = false
			}
		}
	}
	return nil
}

type memCandidates struct {
	mu       sync.Mutex
	notified map[string][]string
}

func (m *memCandidates) MarkNotified(ctx context.Context, requestID string, ids []string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.notified == nil {
		m.notified = make(map[string][]string)
	}
	m.notified[requestID] = append(m.notified[requestID], ids...)
	return int64(len(ids)), nil
}

// scriptedProvider answers each SendBatch call with reply(msgs).
type scriptedProvider struct {
	mu    sync.Mutex
	calls [][]PushMessage
	reply func(msgs []PushMessage) ([]Ticket, error)
}

func (p *scriptedProvider) Name() string { return "expo" }

func (p *scriptedProvider) SendBatch(_ context.Context, msgs []PushMessage) ([]Ticket, error) {
	p.mu.Lock()
	p.calls = append(p.calls, msgs)
	p.mu.Unlock()
	if p.reply == nil {
		return okTickets(msgs), nil
	}
	return p.reply(msgs)
}

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func okTickets(msgs []PushMessage) []Ticket {
	out := make([]Ticket, len(msgs))
	for i := range out {
		out[i] = Ticket{Status: "ok"}
	}
	return out
}

type memReports struct {
	mu   sync.Mutex
	rows []model.DeliveryReport
}

func (m *memReports) InsertBatch(ctx context.Context, rows []model.DeliveryReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, rows...)
	return nil
}
