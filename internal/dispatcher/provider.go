package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// PushMessage is one entry of an Expo-style batch request.
type PushMessage struct {
	To    string         `json:"to"`
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data,omitempty"`
	Sound string         `json:"sound,omitempty"`
}

type TicketDetails struct {
	Error string `json:"error,omitempty"`
}

// Ticket is the provider's per-message answer, aligned by position with the
// request array.
type Ticket struct {
	Status  string         `json:"status"`
	ID      string         `json:"id,omitempty"`
	Message string         `json:"message,omitempty"`
	Details *TicketDetails `json:"details,omitempty"`
}

func (t Ticket) OK() bool { return t.Status == "ok" }

// ErrorCode returns details.error, if any.
func (t Ticket) ErrorCode() string {
	if t.Details == nil {
		return ""
	}
	return t.Details.Error
}

type Provider interface {
	Name() string
	SendBatch(ctx context.Context, msgs []PushMessage) ([]Ticket, error)
}

type ProviderConfig struct {
	Name          string
	URL           string
	AccessToken   string
	TimeoutMs     int
	RatePerSec    float64
	Burst         int
	FailThreshold int
	OpenForMs     int
}

// HTTPProvider posts batches to an Expo-compatible push endpoint behind a
// circuit breaker and a client-side rate limiter.
type HTTPProvider struct {
	name    string
	url     string
	token   string
	client  *http.Client
	br      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	log     *zap.Logger
}

func NewHTTPProvider(c ProviderConfig, log *zap.Logger) *HTTPProvider {
	if c.TimeoutMs <= 0 {
		c.TimeoutMs = 10000
	}
	if c.FailThreshold <= 0 {
		c.FailThreshold = 5
	}
	if c.OpenForMs <= 0 {
		c.OpenForMs = 15000
	}
	if c.Name == "" {
		c.Name = "expo"
	}
	if log == nil {
		log = zap.NewNop()
	}

	limit := rate.Inf
	if c.RatePerSec > 0 {
		limit = rate.Limit(c.RatePerSec)
	}
	burst := c.Burst
	if burst <= 0 {
		burst = 1
	}

	threshold := uint32(c.FailThreshold)
	br := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        c.Name,
		MaxRequests: 1,
		Timeout:     time.Duration(c.OpenForMs) * time.Millisecond,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("push provider breaker state changed",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &HTTPProvider{
		name:    c.Name,
		url:     c.URL,
		token:   c.AccessToken,
		client:  &http.Client{Timeout: time.Duration(c.TimeoutMs) * time.Millisecond},
		br:      br,
		limiter: rate.NewLimiter(limit, burst),
		log:     log,
	}
}

func (p *HTTPProvider) Name() string { return p.name }

func (p *HTTPProvider) SendBatch(ctx context.Context, msgs []PushMessage) ([]Ticket, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("provider=%s rate limit: %w", p.name, err)
	}
	out, err := p.br.Execute(func() (any, error) {
		return p.post(ctx, msgs)
	})
	if err != nil {
		return nil, err
	}
	return out.([]Ticket), nil
}

type pushResponse struct {
	Data []Ticket `json:"data"`
}

func (p *HTTPProvider) post(ctx context.Context, msgs []PushMessage) ([]Ticket, error) {
	b, err := json.Marshal(msgs)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	res, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}

	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<16))
		return nil, fmt.Errorf("provider=%s status=%d", p.name, res.StatusCode)
	}

	var pr pushResponse
	if err := json.NewDecoder(res.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("provider=%s decode response: %w", p.name, err)
	}
	return pr.Data, nil
}
