// Package poller runs the long-poll exchange with the game platform. Each
// exchange carries the moves computed since the previous one as
// X-Match-<matchID> headers and brings back new turn requests and closed
// matches, which are applied to a session.Registry.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/wzf03/citabridge/observability"
	"github.com/wzf03/citabridge/session"
)

// HeaderPrefix precedes the match identifier in response headers.
const HeaderPrefix = "X-Match-"

// Round summarizes one successful exchange.
type Round struct {
	Transmitted []string  // Match IDs whose responses the platform received.
	Requests    []Request // New turns, in payload order.
	Results     []Result  // Closed matches, in payload order.
	Attempts    int       // Exchanges performed, including failed ones.
}

// Option configures a Poller after config-driven initialization.
type Option func(*Poller)

// WithHTTPClient overrides the default client. The client should not set a
// Timeout; the platform holds the connection until it has data.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Poller) { p.client = c }
}

// WithObserver overrides the default slog observer.
func WithObserver(o observability.Observer) Option {
	return func(p *Poller) { p.observer = o }
}

// Poller performs long-poll exchanges against one platform endpoint.
type Poller struct {
	url        string
	client     *http.Client
	retryDelay time.Duration
	maxRetries int
	observer   observability.Observer
}

// New creates a Poller from configuration.
func New(cfg *Config, opts ...Option) (*Poller, error) {
	if cfg.URL == "" {
		return nil, ErrNoURL
	}
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid platform url %q", cfg.URL)
	}

	observer, err := observability.GetObserver("slog")
	if err != nil {
		return nil, err
	}

	p := &Poller{
		url:        cfg.URL,
		client:     &http.Client{},
		retryDelay: cfg.RetryDelay.Std(),
		maxRetries: cfg.MaxRetries,
		observer:   observer,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Poll calls PollOnce until it succeeds, waiting the retry delay after every
// ErrTransport. A stalled long poll is the normal idle state, so retries are
// unlimited unless MaxRetries is set. Other errors are returned at once.
//
// While reg holds a session with an unanswered request, a failed exchange is
// not retried here: after the delay Poll returns ErrPendingWork so the caller
// can compute the outstanding moves before polling again.
func (p *Poller) Poll(ctx context.Context, reg *session.Registry) (*Round, error) {
	for attempt := 1; ; attempt++ {
		round, err := p.PollOnce(ctx, reg)
		if err == nil {
			round.Attempts = attempt
			return round, nil
		}
		if !errors.Is(err, ErrTransport) {
			return round, err
		}
		if p.maxRetries > 0 && attempt > p.maxRetries {
			return nil, fmt.Errorf("giving up after %d attempts: %w", attempt, err)
		}

		observability.Emit(ctx, p.observer, EventRetry, observability.LevelWarn, "poller.Poll", map[string]any{
			"attempt": attempt,
			"delay":   p.retryDelay.String(),
			"error":   err.Error(),
		})

		if err := sleep(ctx, p.retryDelay); err != nil {
			return nil, err
		}

		if hasPending(reg) {
			return nil, fmt.Errorf("%w: %w", ErrPendingWork, err)
		}
	}
}

func hasPending(reg *session.Registry) bool {
	for range reg.Pending() {
		return true
	}
	return false
}

// PollOnce performs a single exchange and applies its payload to reg. The
// registry is untouched when the exchange fails; responses are only marked
// transmitted once the platform has answered.
func (p *Poller) PollOnce(ctx context.Context, reg *session.Registry) (*Round, error) {
	var attached []*session.Session
	headers := make(map[string]string)
	for s := range reg.Sessions() {
		m, ok := s.PendingResponse()
		if !ok {
			continue
		}
		data, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("failed to encode response for match %s: %w", s.ID(), err)
		}
		headers[s.ID()] = string(data)
		attached = append(attached, s)
	}

	start := time.Now()
	body, err := p.exchange(ctx, headers)
	if err != nil {
		return nil, err
	}

	observability.Emit(ctx, p.observer, EventExchange, observability.LevelDebug, "poller.PollOnce", map[string]any{
		"responses": len(headers),
		"bytes":     len(body),
		"duration":  time.Since(start),
	})

	round := &Round{}
	for _, s := range attached {
		m, ok := s.TakeResponse()
		if !ok {
			continue
		}
		round.Transmitted = append(round.Transmitted, s.ID())
		observability.Emit(ctx, p.observer, EventResponse, observability.LevelInfo, "poller.PollOnce", map[string]any{
			"match":    s.ID(),
			"response": headers[s.ID()],
			"move":     m.String(),
		})
	}

	payload, err := ParsePayload(body)
	if err != nil {
		return round, err
	}

	if err := p.apply(ctx, reg, payload); err != nil {
		return round, err
	}

	round.Requests = payload.Requests
	round.Results = payload.Results
	return round, nil
}

func (p *Poller) apply(ctx context.Context, reg *session.Registry, payload *Payload) error {
	codec := reg.Codec()
	for _, r := range payload.Requests {
		if _, err := codec.Entry(r.Body); err != nil {
			return fmt.Errorf("match %s: %w", r.MatchID, err)
		}
	}

	for _, r := range payload.Requests {
		s, created, err := reg.FindOrCreate(r.MatchID, r.Body)
		if err != nil {
			return err
		}
		if !created {
			if err := s.RecordRequest(r.Body); err != nil {
				return err
			}
		}

		observability.Emit(ctx, p.observer, EventRequest, observability.LevelInfo, "poller.PollOnce", map[string]any{
			"match":   r.MatchID,
			"request": r.Body,
			"new":     created,
		})
	}

	for _, r := range payload.Results {
		typ := EventFinished
		data := map[string]any{
			"match": r.MatchID,
			"slot":  r.Slot,
		}
		if r.Aborted() {
			typ = EventAborted
		} else {
			data["players"] = r.PlayerCount
			data["scores"] = r.Scores
		}
		observability.Emit(ctx, p.observer, typ, observability.LevelInfo, "poller.PollOnce", data)

		if err := reg.Remove(r.MatchID); err != nil {
			if !errors.Is(err, session.ErrUnknownMatch) {
				return err
			}
			observability.Emit(ctx, p.observer, EventUnknown, observability.LevelWarn, "poller.PollOnce", map[string]any{
				"match": r.MatchID,
			})
		}
	}

	return nil
}

func (p *Poller) exchange(ctx context.Context, headers map[string]string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	// Keys are set directly so the match id keeps its original case.
	for id, value := range headers {
		req.Header[HeaderPrefix+id] = []string{value}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: reading body: %v", ErrTransport, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return string(data), nil
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return "", fmt.Errorf("%w: status %s", ErrTransport, resp.Status)
	default:
		return "", fmt.Errorf("%w: status %s", ErrRejected, resp.Status)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
