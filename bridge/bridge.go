// Package bridge implements the polling loop that connects the game platform
// to the decision engine: poll for new turns, compute a move for every
// session waiting on one, and hand the moves to the next poll.
//
// The bridge initializes from configuration via New, creating all subsystems
// internally. Functional options allow test overrides of any subsystem.
//
//	b, err := bridge.New(&cfg)
//	err = b.Run(ctx)
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wzf03/citabridge/engine"
	"github.com/wzf03/citabridge/observability"
	"github.com/wzf03/citabridge/poller"
	"github.com/wzf03/citabridge/session"
)

// Poller performs one long-poll exchange, retrying transport failures, and
// applies the result to the registry.
type Poller interface {
	Poll(ctx context.Context, reg *session.Registry) (*poller.Round, error)
}

// Engine produces and records a move for a session with a pending request.
// Failures that should only skip the session's turn wrap
// engine.ErrEngineFailure.
type Engine interface {
	ComputeMove(ctx context.Context, s *session.Session) (session.Move, error)
}

// Cycle holds the outcome of one poll-and-compute cycle.
type Cycle struct {
	ID       string        // UUIDv7 correlating the cycle's events.
	Round    *poller.Round // Poll outcome; nil if the poll failed.
	PollErr  error         // Set when the poll failed with moves outstanding.
	Moves    []MoveRecord  // Moves recorded this cycle, by match ID.
	Failures []Failure     // Engine failures this cycle, by match ID.
}

// MoveRecord is a move computed for a match.
type MoveRecord struct {
	MatchID string
	Move    session.Move
}

// Failure is an engine failure for a match. The match stays pending and is
// retried on the next cycle.
type Failure struct {
	MatchID string
	Err     error
}

// Option configures a Bridge. Subsystems supplied through options are used
// instead of the config-created ones.
type Option func(*Bridge)

// WithRegistry overrides the config-created session registry.
func WithRegistry(r *session.Registry) Option {
	return func(b *Bridge) { b.registry = r }
}

// WithPoller overrides the config-created poller.
func WithPoller(p Poller) Option {
	return func(b *Bridge) { b.poller = p }
}

// WithEngine overrides the config-created engine bridge.
func WithEngine(e Engine) Option {
	return func(b *Bridge) { b.engine = e }
}

// WithObserver overrides the config-selected observer. The observer is also
// handed to config-created subsystems.
func WithObserver(o observability.Observer) Option {
	return func(b *Bridge) { b.observer = o }
}

// Bridge runs the poll/compute loop over a single session registry.
type Bridge struct {
	registry  *session.Registry
	poller    Poller
	engine    Engine
	observer  observability.Observer
	workers   int
	maxCycles int
}

// New creates a Bridge from configuration. Subsystems not supplied through
// options are built from their config sections.
func New(cfg *Config, opts ...Option) (*Bridge, error) {
	b := &Bridge{
		workers:   cfg.Workers,
		maxCycles: cfg.MaxCycles,
	}

	for _, opt := range opts {
		opt(b)
	}

	if b.observer == nil {
		observer, err := observability.GetObserver(cfg.Observer)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve observer: %w", err)
		}
		b.observer = observer
	}

	if b.registry == nil {
		reg, err := session.New(&cfg.Session)
		if err != nil {
			return nil, fmt.Errorf("failed to create session registry: %w", err)
		}
		b.registry = reg
	}

	if b.poller == nil {
		p, err := poller.New(&cfg.Poller, poller.WithObserver(b.observer))
		if err != nil {
			return nil, fmt.Errorf("failed to create poller: %w", err)
		}
		b.poller = p
	}

	if b.engine == nil {
		e, err := engine.New(&cfg.Engine, engine.WithObserver(b.observer))
		if err != nil {
			return nil, fmt.Errorf("failed to create engine bridge: %w", err)
		}
		b.engine = e
	}

	return b, nil
}

// Registry returns the bridge's session registry.
func (b *Bridge) Registry() *session.Registry {
	return b.registry
}

// Run executes cycles until the context is cancelled, a fatal error occurs,
// or a non-zero cycle budget is exhausted (ErrMaxCycles). Transport failures
// are absorbed by the poller and engine failures by the cycle; everything
// else is fatal, since continuing would risk desynchronized match state.
func (b *Bridge) Run(ctx context.Context) error {
	observability.Emit(ctx, b.observer, EventRunStart, observability.LevelInfo, "bridge.Run", map[string]any{
		"codec":      b.registry.Codec().Name(),
		"workers":    b.workers,
		"max_cycles": b.maxCycles,
	})

	for n := 0; b.maxCycles == 0 || n < b.maxCycles; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		cycle, err := b.Step(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			observability.Emit(ctx, b.observer, EventError, observability.LevelError, "bridge.Run", map[string]any{
				"cycle": cycle.ID,
				"error": err.Error(),
			})
			return err
		}
	}

	return ErrMaxCycles
}

// Step runs one cycle: a poll, then a move for every pending session. A poll
// that fails while sessions are waiting on a move does not end the cycle; the
// compute phase still runs so engine failures get retried.
func (b *Bridge) Step(ctx context.Context) (*Cycle, error) {
	cycle := &Cycle{ID: uuid.Must(uuid.NewV7()).String()}

	observability.Emit(ctx, b.observer, EventCycleStart, observability.LevelDebug, "bridge.Step", map[string]any{
		"cycle":    cycle.ID,
		"sessions": b.registry.Len(),
	})

	round, err := b.poller.Poll(ctx, b.registry)
	switch {
	case errors.Is(err, poller.ErrPendingWork):
		cycle.PollErr = err
	case err != nil:
		return cycle, fmt.Errorf("poll failed: %w", err)
	}
	cycle.Round = round

	if err := b.compute(ctx, cycle); err != nil {
		return cycle, err
	}

	var requests, results int
	if round != nil {
		requests, results = len(round.Requests), len(round.Results)
	}

	observability.Emit(ctx, b.observer, EventCycleComplete, observability.LevelDebug, "bridge.Step", map[string]any{
		"cycle":    cycle.ID,
		"requests": requests,
		"results":  results,
		"moves":    len(cycle.Moves),
		"failures": len(cycle.Failures),
		"poll_ok":  cycle.PollErr == nil,
		"sessions": b.registry.Len(),
	})

	return cycle, nil
}

func (b *Bridge) compute(ctx context.Context, cycle *Cycle) error {
	var mu sync.Mutex
	record := func(s *session.Session, m session.Move, err error) error {
		mu.Lock()
		defer mu.Unlock()

		switch {
		case err == nil:
			cycle.Moves = append(cycle.Moves, MoveRecord{MatchID: s.ID(), Move: m})
		case errors.Is(err, engine.ErrEngineFailure):
			cycle.Failures = append(cycle.Failures, Failure{MatchID: s.ID(), Err: err})
		default:
			return err
		}
		return nil
	}

	if b.workers <= 1 {
		for s := range b.registry.Pending() {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, err := b.engine.ComputeMove(ctx, s)
			if err := record(s, m, err); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for s := range b.registry.Pending() {
		g.Go(func() error {
			m, err := b.engine.ComputeMove(gctx, s)
			return record(s, m, err)
		})
	}
	err := g.Wait()

	sort.Slice(cycle.Moves, func(i, j int) bool { return cycle.Moves[i].MatchID < cycle.Moves[j].MatchID })
	sort.Slice(cycle.Failures, func(i, j int) bool { return cycle.Failures[i].MatchID < cycle.Failures[j].MatchID })
	return err
}
