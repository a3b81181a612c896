// Package engine runs the external decision engine. Each move starts a fresh
// process: the engine is stateless, so the session's full history goes in on
// stdin and a single "<x> <y>" line comes back on stdout.
package engine

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/wzf03/citabridge/observability"
	"github.com/wzf03/citabridge/session"
)

// Engine event types.
const (
	EventMove    observability.EventType = "engine.move"
	EventFailure observability.EventType = "engine.failure"
)

// waitDelay bounds how long pipes stay open after the engine exits or is
// killed, in case it left children holding them.
const waitDelay = time.Second

// maxStderr caps the stderr excerpt carried in failure messages.
const maxStderr = 512

// maxLine caps the move line read from the engine. Output after the first
// line is discarded.
const maxLine = 4096

// Option configures a Bridge after config-driven initialization.
type Option func(*Bridge)

// WithObserver overrides the default slog observer.
func WithObserver(o observability.Observer) Option {
	return func(b *Bridge) { b.observer = o }
}

// Bridge invokes the engine for sessions holding an unanswered request.
type Bridge struct {
	path     string
	args     []string
	dir      string
	timeout  time.Duration
	observer observability.Observer
}

// New creates a Bridge from configuration.
func New(cfg *Config, opts ...Option) (*Bridge, error) {
	if cfg.Path == "" {
		return nil, ErrNoEngine
	}

	observer, err := observability.GetObserver("slog")
	if err != nil {
		return nil, err
	}

	b := &Bridge{
		path:     cfg.Path,
		args:     append([]string(nil), cfg.Args...),
		dir:      cfg.Dir,
		timeout:  cfg.Timeout.Std(),
		observer: observer,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b, nil
}

// ComputeMove runs the engine on the session's pending request and records
// the resulting move on the session. Failures wrap ErrEngineFailure and leave
// the request pending.
func (b *Bridge) ComputeMove(ctx context.Context, s *session.Session) (session.Move, error) {
	input, ok := s.PendingRequest()
	if !ok {
		return session.Move{}, fmt.Errorf("%w: match %s has no pending request", session.ErrProtocolViolation, s.ID())
	}

	start := time.Now()
	m, err := b.run(ctx, input)
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			return session.Move{}, ctx.Err()
		}
		observability.Emit(ctx, b.observer, EventFailure, observability.LevelWarn, "engine.ComputeMove", map[string]any{
			"match":    s.ID(),
			"error":    err.Error(),
			"duration": elapsed,
		})
		return session.Move{}, fmt.Errorf("%w: match %s: %v", ErrEngineFailure, s.ID(), err)
	}

	if err := s.RecordResponse(m); err != nil {
		return session.Move{}, err
	}

	observability.Emit(ctx, b.observer, EventMove, observability.LevelInfo, "engine.ComputeMove", map[string]any{
		"match":    s.ID(),
		"move":     m.String(),
		"turn":     s.Turn(),
		"duration": elapsed,
	})

	return m, nil
}

func (b *Bridge) run(ctx context.Context, input string) (session.Move, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	stdout := &headWriter{max: maxLine, line: true}
	stderr := &headWriter{max: maxStderr}
	cmd := exec.CommandContext(ctx, b.path, b.args...)
	cmd.Dir = b.dir
	cmd.Stdin = strings.NewReader(input)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return session.Move{}, fmt.Errorf("engine did not answer within %s: %w", b.timeout, ctx.Err())
		}
		return session.Move{}, fmt.Errorf("engine run: %w%s", err, stderrExcerpt(stderr))
	}

	if stdout.truncated {
		return session.Move{}, fmt.Errorf("first output line exceeds %d bytes", maxLine)
	}
	return session.ParseMove(string(stdout.buf))
}

// headWriter keeps at most max leading bytes written to it, stopping at the
// first newline when line is set, and discards the rest.
type headWriter struct {
	max       int
	line      bool
	buf       []byte
	full      bool
	truncated bool
}

func (w *headWriter) Write(p []byte) (int, error) {
	n := len(p)
	if w.full {
		return n, nil
	}
	if w.line {
		if i := bytes.IndexByte(p, '\n'); i >= 0 {
			p = p[:i]
			w.full = true
		}
	}
	if room := w.max - len(w.buf); len(p) > room {
		p = p[:room]
		w.full = true
		w.truncated = true
	}
	w.buf = append(w.buf, p...)
	return n, nil
}

func stderrExcerpt(w *headWriter) string {
	s := strings.TrimSpace(string(w.buf))
	if s == "" {
		return ""
	}
	if w.truncated {
		s += "..."
	}
	return " (stderr: " + s + ")"
}
