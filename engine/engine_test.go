package engine_test

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/wzf03/citabridge/core/config"
	"github.com/wzf03/citabridge/engine"
	"github.com/wzf03/citabridge/observability"
	"github.com/wzf03/citabridge/session"
)

const modeEnv = "CITABRIDGE_TEST_ENGINE"

// TestMain turns the test binary into a stub engine when modeEnv is set.
func TestMain(m *testing.M) {
	if mode := os.Getenv(modeEnv); mode != "" {
		os.Exit(stubEngine(mode))
	}
	os.Exit(m.Run())
}

func stubEngine(mode string) int {
	input, _ := io.ReadAll(os.Stdin)

	switch mode {
	case "move":
		fmt.Println("3 4")
		fmt.Println("loop_times: 1234")
	case "echo":
		// x = turn line, y = number of move records.
		sc := bufio.NewScanner(strings.NewReader(string(input)))
		lines := 0
		turn := ""
		for sc.Scan() {
			if lines == 0 {
				turn = sc.Text()
			}
			lines++
		}
		fmt.Printf("%s %d\n", turn, lines-1)
	case "garbage":
		fmt.Println("pass")
	case "three":
		fmt.Println("1 2 3")
	case "silent":
	case "crash":
		fmt.Fprintln(os.Stderr, "boom")
		return 3
	case "sleep":
		time.Sleep(30 * time.Second)
	case "flood":
		fmt.Println("3 4")
		chunk := strings.Repeat("x", 1<<16) + "\n"
		for range 512 {
			os.Stdout.WriteString(chunk)
		}
	case "longline":
		os.Stdout.WriteString(strings.Repeat("7", 1<<20))
	case "noisy":
		os.Stderr.WriteString(strings.Repeat("e", 1<<20))
		return 1
	}
	return 0
}

func newBridge(t *testing.T, mode string, timeout time.Duration, obs observability.Observer) *engine.Bridge {
	t.Helper()
	t.Setenv(modeEnv, mode)

	cfg := engine.DefaultConfig()
	cfg.Path = os.Args[0]
	cfg.Timeout = config.Duration(timeout)

	if obs == nil {
		obs = observability.NoOpObserver{}
	}
	b, err := engine.New(&cfg, engine.WithObserver(obs))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return b
}

func pendingSession(t *testing.T, codec session.Codec, request string) *session.Session {
	t.Helper()
	s, _, err := session.NewRegistry(codec).FindOrCreate("M1", request)
	if err != nil {
		t.Fatalf("FindOrCreate failed: %v", err)
	}
	return s
}

func TestComputeMove_RecordsResponse(t *testing.T) {
	var events []observability.Event
	b := newBridge(t, "move", 10*time.Second, &captureObserver{events: &events})
	s := pendingSession(t, session.RawCodec{}, "1")

	m, err := b.ComputeMove(context.Background(), s)
	if err != nil {
		t.Fatalf("ComputeMove failed: %v", err)
	}
	if m != (session.Move{X: 3, Y: 4}) {
		t.Errorf("got move %+v, want {3 4}", m)
	}

	history := s.History()
	if len(history) != 2 || history[1] != "3 4" {
		t.Errorf("got history %q, want [1 3 4]", history)
	}
	if _, ok := s.PendingRequest(); ok {
		t.Error("request should be consumed")
	}
	if got, ok := s.PendingResponse(); !ok || got != m {
		t.Errorf("got pending response %+v (ok=%v)", got, ok)
	}

	if len(events) != 1 || events[0].Type != engine.EventMove {
		t.Fatalf("got events %+v, want one move event", events)
	}
	if _, ok := events[0].Data["duration"].(time.Duration); !ok {
		t.Error("move event should carry a duration")
	}
}

func TestComputeMove_FullHistoryOnStdin(t *testing.T) {
	b := newBridge(t, "echo", 10*time.Second, nil)

	s := pendingSession(t, session.NoGoCodec{}, `{"x":-1,"y":-1}`)
	s.RecordResponse(session.Move{X: 4, Y: 4})
	s.RecordRequest(`{"x":2,"y":2}`)

	m, err := b.ComputeMove(context.Background(), s)
	if err != nil {
		t.Fatalf("ComputeMove failed: %v", err)
	}
	// Turn 2 with three records: -1 -1, 4 4, 2 2.
	if m != (session.Move{X: 2, Y: 3}) {
		t.Errorf("got %+v, want {2 3}", m)
	}
}

func TestComputeMove_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		timeout time.Duration
		detail  string
	}{
		{name: "unparseable output", mode: "garbage", timeout: 10 * time.Second, detail: "want 2 tokens"},
		{name: "too many tokens", mode: "three", timeout: 10 * time.Second, detail: "want 2 tokens"},
		{name: "no output", mode: "silent", timeout: 10 * time.Second, detail: "want 2 tokens"},
		{name: "abnormal exit", mode: "crash", timeout: 10 * time.Second, detail: "boom"},
		{name: "timeout", mode: "sleep", timeout: 200 * time.Millisecond, detail: "did not answer"},
		{name: "oversized first line", mode: "longline", timeout: 10 * time.Second, detail: "exceeds"},
		{name: "oversized stderr", mode: "noisy", timeout: 10 * time.Second, detail: "eee..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var events []observability.Event
			b := newBridge(t, tt.mode, tt.timeout, &captureObserver{events: &events})
			s := pendingSession(t, session.RawCodec{}, "1")

			start := time.Now()
			_, err := b.ComputeMove(context.Background(), s)
			if !errors.Is(err, engine.ErrEngineFailure) {
				t.Fatalf("got %v, want ErrEngineFailure", err)
			}
			if !strings.Contains(err.Error(), tt.detail) {
				t.Errorf("error %q should mention %q", err, tt.detail)
			}
			if time.Since(start) > 10*time.Second {
				t.Errorf("engine failure took %v", time.Since(start))
			}

			if _, ok := s.PendingRequest(); !ok {
				t.Error("request should stay pending after a failure")
			}
			if len(s.History()) != 1 {
				t.Errorf("history changed on failure: %q", s.History())
			}
			if len(events) != 1 || events[0].Type != engine.EventFailure {
				t.Errorf("got events %+v, want one failure event", events)
			}
		})
	}
}

func TestComputeMove_DiscardsOutputAfterFirstLine(t *testing.T) {
	b := newBridge(t, "flood", 10*time.Second, nil)
	s := pendingSession(t, session.RawCodec{}, "1")

	m, err := b.ComputeMove(context.Background(), s)
	if err != nil {
		t.Fatalf("ComputeMove failed: %v", err)
	}
	if m != (session.Move{X: 3, Y: 4}) {
		t.Errorf("got move %+v, want {3 4}", m)
	}
}

func TestComputeMove_StderrExcerptCapped(t *testing.T) {
	b := newBridge(t, "noisy", 10*time.Second, nil)

	_, err := b.ComputeMove(context.Background(), pendingSession(t, session.RawCodec{}, "1"))
	if err == nil {
		t.Fatal("expected an engine failure")
	}
	if len(err.Error()) > 1024 {
		t.Errorf("got a %d byte error, want the stderr excerpt capped", len(err.Error()))
	}
}

func TestComputeMove_NegativeTimeoutDisablesLimit(t *testing.T) {
	b := newBridge(t, "move", -1, nil)

	m, err := b.ComputeMove(context.Background(), pendingSession(t, session.RawCodec{}, "1"))
	if err != nil {
		t.Fatalf("ComputeMove failed: %v", err)
	}
	if m != (session.Move{X: 3, Y: 4}) {
		t.Errorf("got move %+v, want {3 4}", m)
	}
}

func TestComputeMove_MissingExecutable(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.Path = "/nonexistent/engine"

	b, err := engine.New(&cfg, engine.WithObserver(observability.NoOpObserver{}))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = b.ComputeMove(context.Background(), pendingSession(t, session.RawCodec{}, "1"))
	if !errors.Is(err, engine.ErrEngineFailure) {
		t.Errorf("got %v, want ErrEngineFailure", err)
	}
}

func TestComputeMove_NoPendingRequest(t *testing.T) {
	b := newBridge(t, "move", 10*time.Second, nil)
	s := pendingSession(t, session.RawCodec{}, "1")
	s.RecordResponse(session.Move{X: 0, Y: 0})

	_, err := b.ComputeMove(context.Background(), s)
	if !errors.Is(err, session.ErrProtocolViolation) {
		t.Errorf("got %v, want ErrProtocolViolation", err)
	}
}

func TestComputeMove_ContextCancelled(t *testing.T) {
	b := newBridge(t, "sleep", 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := b.ComputeMove(ctx, pendingSession(t, session.RawCodec{}, "1"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestNew_RequiresPath(t *testing.T) {
	cfg := engine.Config{}
	if _, err := engine.New(&cfg); !errors.Is(err, engine.ErrNoEngine) {
		t.Errorf("got %v, want ErrNoEngine", err)
	}
}

func TestConfig_Merge(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.Merge(&engine.Config{Path: "/opt/cita", Args: []string{"-q"}})

	if cfg.Path != "/opt/cita" {
		t.Errorf("got Path %q", cfg.Path)
	}
	if len(cfg.Args) != 1 || cfg.Args[0] != "-q" {
		t.Errorf("got Args %v", cfg.Args)
	}
	if cfg.Timeout.Std() != 10*time.Second {
		t.Errorf("zero Timeout overwrote default: %v", cfg.Timeout)
	}

	cfg.Merge(&engine.Config{Timeout: config.Duration(-time.Second)})
	if cfg.Timeout.Std() >= 0 {
		t.Errorf("got Timeout %v, want the negative value kept to disable the limit", cfg.Timeout)
	}
}

type captureObserver struct {
	events *[]observability.Event
}

func (c *captureObserver) OnEvent(ctx context.Context, event observability.Event) {
	*c.events = append(*c.events, event)
}
