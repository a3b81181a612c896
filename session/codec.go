package session

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Codec translates between platform request lines, the per-match history,
// and the input handed to the decision engine. The engine is stateless, so
// Render must rebuild everything it needs from the history alone.
type Codec interface {
	// Name returns the identifier used in configuration.
	Name() string
	// Entry returns the history record contributed by a platform request.
	Entry(request string) (string, error)
	// Render returns the engine input for the accumulated history.
	Render(history []string) string
}

// RawCodec treats each request line as the complete serialized state.
type RawCodec struct{}

func (RawCodec) Name() string { return "raw" }

func (RawCodec) Entry(request string) (string, error) {
	return request, nil
}

func (RawCodec) Render(history []string) string {
	for i := len(history) - 1; i >= 0; i-- {
		if i%2 == 0 {
			return history[i] + "\n"
		}
	}
	return ""
}

// NoGoCodec accumulates JSON move requests into the turn-numbered board
// format read by NoGo engines:
//
//	<turn>
//	<x> <y>
//	...
//
// where turn is len(history)/2 + 1 and the first request of a game where
// this side moves first is {"x":-1,"y":-1}.
type NoGoCodec struct{}

func (NoGoCodec) Name() string { return "nogo" }

func (NoGoCodec) Entry(request string) (string, error) {
	var m Move
	if err := json.Unmarshal([]byte(request), &m); err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrMalformedRequest, request, err)
	}
	return m.String(), nil
}

func (NoGoCodec) Render(history []string) string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(len(history)/2 + 1))
	sb.WriteByte('\n')
	for _, record := range history {
		sb.WriteString(record)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// ParseState reverses NoGoCodec.Render, returning the turn number and the
// ordered move records.
func ParseState(state string) (int, []Move, error) {
	lines := strings.Split(strings.TrimRight(state, "\n"), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return 0, nil, fmt.Errorf("%w: empty state", ErrMalformedRequest)
	}

	turn, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: bad turn %q", ErrMalformedRequest, lines[0])
	}

	moves := make([]Move, 0, len(lines)-1)
	for _, line := range lines[1:] {
		m, err := ParseMove(line)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
		}
		moves = append(moves, m)
	}
	return turn, moves, nil
}

var (
	codecs = map[string]Codec{
		"raw":  RawCodec{},
		"nogo": NoGoCodec{},
	}
	codecMu sync.RWMutex
)

// GetCodec returns a registered codec by name.
// Pre-registered codecs: "raw" and "nogo".
func GetCodec(name string) (Codec, error) {
	codecMu.RLock()
	defer codecMu.RUnlock()

	c, exists := codecs[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCodec, name)
	}
	return c, nil
}

// RegisterCodec adds or replaces a named codec.
func RegisterCodec(c Codec) {
	codecMu.Lock()
	defer codecMu.Unlock()

	codecs[c.Name()] = c
}

// Codecs returns the registered codec names, sorted.
func Codecs() []string {
	codecMu.RLock()
	defer codecMu.RUnlock()

	names := make([]string, 0, len(codecs))
	for name := range codecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
