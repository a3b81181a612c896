package poller

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// Request is a new turn the platform wants answered.
type Request struct {
	MatchID string
	Body    string
}

// Result reports a match the platform has closed.
type Result struct {
	MatchID     string
	Slot        int
	PlayerCount int
	Scores      []float64
}

// Aborted reports whether the match ended without scores.
func (r Result) Aborted() bool {
	return r.PlayerCount == 0
}

// Payload is one decoded long-poll response body.
type Payload struct {
	Requests []Request
	Results  []Result
}

// ParsePayload decodes a long-poll response body:
//
//	<requestCount> <resultCount>
//	<matchID>                         \ requestCount times
//	<request>                         /
//	<matchID> <slot> <playerCount> <score>...   resultCount times
//
// CRLF line endings and trailing blank lines are accepted. Anything else
// that does not line up with the counts is ErrMalformedPayload, as is a
// request whose match id is not a valid header token, since the answer could
// never be sent back.
func ParsePayload(body string) (*Payload, error) {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	lines := strings.Split(strings.TrimRight(body, "\n"), "\n")

	header := strings.Fields(lines[0])
	if len(header) != 2 {
		return nil, fmt.Errorf("%w: header %q: want 2 counts", ErrMalformedPayload, lines[0])
	}
	requestCount, err := parseCount(header[0])
	if err != nil {
		return nil, err
	}
	resultCount, err := parseCount(header[1])
	if err != nil {
		return nil, err
	}

	want := 1 + 2*requestCount + resultCount
	if len(lines) != want {
		return nil, fmt.Errorf("%w: header announces %d lines, body has %d", ErrMalformedPayload, want, len(lines))
	}

	p := &Payload{
		Requests: make([]Request, 0, requestCount),
		Results:  make([]Result, 0, resultCount),
	}

	for i := range requestCount {
		id := strings.TrimSpace(lines[1+2*i])
		if id == "" {
			return nil, fmt.Errorf("%w: request %d has an empty match id", ErrMalformedPayload, i)
		}
		if !httpguts.ValidHeaderFieldName(HeaderPrefix + id) {
			return nil, fmt.Errorf("%w: match id %q cannot be sent as a header", ErrMalformedPayload, id)
		}
		p.Requests = append(p.Requests, Request{MatchID: id, Body: lines[2+2*i]})
	}

	for _, line := range lines[1+2*requestCount:] {
		r, err := parseResult(line)
		if err != nil {
			return nil, err
		}
		p.Results = append(p.Results, r)
	}

	return p, nil
}

func parseCount(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: bad count %q", ErrMalformedPayload, s)
	}
	return n, nil
}

func parseResult(line string) (Result, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return Result{}, fmt.Errorf("%w: result %q: want at least 3 fields", ErrMalformedPayload, line)
	}

	slot, err := strconv.Atoi(fields[1])
	if err != nil {
		return Result{}, fmt.Errorf("%w: result %q: bad slot", ErrMalformedPayload, line)
	}
	players, err := strconv.Atoi(fields[2])
	if err != nil {
		return Result{}, fmt.Errorf("%w: result %q: bad player count", ErrMalformedPayload, line)
	}

	scores := make([]float64, 0, len(fields)-3)
	for _, f := range fields[3:] {
		score, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Result{}, fmt.Errorf("%w: result %q: bad score %q", ErrMalformedPayload, line, f)
		}
		scores = append(scores, score)
	}

	return Result{MatchID: fields[0], Slot: slot, PlayerCount: players, Scores: scores}, nil
}
