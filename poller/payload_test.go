package poller_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/wzf03/citabridge/poller"
)

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		requests []poller.Request
		results  []poller.Result
	}{
		{
			name: "idle",
			body: "0 0\n",
		},
		{
			name:     "one request",
			body:     "1 0\nM1\n1\n",
			requests: []poller.Request{{MatchID: "M1", Body: "1"}},
		},
		{
			name: "requests and results",
			body: "2 2\nA\n{\"x\":1,\"y\":2}\nB\n{\"x\":-1,\"y\":-1}\nC 0 2 2 0\nD 1 0\n",
			requests: []poller.Request{
				{MatchID: "A", Body: `{"x":1,"y":2}`},
				{MatchID: "B", Body: `{"x":-1,"y":-1}`},
			},
			results: []poller.Result{
				{MatchID: "C", Slot: 0, PlayerCount: 2, Scores: []float64{2, 0}},
				{MatchID: "D", Slot: 1, PlayerCount: 0, Scores: []float64{}},
			},
		},
		{
			name:     "crlf and trailing blank lines",
			body:     "1 0\r\nM1\r\n1\r\n\r\n",
			requests: []poller.Request{{MatchID: "M1", Body: "1"}},
		},
		{
			name:    "fractional scores",
			body:    "0 1\nE 1 2 0.5 1.5\n",
			results: []poller.Result{{MatchID: "E", Slot: 1, PlayerCount: 2, Scores: []float64{0.5, 1.5}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := poller.ParsePayload(tt.body)
			if err != nil {
				t.Fatalf("ParsePayload failed: %v", err)
			}

			if !slices.Equal(p.Requests, tt.requests) {
				t.Errorf("got requests %+v, want %+v", p.Requests, tt.requests)
			}

			if len(p.Results) != len(tt.results) {
				t.Fatalf("got %d results, want %d", len(p.Results), len(tt.results))
			}
			for i, want := range tt.results {
				got := p.Results[i]
				if got.MatchID != want.MatchID || got.Slot != want.Slot || got.PlayerCount != want.PlayerCount {
					t.Errorf("result %d = %+v, want %+v", i, got, want)
				}
				if !slices.Equal(got.Scores, want.Scores) {
					t.Errorf("result %d scores = %v, want %v", i, got.Scores, want.Scores)
				}
				if got.Aborted() != (want.PlayerCount == 0) {
					t.Errorf("result %d Aborted() = %v", i, got.Aborted())
				}
			}
		})
	}
}

func TestParsePayload_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty", body: ""},
		{name: "one count", body: "1\nM1\n1\n"},
		{name: "non-numeric count", body: "x 0\n"},
		{name: "negative count", body: "-1 0\n"},
		{name: "missing request lines", body: "2 0\nM1\n1\n"},
		{name: "missing result line", body: "0 1\n"},
		{name: "extra lines", body: "0 0\nsurprise\n"},
		{name: "short result", body: "0 1\nM1 0\n"},
		{name: "bad slot", body: "0 1\nM1 x 2\n"},
		{name: "bad player count", body: "0 1\nM1 0 two\n"},
		{name: "bad score", body: "0 1\nM1 0 2 win lose\n"},
		{name: "empty match id", body: "1 0\n \n1\n"},
		{name: "match id with space", body: "1 0\nM 1\n1\n"},
		{name: "match id with colon", body: "1 0\nM:1\n1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := poller.ParsePayload(tt.body)
			if !errors.Is(err, poller.ErrMalformedPayload) {
				t.Errorf("ParsePayload(%q) error = %v, want ErrMalformedPayload", tt.body, err)
			}
		})
	}
}
