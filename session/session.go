// Package session tracks the in-flight matches of the bridge: the move
// history of each match, the request waiting for an engine move, and the
// move waiting to be sent back to the platform.
package session

import (
	"fmt"
	"slices"
	"sync"
)

// Session is the accumulated state of one match. A Session holds at most one
// unanswered request and at most one untransmitted response. Safe for
// concurrent use.
type Session struct {
	id    string
	codec Codec

	mu       sync.RWMutex
	history  []string
	request  *string
	response *Move
	sent     bool
}

func newSession(id string, codec Codec) *Session {
	return &Session{id: id, codec: codec, sent: true}
}

// ID returns the platform-assigned match identifier.
func (s *Session) ID() string {
	return s.id
}

// RecordRequest appends a platform request to the history and sets it as the
// pending request. A retained response that was never sent is dropped from
// attribution; the platform only issues a new request once the previous
// response was accepted.
func (s *Session) RecordRequest(request string) error {
	entry, err := s.codec.Entry(request)
	if err != nil {
		return fmt.Errorf("match %s: %w", s.id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.request != nil {
		return fmt.Errorf("%w: match %s: request received while another is unanswered", ErrProtocolViolation, s.id)
	}

	s.history = append(s.history, entry)
	input := s.codec.Render(s.history)
	s.request = &input
	s.sent = true
	return nil
}

// RecordResponse stores the move answering the pending request, appends it
// to the history, and consumes the request.
func (s *Session) RecordResponse(m Move) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.request == nil {
		return fmt.Errorf("%w: match %s: response without a pending request", ErrProtocolViolation, s.id)
	}

	s.history = append(s.history, m.String())
	s.request = nil
	s.response = &m
	s.sent = false
	return nil
}

// TakeResponse returns the response not yet transmitted and marks it
// transmitted. Subsequent calls return false until a new response is recorded.
func (s *Session) TakeResponse() (Move, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.response == nil || s.sent {
		return Move{}, false
	}
	s.sent = true
	return *s.response, true
}

// PendingResponse reports the response awaiting transmission without marking it.
func (s *Session) PendingResponse() (Move, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.response == nil || s.sent {
		return Move{}, false
	}
	return *s.response, true
}

// PendingRequest returns the engine input awaiting a move.
func (s *Session) PendingRequest() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.request == nil {
		return "", false
	}
	return *s.request, true
}

// History returns a copy of the recorded moves, oldest first.
func (s *Session) History() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.history)
}

// Turn returns the one-based turn number implied by the history length.
func (s *Session) Turn() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)/2 + 1
}
