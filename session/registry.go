package session

import (
	"fmt"
	"iter"
	"sort"
	"sync"
)

// Registry owns every live Session, keyed by match identifier. Sessions come
// into existence only through FindOrCreate; removed identifiers are retired
// and never accepted again. Thread-safe for concurrent access.
type Registry struct {
	codec Codec

	mu       sync.RWMutex
	sessions map[string]*Session
	retired  map[string]struct{}
}

// NewRegistry creates an empty Registry whose sessions use codec.
func NewRegistry(codec Codec) *Registry {
	return &Registry{
		codec:    codec,
		sessions: make(map[string]*Session),
		retired:  make(map[string]struct{}),
	}
}

// Codec returns the codec shared by all sessions of the registry.
func (r *Registry) Codec() Codec {
	return r.codec
}

// FindOrCreate returns the Session for matchID. An unseen matchID gets a new
// Session seeded with request, reported by created. Retired identifiers fail
// with ErrUnknownMatch.
func (r *Registry) FindOrCreate(matchID, request string) (s *Session, created bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, exists := r.sessions[matchID]; exists {
		return s, false, nil
	}
	if _, gone := r.retired[matchID]; gone {
		return nil, false, fmt.Errorf("%w: %s was already removed", ErrUnknownMatch, matchID)
	}

	s = newSession(matchID, r.codec)
	if err := s.RecordRequest(request); err != nil {
		return nil, false, err
	}

	r.sessions[matchID] = s
	return s, true, nil
}

// Get returns the live Session for matchID.
func (r *Registry) Get(matchID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, exists := r.sessions[matchID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMatch, matchID)
	}
	return s, nil
}

// Remove deletes the Session for matchID and retires the identifier. The
// identifier is retired even when no Session exists, in which case
// ErrUnknownMatch is returned.
func (r *Registry) Remove(matchID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.retired[matchID] = struct{}{}
	if _, exists := r.sessions[matchID]; !exists {
		return fmt.Errorf("%w: %s", ErrUnknownMatch, matchID)
	}
	delete(r.sessions, matchID)
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sessions yields every live Session ordered by match identifier.
func (r *Registry) Sessions() iter.Seq[*Session] {
	return r.filter(func(*Session) bool { return true })
}

// Pending yields the sessions holding an unanswered request, ordered by match
// identifier. Each iteration reflects the registry at the time it runs.
func (r *Registry) Pending() iter.Seq[*Session] {
	return r.filter(func(s *Session) bool {
		_, ok := s.PendingRequest()
		return ok
	})
}

func (r *Registry) filter(keep func(*Session) bool) iter.Seq[*Session] {
	return func(yield func(*Session) bool) {
		for _, id := range r.ids() {
			r.mu.RLock()
			s, exists := r.sessions[id]
			r.mu.RUnlock()

			if !exists || !keep(s) {
				continue
			}
			if !yield(s) {
				return
			}
		}
	}
}

func (r *Registry) ids() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
