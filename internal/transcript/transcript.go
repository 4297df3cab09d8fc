// Package transcript maintains the conversation history with interim user
// utterances reconciled into their final form.
package transcript

import (
	"sync"
	"time"
)

// Role identifies the speaker of an entry.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Entry is one utterance in the conversation history.
type Entry struct {
	Role      Role
	Text      string
	IsFinal   bool
	Timestamp time.Time
}

// Store accumulates transcript entries. At most one interim entry exists per
// role: a newer interim replaces it in place, and the final form removes it
// and appends at the end. The history never shows a stale partial
// recognition alongside its final form. Agent entries are always final.
type Store struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewStore creates an empty transcript store.
func NewStore() *Store {
	return &Store{}
}

// Append adds an entry, reconciling against any pending interim entry of the
// same role. Entries without a timestamp are stamped on arrival; a final form
// carries its own timestamp, not the interim's.
func (s *Store) Append(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].Role != e.Role || s.entries[i].IsFinal {
			continue
		}
		if !e.IsFinal {
			s.entries[i] = e
			return
		}
		s.entries = append(s.entries[:i], s.entries[i+1:]...)
		break
	}
	s.entries = append(s.entries, e)
}

// All returns a snapshot of the history in order.
func (s *Store) All() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear empties the history.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}
