package compare

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Session is one user's working set of loaded configs. It replaces
// process-wide mutable state: each session owns its entries, is created
// explicitly, and is discarded when the user is done. Entries keep their
// load order, which becomes column order in comparisons.
type Session struct {
	id string

	mu      sync.Mutex
	entries []Named
}

// NewSession creates an empty working set.
func NewSession() *Session {
	return &Session{id: uuid.NewString()}
}

// ID returns the session's identifier.
func (s *Session) ID() string {
	return s.id
}

// Load adds a config under a synthetic identifier derived from the display
// name, and returns that identifier. The suffix keeps repeated loads of the
// same backtest distinct.
func (s *Session) Load(name string, cfg *Config) string {
	id := fmt.Sprintf("%s_%s", name, uuid.NewString()[:8])
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, Named{Name: id, Config: cfg})
	return id
}

// LoadJSON parses a JSON config document and adds it to the working set.
func (s *Session) LoadJSON(name string, data []byte) (string, error) {
	cfg, err := ParseJSON(data)
	if err != nil {
		return "", err
	}
	return s.Load(name, cfg), nil
}

// Remove drops the entry with the given identifier. Returns false when the
// identifier is not in the working set.
func (s *Session) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.Name == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Clear drops every entry.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

// Len returns the number of loaded configs.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Configs returns a copy of the working set in load order.
func (s *Session) Configs() []Named {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Named(nil), s.entries...)
}

// Compare builds the comparison table over the current working set.
func (s *Session) Compare(opts ...Option) *Table {
	return Build(s.Configs(), opts...)
}
