// Package repository holds the seen-state backends: which message id was last
// processed for each conversation.
package repository

import (
	"context"
	"sync"

	"lead-responder/internal/domain"
)

// MemoryStore keeps seen-state for the lifetime of the process only.
type MemoryStore struct {
	mu   sync.RWMutex
	seen map[domain.ID]domain.ID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[domain.ID]domain.ID)}
}

func (s *MemoryStore) LastSeen(_ context.Context, conversationID domain.ID) (domain.ID, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.seen[conversationID]
	return id, ok, nil
}

func (s *MemoryStore) MarkSeen(_ context.Context, conversationID, messageID domain.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[conversationID] = messageID
	return nil
}

// Snapshot returns a copy of the current state.
func (s *MemoryStore) Snapshot() map[domain.ID]domain.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[domain.ID]domain.ID, len(s.seen))
	for k, v := range s.seen {
		out[k] = v
	}
	return out
}
