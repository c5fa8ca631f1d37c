package store

import (
	"context"
	"sync"

	"github.com/darmiel/linkgate/internal/core"
)

// DefaultCapacity is the number of records kept when no capacity is configured.
const DefaultCapacity = 10

var _ core.TokenStore = (*InMemoryTokenStore)(nil)

// InMemoryTokenStore keeps the current token per source in process memory.
// Records are held in insertion order; when more than capacity records are
// held, the oldest are evicted regardless of their expiry.
type InMemoryTokenStore struct {
	mu       sync.RWMutex
	capacity int
	tokens   []core.TokenRecord
}

func NewInMemoryTokenStore(capacity int) *InMemoryTokenStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &InMemoryTokenStore{
		capacity: capacity,
		tokens:   make([]core.TokenRecord, 0, capacity+1),
	}
}

func (s *InMemoryTokenStore) Save(_ context.Context, rec core.TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]core.TokenRecord, 0, len(s.tokens)+1)
	for _, t := range s.tokens {
		if t.Source != rec.Source {
			next = append(next, t)
		}
	}
	next = append(next, rec)
	if len(next) > s.capacity {
		next = next[len(next)-s.capacity:]
	}
	s.tokens = next
	return nil
}

func (s *InMemoryTokenStore) Get(_ context.Context, source core.Source) (*core.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.tokens) - 1; i >= 0; i-- {
		if s.tokens[i].Source == source {
			rec := s.tokens[i]
			return &rec, nil
		}
	}
	return nil, &core.NotFoundError{Source: source}
}

func (s *InMemoryTokenStore) FindByToken(_ context.Context, token string) (*core.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.tokens) - 1; i >= 0; i-- {
		if s.tokens[i].Token == token {
			rec := s.tokens[i]
			return &rec, nil
		}
	}
	return nil, &core.NotFoundError{}
}

func (s *InMemoryTokenStore) List(_ context.Context) ([]core.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]core.TokenRecord, 0, len(s.tokens))
	for i := len(s.tokens) - 1; i >= 0; i-- {
		list = append(list, s.tokens[i])
	}
	return list, nil
}

func (s *InMemoryTokenStore) Close() error {
	return nil
}
