package session

import "sync"

// MemoryStore is an in-memory Store used in tests as a stand-in for durable
// storage. It honors the same atomicity contract as FileStore.
type MemoryStore struct {
	mu         sync.Mutex
	pair       TokenPair
	hasPair    bool
	pending    PendingFlow
	hasPending bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Put(pair TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = pair
	s.hasPair = true
	return nil
}

func (s *MemoryStore) Get() (TokenPair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pair, s.hasPair, nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = TokenPair{}
	s.hasPair = false
	s.pending = PendingFlow{}
	s.hasPending = false
	return nil
}

func (s *MemoryStore) PutPending(flow PendingFlow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = flow
	s.hasPending = true
	return nil
}

func (s *MemoryStore) TakePending() (PendingFlow, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasPending {
		return PendingFlow{}, false, nil
	}
	flow := s.pending
	s.pending = PendingFlow{}
	s.hasPending = false
	return flow, true, nil
}
