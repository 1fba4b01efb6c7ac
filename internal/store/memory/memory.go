package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vovakirdan/wirechat-relay/internal/store"
)

type clientName struct {
	clientID    string
	displayName string
}

type nameTag struct {
	displayName string
	tag         string
}

// Store is an in-process store.IdentityStore.
type Store struct {
	mu       sync.RWMutex
	byClient map[clientName]*store.IdentityRecord
	byTag    map[nameTag]struct{}
	perName  map[string]int
}

var _ store.IdentityStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		byClient: make(map[clientName]*store.IdentityRecord),
		byTag:    make(map[nameTag]struct{}),
		perName:  make(map[string]int),
	}
}

// GetIdentity retrieves the record a client holds for a display name.
func (s *Store) GetIdentity(_ context.Context, clientID, displayName string) (*store.IdentityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byClient[clientName{clientID, displayName}]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// CreateIdentity inserts a new record.
func (s *Store) CreateIdentity(_ context.Context, rec *store.IdentityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ck := clientName{rec.ClientID, rec.DisplayName}
	if _, exists := s.byClient[ck]; exists {
		return store.ErrIdentityExists
	}
	tk := nameTag{rec.DisplayName, rec.Tag}
	if _, taken := s.byTag[tk]; taken {
		return store.ErrTagTaken
	}

	cp := *rec
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.byClient[ck] = &cp
	s.byTag[tk] = struct{}{}
	s.perName[rec.DisplayName]++
	return nil
}

// CountIdentities returns how many records share a display name.
func (s *Store) CountIdentities(_ context.Context, displayName string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.perName[displayName], nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
