// Package memstore provides an in-memory implementation of account.Store.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/recoup/internal/account"
)

// Store holds accounts in memory for the lifetime of the process.
type Store struct {
	mu      sync.RWMutex
	records map[string]*account.Record // account ID -> record
	order   []string                   // insertion order
	now     func() time.Time
}

// New initializes an empty in-memory Store.
func New() *Store {
	return &Store{
		records: make(map[string]*account.Record),
		now:     time.Now,
	}
}

// Insert validates n, derives its late fee and recommended action, and stores
// it as uncontacted under a fresh ID. Returns a copy.
func (s *Store) Insert(_ context.Context, n account.NewAccount) (*account.Record, error) {
	r, err := account.NewRecord(n)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := ulid.Make().String()
	if _, dup := s.records[id]; dup {
		return nil, fmt.Errorf("memstore: id %s already assigned", id)
	}
	r.ID = id
	r.CreatedAt = s.now()
	s.records[id] = r
	s.order = append(s.order, id)

	cp := *r
	return &cp, nil
}

// Get retrieves an account by ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*account.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", account.ErrNotFound, id)
	}
	cp := *r
	return &cp, nil
}

// List returns copies of every account in insertion order.
func (s *Store) List(_ context.Context) ([]*account.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*account.Record, 0, len(s.order))
	for _, id := range s.order {
		cp := *s.records[id]
		out = append(out, &cp)
	}
	return out, nil
}

// MarkTriggered performs the uncontacted -> triggered transition under the
// write lock. Only the caller that flips the status gets true.
func (s *Store) MarkTriggered(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", account.ErrNotFound, id)
	}
	if r.Status == account.StatusTriggered {
		return false, nil
	}
	r.Status = account.StatusTriggered
	r.TriggeredAt = s.now()
	return true, nil
}

// Len returns the number of stored accounts.
func (s *Store) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order), nil
}

// Reset discards every account.
func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]*account.Record)
	s.order = nil
	return nil
}

// CountByStatus returns how many accounts are in each status. Used for gauges.
func (s *Store) CountByStatus() map[account.Status]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := map[account.Status]int{
		account.StatusUncontacted: 0,
		account.StatusTriggered:   0,
	}
	for _, r := range s.records {
		counts[r.Status]++
	}
	return counts
}
