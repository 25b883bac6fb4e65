// Package memory keeps licenses in process memory. Everything is lost on restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/EternisAI/silo-license/internal/license"
)

type Store struct {
	mu       sync.RWMutex
	licenses map[string]*license.License
}

func NewStore() *Store {
	return &Store{
		licenses: make(map[string]*license.License),
	}
}

func (s *Store) Create(_ context.Context, l *license.License) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.licenses[l.ID]; exists {
		return fmt.Errorf("license %s already exists", l.ID)
	}
	s.licenses[l.ID] = clone(l)
	return nil
}

// FindByKey returns the earliest-issued license carrying key, matching the
// ORDER BY issued_at of the SQL stores.
func (s *Store) FindByKey(_ context.Context, key string) (*license.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *license.License
	for _, l := range s.licenses {
		if l.Key != key {
			continue
		}
		if found == nil || l.IssuedAt.Before(found.IssuedAt) ||
			(l.IssuedAt.Equal(found.IssuedAt) && l.ID < found.ID) {
			found = l
		}
	}
	if found == nil {
		return nil, license.ErrNotFound
	}
	return clone(found), nil
}

func (s *Store) FindByID(_ context.Context, id string) (*license.License, error) {
	s.mu.RLock()
	l, exists := s.licenses[id]
	s.mu.RUnlock()

	if !exists {
		return nil, license.ErrNotFound
	}
	return clone(l), nil
}

func (s *Store) List(_ context.Context) ([]license.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]license.License, 0, len(s.licenses))
	for _, l := range s.licenses {
		result = append(result, *clone(l))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].IssuedAt.Before(result[j].IssuedAt)
	})
	return result, nil
}

func (s *Store) SetActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, exists := s.licenses[id]
	if !exists {
		return license.ErrNotFound
	}
	l.Active = active
	return nil
}

func clone(l *license.License) *license.License {
	c := *l
	c.Features = make([]string, len(l.Features))
	copy(c.Features, l.Features)
	return &c
}
