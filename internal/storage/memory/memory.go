// Package memory is an in-process goal store. State lives as long as the process.
package memory

import (
	"context"
	"sync"

	"savings/internal/core"
	"savings/internal/ledger"
)

type Store struct {
	mu    sync.Mutex
	index map[string]int
	goals []core.Goal
}

var _ ledger.Store = (*Store)(nil)

func New() *Store {
	return &Store{index: map[string]int{}}
}

// SaveGoal stores a copy of g, replacing any earlier version with the same id.
func (s *Store) SaveGoal(_ context.Context, g core.Goal) error {
	if err := g.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[g.ID]; ok {
		s.goals[i] = g.Clone()
		return nil
	}
	s.index[g.ID] = len(s.goals)
	s.goals = append(s.goals, g.Clone())
	return nil
}

// LoadGoals returns copies of all goals in the order they were first saved.
func (s *Store) LoadGoals(_ context.Context) ([]core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Goal, len(s.goals))
	for i, g := range s.goals {
		out[i] = g.Clone()
	}
	return out, nil
}

// Len reports how many goals are stored.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.goals)
}
