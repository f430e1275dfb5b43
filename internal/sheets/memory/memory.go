// Package memory keeps exported rows in process, for local runs and tests.
package memory

import (
	"context"
	"sync"
)

type Sheet struct {
	mu   sync.Mutex
	rows [][]any
}

func New() *Sheet {
	return &Sheet{}
}

func (s *Sheet) AppendRow(_ context.Context, values []any) error {
	row := append([]any(nil), values...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
	return nil
}

// Rows returns a copy of every appended row.
func (s *Sheet) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]any, len(s.rows))
	for i, r := range s.rows {
		out[i] = append([]any(nil), r...)
	}
	return out
}
