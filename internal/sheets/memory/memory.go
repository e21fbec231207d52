// Package memory is an in-process journal used when no spreadsheet is
// configured and in tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	ports "dailybudget/internal/sheets"
)

type Store struct {
	mu   sync.Mutex
	rows []ports.JournalRow
}

var _ ports.JournalWriter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// AppendJournal stores the row and returns a synthetic row reference.
func (s *Store) AppendJournal(_ context.Context, row ports.JournalRow) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (s *Store) Rows() []ports.JournalRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.JournalRow(nil), s.rows...)
}
