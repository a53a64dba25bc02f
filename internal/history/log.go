// Package history keeps a bounded, most-recent-first record of past
// interaction checks.
package history

import (
	"sync"

	"github.com/caremind-health/medfaq/internal/domain"
)

// DefaultCapacity is the default number of retained items.
const DefaultCapacity = 10

// Log is a capacity-bounded activity log. Append-only from the caller's
// perspective; the oldest entries are evicted past capacity. Safe for
// concurrent use.
type Log struct {
	mu       sync.Mutex
	items    []domain.HistoryItem
	capacity int
}

// New creates a log holding at most capacity items. Non-positive
// capacity falls back to DefaultCapacity.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{capacity: capacity}
}

// Add inserts item at the front, evicting the oldest entries when the
// log exceeds its capacity.
func (l *Log) Add(item domain.HistoryItem) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.items = append([]domain.HistoryItem{item}, l.items...)
	if len(l.items) > l.capacity {
		l.items = l.items[:l.capacity]
	}
}

// List returns a defensive copy of the items, most recent first.
func (l *Log) List() []domain.HistoryItem {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.HistoryItem, len(l.items))
	copy(out, l.items)
	return out
}

// Len returns the current item count.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Clear empties the log. Valid on an already empty log.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = nil
}
