// Package auditlog provides the append-only record of rule lifecycle
// transitions.
package auditlog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"alertcore/internal/model"
)

// Log is an in-memory append-only audit log. Appends are serialized into
// a single sequence; entries are immutable once appended.
type Log struct {
	mu      sync.RWMutex
	entries []model.AuditEntry
	nextSeq int64
}

// New creates an empty audit log.
func New() *Log {
	return &Log{}
}

// Append records an entry, assigning its id, timestamp (when unset), and
// insertion sequence number.
func (l *Log) Append(ctx context.Context, entry model.AuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	entry.Seq = l.nextSeq
	l.nextSeq++
	l.entries = append(l.entries, entry)
	return nil
}

// Query returns entries sorted by timestamp ascending, ties broken by
// insertion order. An empty ruleID returns the full log.
func (l *Log) Query(ctx context.Context, ruleID string) ([]model.AuditEntry, error) {
	l.mu.RLock()
	out := make([]model.AuditEntry, 0, len(l.entries))
	for _, e := range l.entries {
		if ruleID == "" || e.RuleID == ruleID {
			out = append(out, e)
		}
	}
	l.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}

// Len returns the number of appended entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
