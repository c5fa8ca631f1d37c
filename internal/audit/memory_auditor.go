package audit

import (
	"sync"

	"github.com/darmiel/linkgate/internal/core"
)

// MaxMemoryEntries bounds the entries an InMemoryAuditor keeps.
const MaxMemoryEntries = 10_000

var (
	_ core.Auditor     = (*InMemoryAuditor)(nil)
	_ core.AuditReader = (*InMemoryAuditor)(nil)
)

// InMemoryAuditor is an auditor that stores audit logs in memory.
type InMemoryAuditor struct {
	mu      sync.Mutex
	entries []core.AuditEntry
}

func NewInMemoryAuditor() *InMemoryAuditor {
	return &InMemoryAuditor{
		entries: make([]core.AuditEntry, 0),
	}
}

func (i *InMemoryAuditor) Log(entry core.AuditEntry) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.entries = append(i.entries, entry)
	if len(i.entries) > MaxMemoryEntries {
		i.entries = i.entries[len(i.entries)-MaxMemoryEntries:]
	}
	return nil
}

// GetRecent returns up to limit entries, oldest first.
func (i *InMemoryAuditor) GetRecent(limit int) ([]core.AuditEntry, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	return lastN(i.entries, limit), nil
}

func (i *InMemoryAuditor) Find(filter func(entry core.AuditEntry) bool, limit int) ([]core.AuditEntry, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	var matches []core.AuditEntry
	for _, entry := range i.entries {
		if filter(entry) {
			matches = append(matches, entry)
		}
	}
	return lastN(matches, limit), nil
}

func (i *InMemoryAuditor) Close() error {
	return nil // nothing to close :)
}

func lastN(entries []core.AuditEntry, limit int) []core.AuditEntry {
	if limit < 0 || limit > len(entries) {
		limit = len(entries)
	}
	out := make([]core.AuditEntry, limit)
	copy(out, entries[len(entries)-limit:])
	return out
}
