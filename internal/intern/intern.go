// Package intern maps dotted unit identifiers to compact handles. Every other
// core component keys on handles so that hot maps and sets hold 32-bit values
// instead of strings.
package intern

import (
	"sync"

	"github.com/example/trane/pkg/models"
)

// Table interns unit IDs. It is safe for concurrent use; lookups take a read
// lock and only the first insertion of an ID takes the write lock.
type Table struct {
	mu  sync.RWMutex
	ids map[string]models.UnitID
	rev []string // index handle-1 holds the original string
}

// NewTable creates an empty intern table.
func NewTable() *Table {
	return &Table{
		ids: make(map[string]models.UnitID),
	}
}

// Intern returns the handle for the given unit ID, assigning a new handle if
// the ID has not been seen before.
func (t *Table) Intern(unitID string) models.UnitID {
	t.mu.RLock()
	handle, ok := t.ids[unitID]
	t.mu.RUnlock()
	if ok {
		return handle
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if handle, ok = t.ids[unitID]; ok {
		return handle
	}
	t.rev = append(t.rev, unitID)
	handle = models.UnitID(len(t.rev))
	t.ids[unitID] = handle
	return handle
}

// Lookup returns the handle for the given unit ID, or NoUnit if the ID has
// never been interned.
func (t *Table) Lookup(unitID string) models.UnitID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ids[unitID]
}

// ID returns the original string for the given handle, or the empty string if
// the handle was never assigned.
func (t *Table) ID(handle models.UnitID) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if handle == models.NoUnit || int(handle) > len(t.rev) {
		return ""
	}
	return t.rev[handle-1]
}

// Len returns the number of interned IDs.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rev)
}
