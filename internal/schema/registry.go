package schema

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dmitrijs2005/opsync/internal/common"
)

// Registry maps table names to descriptors. It replaces any kind of runtime
// type discovery: a table that was never registered is a hard error.
type Registry struct {
	mu     sync.RWMutex
	tables map[string]*Descriptor
}

func NewRegistry() *Registry {
	return &Registry{tables: make(map[string]*Descriptor)}
}

// Register adds a descriptor. Registering an empty or duplicate table name
// fails.
func (r *Registry) Register(d *Descriptor) error {
	if d == nil || d.TableName == "" {
		return fmt.Errorf("%w: descriptor without table name", common.ErrInvalidArgument)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tables[d.TableName]; ok {
		return fmt.Errorf("%w: table %s already registered", common.ErrInvalidArgument, d.TableName)
	}
	r.tables[d.TableName] = d
	return nil
}

// Lookup returns the descriptor for a table name.
func (r *Registry) Lookup(tableName string) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.tables[tableName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrUnknownTable, tableName)
	}
	return d, nil
}

// Contains reports whether a table name is registered.
func (r *Registry) Contains(tableName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tables[tableName]
	return ok
}

// Tables returns the registered table names in sorted order.
func (r *Registry) Tables() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
