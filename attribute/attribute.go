// Package attribute implements the Attribute Registry: a process-wide,
// append-only table mapping attribute names to dense integer ids.
// Grounded on the declarative sync.Map registration used by the
// telemetry registry's DeclareMetrics (concurrent registration with a
// single winner per name, looked up by string key afterward), adapted
// from "metric name -> config" to "attribute name -> Attribute".
package attribute

import (
	"sync"
	"sync/atomic"

	"github.com/gocaliper/caliper/errs"
	"github.com/gocaliper/caliper/event"
)

// Properties is a bitset describing how an attribute's value is stored
// and scoped.
type Properties uint32

const (
	// StoreAsValue means an 8-byte value for this attribute is stored
	// inline in its context slot rather than as a node in the trie; values
	// of any other length still become trie nodes.
	StoreAsValue Properties = 1 << iota

	// IsGlobal means the attribute's value lives in the context store's
	// global overlay rather than per-environment.
	IsGlobal
)

// Attribute is an immutable registry entry. Once created, id and name
// never change; Registry.Create is idempotent on name.
type Attribute struct {
	ID         int
	Name       string
	Properties Properties
}

// Registry is the process-wide attribute table. Safe for concurrent use;
// Create is idempotent and safe to call from many goroutines at once.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]*Attribute
	byID    []*Attribute
	nextID  atomic.Int64
	bus     *event.Bus
}

// New creates an empty registry. bus may be nil, in which case
// create-attribute events are not emitted.
func New(bus *event.Bus) *Registry {
	return &Registry{
		byName: make(map[string]*Attribute),
		bus:    bus,
	}
}

// Create returns the Attribute for name, creating it with dense id
// len(registry) if it doesn't exist yet. Idempotent: calling Create
// twice with the same name returns the same Attribute, ignoring the
// second call's properties.
func (r *Registry) Create(name string, props Properties) (*Attribute, error) {
	if name == "" {
		return nil, errs.Wrap("Registry.Create", "attribute", errs.ErrInvalidArgument)
	}

	r.mu.RLock()
	if a, ok := r.byName[name]; ok {
		r.mu.RUnlock()
		return a, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check under the write lock: another goroutine may have created
	// this name between our RUnlock and Lock.
	if a, ok := r.byName[name]; ok {
		return a, nil
	}

	id := int(r.nextID.Add(1)) - 1
	a := &Attribute{ID: id, Name: name, Properties: props}
	r.byName[name] = a
	r.byID = append(r.byID, a)

	if r.bus != nil {
		r.bus.Emit(event.CreateAttribute, event.Payload{AttributeID: id, AttributeName: name})
	}

	return a, nil
}

// Get looks up an attribute by id. ok is false for an id that was never
// created (including a negative or out-of-range id).
func (r *Registry) Get(id int) (*Attribute, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id < 0 || id >= len(r.byID) {
		return nil, false
	}
	return r.byID[id], true
}

// GetByName looks up an attribute by name.
func (r *Registry) GetByName(name string) (*Attribute, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byName[name]
	return a, ok
}

// Size returns the number of registered attributes.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// ForEach calls fn once per attribute in creation (id) order. fn must not
// call back into the registry.
func (r *Registry) ForEach(fn func(*Attribute)) {
	r.mu.RLock()
	snapshot := make([]*Attribute, len(r.byID))
	copy(snapshot, r.byID)
	r.mu.RUnlock()

	for _, a := range snapshot {
		fn(a)
	}
}
