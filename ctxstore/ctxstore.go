// Package ctxstore implements the Context Store: per-environment,
// per-attribute slots that track where each attribute's begin/set call
// last landed, plus the global-attribute overlay every environment sees
// regardless of what it has set itself.
//
// Grounded directly on original_source/src/caliper/Caliper.cpp's
// CaliperImpl: m_context.get(env, key)/set(env, key, ...)/unset(env, key)
// are keyed by (environment, attribute id) — not by environment alone.
// A slot holds one of two things, matching begin()/set()'s own branch on
// attr.store_as_value(): either the id of a node in the shared trie (the
// attribute's current position in its own nested chain) or an inline
// value copied straight into the slot. Locking follows the teacher's
// MemoryStore (core/memory_store.go): one RWMutex per keyed container
// rather than a single store-wide lock, so two environments never
// contend with each other, only with themselves and the rare
// global-overlay write.
package ctxstore

import (
	"sync"
	"sync/atomic"

	"github.com/gocaliper/caliper/errs"
)

// EnvID identifies a context environment — the unit of isolation begin/
// end/set operate within, and the unit clone_environment duplicates.
type EnvID int

// Slot is one attribute's current value within an environment (or the
// global overlay): either a node in the shared trie (HasNode) or an
// inline value (a store_as_value attribute given an 8-byte value, which
// creates no trie node).
type Slot struct {
	HasNode bool
	NodeID  int
	Value   []byte
}

type environment struct {
	mu    sync.RWMutex
	slots map[int]Slot // attribute id -> slot
}

func newEnvironment() *environment {
	return &environment{slots: make(map[int]Slot)}
}

// Store holds every live environment plus the global attribute overlay.
type Store struct {
	mu           sync.RWMutex
	environments map[EnvID]*environment
	nextEnvID    atomic.Int64

	globalMu sync.RWMutex
	global   map[int]Slot
}

// New creates an empty store.
func New() *Store {
	return &Store{
		environments: make(map[EnvID]*environment),
		global:       make(map[int]Slot),
	}
}

// NewEnvironment allocates a fresh environment with no attribute slots
// set. Caliper.cpp's environments start equally empty — begin/set
// establish each attribute's own slot the first time it's used.
func (s *Store) NewEnvironment() EnvID {
	id := EnvID(s.nextEnvID.Add(1) - 1)
	s.mu.Lock()
	s.environments[id] = newEnvironment()
	s.mu.Unlock()
	return id
}

// CloseEnvironment discards an environment's state. Idempotent.
func (s *Store) CloseEnvironment(id EnvID) {
	s.mu.Lock()
	delete(s.environments, id)
	s.mu.Unlock()
}

// Clone duplicates src's attribute slots into a new, independent
// environment. Mutating the clone never affects src.
func (s *Store) Clone(src EnvID) (EnvID, error) {
	s.mu.RLock()
	srcEnv, ok := s.environments[src]
	s.mu.RUnlock()
	if !ok {
		return 0, errs.Wrap("Store.Clone", "context", errs.ErrInvalidArgument)
	}

	srcEnv.mu.RLock()
	slots := make(map[int]Slot, len(srcEnv.slots))
	for k, sl := range srcEnv.slots {
		cp := sl
		cp.Value = append([]byte(nil), sl.Value...)
		slots[k] = cp
	}
	srcEnv.mu.RUnlock()

	id := EnvID(s.nextEnvID.Add(1) - 1)
	dst := &environment{slots: slots}
	s.mu.Lock()
	s.environments[id] = dst
	s.mu.Unlock()

	return id, nil
}

func (s *Store) lookupEnv(id EnvID) (*environment, error) {
	s.mu.RLock()
	env, ok := s.environments[id]
	s.mu.RUnlock()
	if !ok {
		return nil, errs.Wrap("Store", "context", errs.ErrInvalidArgument)
	}
	return env, nil
}

// SetNode records attributeID's current position in the shared node trie
// for env — the node begin/set just found or created for that attribute's
// own chain. global stores it in the shared overlay every environment
// reads through instead of env's own slots, matching attr.is_global().
func (s *Store) SetNode(id EnvID, attributeID, nodeID int, global bool) error {
	return s.setSlot(id, attributeID, Slot{HasNode: true, NodeID: nodeID}, global)
}

// SetValue records attributeID's inline value for env — used only for
// store_as_value attributes, whose value never becomes a trie node.
func (s *Store) SetValue(id EnvID, attributeID int, value []byte, global bool) error {
	return s.setSlot(id, attributeID, Slot{Value: append([]byte(nil), value...)}, global)
}

func (s *Store) setSlot(id EnvID, attributeID int, sl Slot, global bool) error {
	if global {
		s.globalMu.Lock()
		s.global[attributeID] = sl
		s.globalMu.Unlock()
		return nil
	}

	env, err := s.lookupEnv(id)
	if err != nil {
		return err
	}
	env.mu.Lock()
	env.slots[attributeID] = sl
	env.mu.Unlock()
	return nil
}

// Lookup returns attributeID's current slot for env. The global overlay
// is checked first, so a global attribute reads the same everywhere
// regardless of what (if anything) the environment itself set for that
// id. ok is false if no slot — local or global — is set.
func (s *Store) Lookup(id EnvID, attributeID int) (Slot, bool, error) {
	s.globalMu.RLock()
	if sl, ok := s.global[attributeID]; ok {
		s.globalMu.RUnlock()
		return sl, true, nil
	}
	s.globalMu.RUnlock()

	env, err := s.lookupEnv(id)
	if err != nil {
		return Slot{}, false, err
	}
	env.mu.RLock()
	defer env.mu.RUnlock()
	sl, ok := env.slots[attributeID]
	return sl, ok, nil
}

// Unset removes attributeID's slot from env's private state. It never
// touches the global overlay — a global value, once set, stays set for
// every environment until the caller explicitly overwrites it.
func (s *Store) Unset(id EnvID, attributeID int) error {
	env, err := s.lookupEnv(id)
	if err != nil {
		return err
	}
	env.mu.Lock()
	delete(env.slots, attributeID)
	env.mu.Unlock()
	return nil
}

// Snapshot returns a stable copy of every attribute slot visible to the
// environment — its own slots overlaid with (and overridden by) the
// global set — for get_context/context_size packing.
func (s *Store) Snapshot(id EnvID) (map[int]Slot, error) {
	env, err := s.lookupEnv(id)
	if err != nil {
		return nil, err
	}

	env.mu.RLock()
	out := make(map[int]Slot, len(env.slots))
	for k, sl := range env.slots {
		out[k] = sl
	}
	env.mu.RUnlock()

	s.globalMu.RLock()
	for k, sl := range s.global {
		out[k] = sl
	}
	s.globalMu.RUnlock()

	return out, nil
}
