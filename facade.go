package caliper

import (
	"github.com/gocaliper/caliper/attribute"
	"github.com/gocaliper/caliper/ctxstore"
	"github.com/gocaliper/caliper/errs"
	"github.com/gocaliper/caliper/event"
	"github.com/gocaliper/caliper/node"
	"github.com/gocaliper/caliper/query"
	"github.com/gocaliper/caliper/service"
)

// Environment identifies an isolated context — the unit begin/end/set
// operate within. Go has no native thread-local storage, so unlike the
// teacher language's implicit "current thread" notion, callers track
// their own Environment value (typically one per goroutine) and pass it
// explicitly; CurrentEnvironmentFunc below is the escape hatch for
// callers who'd rather resolve it from ambient state themselves.
type Environment = ctxstore.EnvID

// CurrentEnvironmentFunc resolves the "current" environment for callers
// that don't want to thread an Environment value through their call
// stack. It defaults to always returning the same fixed root
// environment; callers that track per-goroutine environments (e.g. via
// a goroutine-local map keyed by runtime stack identity, or simply a
// context.Context value) should set this to their own resolution logic.
// Grounded on Caliper::current_environment(), which returns
// m_env_cb() if set_environment_callback installed one, else 0.
var CurrentEnvironmentFunc = func() Environment { return 0 }

// NewEnvironment allocates a fresh environment with no attribute slots
// set. Each attribute establishes its own position in the node trie (or
// its own inline value) independently, the first time Begin/Set touches
// it — there is no single shared "current node" for the environment as
// a whole.
func (f *Facade) NewEnvironment() Environment {
	return f.ctx.NewEnvironment()
}

// CloseEnvironment discards an environment's state.
func (f *Facade) CloseEnvironment(env Environment) {
	f.ctx.CloseEnvironment(env)
}

// CloneEnvironment duplicates every attribute slot env currently holds
// into a new, independent environment. Mutating the clone never affects
// the original.
func (f *Facade) CloneEnvironment(env Environment) (Environment, error) {
	clone, err := f.ctx.Clone(env)
	if err != nil {
		return 0, errs.Wrap("Facade.CloneEnvironment", "context", err)
	}
	return clone, nil
}

// CreateAttribute registers name in the attribute registry, idempotent
// on name. props controls whether the value is stored inline
// (StoreAsValue) and whether it lives in the global overlay (IsGlobal).
func (f *Facade) CreateAttribute(name string, props attribute.Properties) (*attribute.Attribute, error) {
	a, err := f.attrs.Create(name, props)
	if err != nil {
		return nil, errs.Wrap("Facade.CreateAttribute", "attribute", err)
	}
	return a, nil
}

// Begin opens a new nested scope for attr in env. Each attribute tracks
// its own chain independently: the new node's parent is attr's own
// current node in env (or the trie root, if attr has never been begun in
// env before), not whatever node some other attribute last landed on.
//
// Grounded on CaliperImpl::begin: if attr is store_as_value and value is
// exactly 8 bytes, the value is stored inline in attr's slot and no node
// is created (mirrors attr.store_as_value() && size == sizeof(uint64_t)
// in the original — a store_as_value attribute given any other length
// silently falls through to the node-creating path below, it is not an
// error). Otherwise the (attr, value) edge is found-or-created as a
// child of attr's own current node, and attr's slot moves to that child.
func (f *Facade) Begin(env Environment, attr string, value []byte) (int, error) {
	a, err := f.attrs.Create(attr, 0)
	if err != nil {
		return 0, errs.Wrap("Facade.Begin", "attribute", err)
	}

	if a.Properties&attribute.StoreAsValue != 0 && len(value) == 8 {
		if err := f.ctx.SetValue(env, a.ID, value, a.Properties&attribute.IsGlobal != 0); err != nil {
			return 0, errs.Wrap("Facade.Begin", "context", err)
		}
		f.bus.Emit(event.Begin, event.Payload{EnvironmentID: int(env), AttributeID: a.ID, Value: value})
		return node.Root, nil
	}

	parent := node.Root
	if slot, ok, err := f.ctx.Lookup(env, a.ID); err != nil {
		return 0, errs.Wrap("Facade.Begin", "context", err)
	} else if ok && slot.HasNode {
		parent = slot.NodeID
	}

	child, err := f.trie.FindOrCreateChild(parent, a.ID, value)
	if err != nil {
		return 0, errs.Wrap("Facade.Begin", "node", err)
	}

	if err := f.ctx.SetNode(env, a.ID, child, a.Properties&attribute.IsGlobal != 0); err != nil {
		return 0, errs.Wrap("Facade.Begin", "context", err)
	}

	f.bus.Emit(event.Begin, event.Payload{EnvironmentID: int(env), NodeID: child, AttributeID: a.ID})
	return child, nil
}

// End closes the innermost open scope for attr in env. It is
// attribute-scoped: only attr's own slot moves, leaving every other
// attribute's chain in env untouched, so interleaved begin()s on
// different attributes can close in any order.
//
// Grounded on CaliperImpl::end: attr must already have a node-backed
// slot in env (ErrInvalidArgument otherwise — there is no matching
// begin to pop). The stored node is walked up through its ancestors
// until one labeled with attr's own id is found (a defensive safety net
// for slots a prior Set may have repositioned onto a sibling of a
// different attribute), then that node's parent becomes attr's new
// local slot — always local, never global, matching the original's
// two-argument m_context.set(env, key, parent) call in end(), which
// omits the is_global argument regardless of attr's own properties. If
// that node's parent is the trie root, attr's slot is unset instead; if
// the walk reaches the trie root without finding such a node, End
// returns ErrInvalidArgument. For store_as_value attributes End walks no
// node chain and simply unsets their slot, even when Begin took the
// node path for a value that was not 8 bytes long.
func (f *Facade) End(env Environment, attr string) error {
	a, ok := f.attrs.GetByName(attr)
	if !ok {
		return errs.Wrap("Facade.End", "attribute", errs.ErrInvalidArgument)
	}

	if a.Properties&attribute.StoreAsValue != 0 {
		if err := f.ctx.Unset(env, a.ID); err != nil {
			return errs.Wrap("Facade.End", "context", err)
		}
		f.bus.Emit(event.End, event.Payload{EnvironmentID: int(env), AttributeID: a.ID})
		return nil
	}

	slot, ok, err := f.ctx.Lookup(env, a.ID)
	if err != nil {
		return errs.Wrap("Facade.End", "context", err)
	}
	if !ok || !slot.HasNode {
		return errs.Wrap("Facade.End", "context", errs.ErrInvalidArgument)
	}

	current := slot.NodeID
	for current != node.Root {
		edgeAttr, ok := f.trie.Attribute(current)
		if ok && edgeAttr == a.ID {
			break
		}
		parent, ok := f.trie.Parent(current)
		if !ok {
			return errs.Wrap("Facade.End", "node", errs.ErrInvalidArgument)
		}
		current = parent
	}
	if current == node.Root {
		return errs.Wrap("Facade.End", "context", errs.ErrInvalidArgument)
	}

	parent, ok := f.trie.Parent(current)
	if !ok {
		return errs.Wrap("Facade.End", "node", errs.ErrInvalidArgument)
	}

	if parent == node.Root {
		if err := f.ctx.Unset(env, a.ID); err != nil {
			return errs.Wrap("Facade.End", "context", err)
		}
	} else if err := f.ctx.SetNode(env, a.ID, parent, false); err != nil {
		return errs.Wrap("Facade.End", "context", err)
	}

	f.bus.Emit(event.End, event.Payload{EnvironmentID: int(env), NodeID: current, AttributeID: a.ID})
	return nil
}

// Set records value for attr in env. global stores it in the shared
// overlay visible to every environment instead of env's own slots.
//
// Grounded on CaliperImpl::set: store_as_value attributes behave exactly
// as in Begin — the value is inlined into attr's slot, no node created.
// Otherwise a new node is attached as a sibling under attr's CURRENT
// node's parent (not as a child of the current node itself), so a
// sequence of Sets on the same attribute replaces its slot in place
// rather than nesting deeper the way repeated Begins would.
func (f *Facade) Set(env Environment, attr string, value []byte, global bool) error {
	a, err := f.attrs.Create(attr, boolToProps(global))
	if err != nil {
		return errs.Wrap("Facade.Set", "attribute", err)
	}

	if a.Properties&attribute.StoreAsValue != 0 && len(value) == 8 {
		if err := f.ctx.SetValue(env, a.ID, value, global); err != nil {
			return errs.Wrap("Facade.Set", "context", err)
		}
		f.bus.Emit(event.Set, event.Payload{EnvironmentID: int(env), AttributeID: a.ID, Value: value})
		return nil
	}

	parent := node.Root
	if slot, ok, lookupErr := f.ctx.Lookup(env, a.ID); lookupErr != nil {
		return errs.Wrap("Facade.Set", "context", lookupErr)
	} else if ok && slot.HasNode {
		if p, hasParent := f.trie.Parent(slot.NodeID); hasParent {
			parent = p
		}
	}

	child, err := f.trie.FindOrCreateChild(parent, a.ID, value)
	if err != nil {
		return errs.Wrap("Facade.Set", "node", err)
	}

	if err := f.ctx.SetNode(env, a.ID, child, global); err != nil {
		return errs.Wrap("Facade.Set", "context", err)
	}

	f.bus.Emit(event.Set, event.Payload{EnvironmentID: int(env), NodeID: child, AttributeID: a.ID, Value: value})
	return nil
}

func boolToProps(global bool) attribute.Properties {
	if global {
		return attribute.IsGlobal
	}
	return 0
}

// Unset removes attr from env's private slots, leaving any global value
// of the same attribute unaffected.
func (f *Facade) Unset(env Environment, attr string) error {
	a, ok := f.attrs.GetByName(attr)
	if !ok {
		return errs.Wrap("Facade.Unset", "attribute", errs.ErrInvalidArgument)
	}
	if err := f.ctx.Unset(env, a.ID); err != nil {
		return errs.Wrap("Facade.Unset", "context", err)
	}
	return nil
}

// Get returns attr's current value for env, checking the global overlay
// first. A node-backed slot resolves to the value stored on that node's
// incoming edge; an inline (store_as_value) slot returns its bytes
// directly.
func (f *Facade) Get(env Environment, attr string) ([]byte, bool, error) {
	a, ok := f.attrs.GetByName(attr)
	if !ok {
		return nil, false, nil
	}
	slot, ok, err := f.ctx.Lookup(env, a.ID)
	if err != nil {
		return nil, false, errs.Wrap("Facade.Get", "context", err)
	}
	if !ok {
		return nil, false, nil
	}
	return f.resolveSlot(slot)
}

func (f *Facade) resolveSlot(slot ctxstore.Slot) ([]byte, bool, error) {
	if !slot.HasNode {
		return slot.Value, true, nil
	}
	v, ok := f.trie.Value(slot.NodeID)
	return v, ok, nil
}

// GetContext packs env's full attribute snapshot (private values
// overlaid with the global set) into the wire format query.Unpack
// understands.
func (f *Facade) GetContext(env Environment) ([]byte, error) {
	values, err := f.snapshotValues(env)
	if err != nil {
		return nil, errs.Wrap("Facade.GetContext", "context", err)
	}
	return query.Pack(values), nil
}

// ContextSize reports the number of attribute records env's packed
// context currently holds, without allocating the packed buffer itself.
func (f *Facade) ContextSize(env Environment) (int, error) {
	values, err := f.snapshotValues(env)
	if err != nil {
		return 0, errs.Wrap("Facade.ContextSize", "context", err)
	}
	return len(values), nil
}

// snapshotValues resolves every attribute slot visible to env into its
// raw bytes — node-backed slots via the trie, inline slots directly —
// for packing into the wire format.
func (f *Facade) snapshotValues(env Environment) (map[int][]byte, error) {
	snapshot, err := f.ctx.Snapshot(env)
	if err != nil {
		return nil, err
	}
	values := make(map[int][]byte, len(snapshot))
	for id, slot := range snapshot {
		v, ok, err := f.resolveSlot(slot)
		if err != nil {
			return nil, err
		}
		if ok {
			values[id] = v
		}
	}
	return values, nil
}

// Unpack decodes a packed context buffer, typically one GetContext
// produced (possibly from a different environment or process run, since
// the wire format carries no environment identity of its own).
func (f *Facade) Unpack(buf []byte) ([]query.Record, error) {
	recs, err := query.Unpack(buf)
	if err != nil {
		return nil, errs.Wrap("Facade.Unpack", "context", err)
	}
	return recs, nil
}

// ForeachAttribute calls fn once per registered attribute, in creation
// order.
func (f *Facade) ForeachAttribute(fn func(*attribute.Attribute)) {
	f.attrs.ForEach(fn)
}

// ForeachNode calls fn once per trie node, including the root, in
// creation order.
func (f *Facade) ForeachNode(fn func(node.NodeInfo)) {
	f.trie.ForEach(fn)
}

// WriteMetadata packs env's context and hands it to the active writer
// service. It returns false (never an error) if no writer is installed
// or the writer itself reports failure — matching write_metadata's
// documented degrade-rather-than-abort contract.
//
// The original write_metadata() is a single global dump keyed by node,
// not by environment; this Facade exposes it per-Environment instead, so
// there is no single "current node" to report alongside the context —
// Record.NodeID is left at node.Root here.
func (f *Facade) WriteMetadata(env Environment) bool {
	f.writerMu.RLock()
	w := f.writer
	f.writerMu.RUnlock()
	if w == nil {
		return false
	}

	values, err := f.snapshotValues(env)
	if err != nil {
		return false
	}

	recs, err := query.Unpack(query.Pack(values))
	if err != nil {
		return false
	}

	return w.WriteMetadata(service.Record{EnvironmentID: int(env), NodeID: node.Root, Context: recs})
}
