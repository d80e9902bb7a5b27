// Package node implements the Node Trie: a shared, append-only tree of
// (attribute, value) edges rooted at node 0. Every distinct path from
// the root — the sequence of attributes and values pushed by nested
// begin() calls — maps to exactly one node, shared across every
// environment that walks the same path.
//
// Node edge values (the value bytes of every non-root node) are bump-allocated
// from internal/pool, the same arena pattern the retrieval pack uses for
// per-scope batch allocation (GopherSecurity's Arena, generalized from
// "connection scratch buffers" to "trie edge values"). Node metadata
// (parent/attribute links) lives in an ordinary growable slice: Go's GC
// already manages that lifetime, so arena-allocating fixed-size structs
// would just be imitating manual memory management nobody asked for.
package node

import (
	"github.com/gocaliper/caliper/errs"
	"github.com/gocaliper/caliper/internal/pool"
	"github.com/gocaliper/caliper/internal/rwlock"
)

// Root is the id of the trie's root node, always present.
const Root = 0

type childKey struct {
	attributeID int
	value       string
}

// record is one trie node's metadata.
type record struct {
	parentID    int
	attributeID int
	value       []byte
}

// Trie is the shared node trie. Safe for concurrent use: reads
// (Parent, Attribute, Value, Size, ForEach) take the read lock; the only
// mutation, FindOrCreateChild, uses double-checked locking so the common
// case (path already exists) only needs a read lock.
//
// Dedup policy (spec §9 open question): this trie is strictly
// deduplicated — two callers racing to create the same (parent,
// attribute, value) edge always converge on one node, never two. The
// write path re-validates under the write lock before allocating, same
// as the attribute registry's Create. The alternative (optimistic,
// allow rare duplicate edges under contention) would save a lock upgrade
// on the miss path but would let concurrent first-touches of the same
// call path fragment sampled data across two equivalent nodes, which
// would be a correctness regression for anything downstream that
// aggregates by node identity — so strict dedup wins here even though it
// costs one extra lock round-trip on the rare miss path.
type Trie struct {
	mu       rwlock.RWLock
	records  []record
	children []map[childKey]int
	pool     *pool.Pool
}

// New creates a trie with just the root node, backed by pool for the
// nodes' edge values.
func New(p *pool.Pool) *Trie {
	if p == nil {
		p = pool.New(0)
	}
	t := &Trie{pool: p}
	t.records = append(t.records, record{parentID: -1, attributeID: -1})
	t.children = append(t.children, nil)
	return t
}

// FindOrCreateChild returns the node id for the edge (parentID,
// attributeID, value) off parentID, creating it if this is the first
// time any environment has walked this exact path. value is copied into
// pool-owned storage; the caller's slice may be reused after this
// returns.
func (t *Trie) FindOrCreateChild(parentID, attributeID int, value []byte) (int, error) {
	if parentID < 0 {
		return 0, errs.Wrap("Trie.FindOrCreateChild", "node", errs.ErrInvalidArgument)
	}

	key := childKey{attributeID: attributeID, value: string(value)}

	t.mu.RLock()
	if parentID >= len(t.children) {
		t.mu.RUnlock()
		return 0, errs.Wrap("Trie.FindOrCreateChild", "node", errs.ErrInvalidArgument)
	}
	if id, ok := t.children[parentID][key]; ok {
		t.mu.RUnlock()
		return id, nil
	}
	t.mu.RUnlock()

	// Miss: take the write lock and re-check. Another goroutine may have
	// created this exact edge between our RUnlock and Lock above.
	t.mu.Lock()
	defer t.mu.Unlock()

	if id, ok := t.children[parentID][key]; ok {
		return id, nil
	}

	var stored []byte
	if len(value) > 0 {
		stored = t.pool.Allocate(len(value))
		copy(stored, value)
	}

	id := len(t.records)
	t.records = append(t.records, record{parentID: parentID, attributeID: attributeID, value: stored})
	t.children = append(t.children, nil)

	if t.children[parentID] == nil {
		t.children[parentID] = make(map[childKey]int)
	}
	t.children[parentID][key] = id

	return id, nil
}

// Parent returns the parent node id of id, or (0, false) for the root.
func (t *Trie) Parent(id int) (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if id <= 0 || id >= len(t.records) {
		return 0, false
	}
	return t.records[id].parentID, true
}

// Attribute returns the attribute id labeling the edge into node id, or
// (-1, false) for the root (which has no incoming edge).
func (t *Trie) Attribute(id int) (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if id <= 0 || id >= len(t.records) {
		return -1, false
	}
	return t.records[id].attributeID, true
}

// Value returns the raw value bytes stored on node id's incoming edge,
// if it was created with one.
func (t *Trie) Value(id int) ([]byte, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if id <= 0 || id >= len(t.records) || t.records[id].value == nil {
		return nil, false
	}
	return t.records[id].value, true
}

// Size returns the total number of nodes, including the root.
func (t *Trie) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

// NodeInfo is the snapshot ForEach hands to its callback.
type NodeInfo struct {
	ID          int
	ParentID    int
	AttributeID int
	Value       []byte
}

// ForEach calls fn once per node, including the root, in id (creation)
// order. fn must not call back into the trie.
func (t *Trie) ForEach(fn func(NodeInfo)) {
	t.mu.RLock()
	snapshot := make([]record, len(t.records))
	copy(snapshot, t.records)
	t.mu.RUnlock()

	for id, r := range snapshot {
		fn(NodeInfo{ID: id, ParentID: r.parentID, AttributeID: r.attributeID, Value: r.value})
	}
}

