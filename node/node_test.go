package node

import (
	"sync"
	"testing"

	"github.com/gocaliper/caliper/internal/pool"
)

func newTrie() *Trie {
	return New(pool.New(256))
}

func TestFindOrCreateChildDedup(t *testing.T) {
	tr := newTrie()

	a, err := tr.FindOrCreateChild(Root, 1, []byte("GET"))
	if err != nil {
		t.Fatalf("FindOrCreateChild: %v", err)
	}
	b, err := tr.FindOrCreateChild(Root, 1, []byte("GET"))
	if err != nil {
		t.Fatalf("FindOrCreateChild: %v", err)
	}
	if a != b {
		t.Fatalf("identical (parent, attr, value) edges produced different nodes: %d != %d", a, b)
	}

	c, err := tr.FindOrCreateChild(Root, 1, []byte("POST"))
	if err != nil {
		t.Fatalf("FindOrCreateChild: %v", err)
	}
	if c == a {
		t.Fatal("distinct values must produce distinct nodes")
	}
}

func TestFindOrCreateChildNesting(t *testing.T) {
	tr := newTrie()

	top, _ := tr.FindOrCreateChild(Root, 1, []byte("handler"))
	nested, _ := tr.FindOrCreateChild(top, 2, []byte("query"))

	parent, ok := tr.Parent(nested)
	if !ok || parent != top {
		t.Fatalf("Parent(%d) = %d, %v; want %d, true", nested, parent, ok, top)
	}
}

func TestFindOrCreateChildConcurrentConverges(t *testing.T) {
	tr := newTrie()
	var wg sync.WaitGroup
	ids := make([]int, 200)

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := tr.FindOrCreateChild(Root, 7, []byte("same-path"))
			if err != nil {
				t.Error(err)
				return
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		if id != ids[0] {
			t.Fatal("racing creators of the same edge diverged onto different nodes")
		}
	}
}

func TestValueRoundtrip(t *testing.T) {
	tr := newTrie()
	id, _ := tr.FindOrCreateChild(Root, 1, []byte("payload"))

	v, ok := tr.Value(id)
	if !ok || string(v) != "payload" {
		t.Fatalf("Value(%d) = %q, %v", id, v, ok)
	}

	root, ok := tr.Value(Root)
	if ok || root != nil {
		t.Fatal("root node should have no edge value")
	}
}

func TestFindOrCreateChildRejectsInvalidParent(t *testing.T) {
	tr := newTrie()
	if _, err := tr.FindOrCreateChild(-1, 1, nil); err == nil {
		t.Fatal("expected an error for a negative parent id")
	}
	if _, err := tr.FindOrCreateChild(999, 1, nil); err == nil {
		t.Fatal("expected an error for an out-of-range parent id")
	}
}

func TestForEachIncludesRoot(t *testing.T) {
	tr := newTrie()
	tr.FindOrCreateChild(Root, 1, []byte("x"))

	var ids []int
	tr.ForEach(func(info NodeInfo) { ids = append(ids, info.ID) })

	if len(ids) != 2 || ids[0] != Root {
		t.Fatalf("ForEach = %v, want root-first 2-element slice", ids)
	}
}
