package errs

import (
	"errors"
	"strings"
	"testing"
)

func TestWrapPreservesSentinel(t *testing.T) {
	err := Wrap("Trie.FindOrCreateChild", "node", ErrInvalidArgument)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatal("Wrap must preserve errors.Is matching against the sentinel")
	}
}

func TestWrapNilIsNil(t *testing.T) {
	if Wrap("op", "kind", nil) != nil {
		t.Fatal("Wrap(nil) must return nil")
	}
}

func TestIsFatalOnlyOnOutOfMemory(t *testing.T) {
	if !IsFatal(Wrap("op", "pool", ErrOutOfMemory)) {
		t.Fatal("ErrOutOfMemory must be fatal")
	}
	if IsFatal(Wrap("op", "attr", ErrInvalidArgument)) {
		t.Fatal("ErrInvalidArgument must not be fatal")
	}
}

func TestPredicates(t *testing.T) {
	cases := []struct {
		err  error
		pred func(error) bool
	}{
		{ErrInvalidArgument, IsInvalidArgument},
		{ErrOutOfMemory, IsOutOfMemory},
		{ErrTypeMismatch, IsTypeMismatch},
		{ErrUnavailable, IsUnavailable},
	}
	for _, c := range cases {
		if !c.pred(Wrap("op", "kind", c.err)) {
			t.Fatalf("predicate failed for %v", c.err)
		}
	}
}

func TestErrorMessageIncludesOpAndKind(t *testing.T) {
	err := Wrap("Facade.Begin", "attribute", ErrInvalidArgument)
	msg := err.Error()
	if msg == "" {
		t.Fatal("Error() must not be empty")
	}
	if !strings.Contains(msg, "Facade.Begin") || !strings.Contains(msg, "attribute") {
		t.Fatalf("Error() = %q, want it to include the op and kind", msg)
	}
}
