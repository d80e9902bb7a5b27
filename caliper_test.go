package caliper

import (
	"testing"

	"github.com/gocaliper/caliper/errs"
)

// TestSingletonLifecycle exercises TryInstance/Instance/Init together in a
// single test function: the package-level singleton they share lives for
// the whole test binary, so splitting this across independent test
// functions would make their outcomes depend on run order.
func TestSingletonLifecycle(t *testing.T) {
	if _, err := TryInstance(); err != errs.ErrNotReady {
		t.Fatalf("TryInstance before any Instance/Init call = %v, want ErrNotReady", err)
	}

	f1, err := Instance()
	if err != nil {
		t.Fatalf("Instance: %v", err)
	}
	if f1 == nil {
		t.Fatal("Instance returned a nil Facade with no error")
	}

	f2, err := Instance()
	if err != nil {
		t.Fatalf("second Instance call: %v", err)
	}
	if f1 != f2 {
		t.Fatal("Instance should return the same Facade on every call")
	}

	f3, err := TryInstance()
	if err != nil {
		t.Fatalf("TryInstance after Instance: %v", err)
	}
	if f3 != f1 {
		t.Fatal("TryInstance should return the already-installed singleton")
	}

	// Init after the singleton exists is a no-op returning the existing
	// Facade, not a fresh one built from the new options.
	f4, err := Init()
	if err != nil {
		t.Fatalf("Init after Instance: %v", err)
	}
	if f4 != f1 {
		t.Fatal("Init should not replace an already-installed singleton")
	}
}

func TestNewFromConfigAssignsInstanceID(t *testing.T) {
	f := newTestFacade(t)
	if f.InstanceID() == "" {
		t.Fatal("InstanceID should be set after construction")
	}
}
