package telemetryservice

import (
	"context"
	"testing"

	"github.com/gocaliper/caliper/event"
	"github.com/gocaliper/caliper/logger"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := New("caliper-test", "", logger.NoOp{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		_ = svc.Shutdown(context.Background())
	})
	return svc
}

func TestBeginEndOpensAndClosesOneSpanPerAttribute(t *testing.T) {
	svc := newTestService(t)
	key := spanKey{EnvironmentID: 1, AttributeID: 10}

	svc.onBegin(event.Begin, event.Payload{EnvironmentID: 1, AttributeID: 10})

	svc.mu.Lock()
	depth := len(svc.spans[key])
	svc.mu.Unlock()
	if depth != 1 {
		t.Fatalf("span stack depth after one Begin = %d, want 1", depth)
	}

	if err := svc.onEnd(event.End, event.Payload{EnvironmentID: 1, AttributeID: 10}); err != nil {
		t.Fatalf("onEnd: %v", err)
	}

	svc.mu.Lock()
	depth = len(svc.spans[key])
	svc.mu.Unlock()
	if depth != 0 {
		t.Fatalf("span stack depth after matching End = %d, want 0", depth)
	}
}

func TestEndWithoutBeginIsInvalidArgument(t *testing.T) {
	svc := newTestService(t)

	if err := svc.onEnd(event.End, event.Payload{EnvironmentID: 42, AttributeID: 1}); err == nil {
		t.Fatal("expected an error ending an attribute with no open span")
	}
}

func TestEndIsScopedToItsOwnAttribute(t *testing.T) {
	svc := newTestService(t)

	svc.onBegin(event.Begin, event.Payload{EnvironmentID: 1, AttributeID: 1})
	svc.onBegin(event.Begin, event.Payload{EnvironmentID: 1, AttributeID: 2})
	svc.onBegin(event.Begin, event.Payload{EnvironmentID: 2, AttributeID: 1})

	keyA := spanKey{EnvironmentID: 1, AttributeID: 1}
	keyB := spanKey{EnvironmentID: 1, AttributeID: 2}
	keyOther := spanKey{EnvironmentID: 2, AttributeID: 1}

	svc.mu.Lock()
	dA, dB, dOther := len(svc.spans[keyA]), len(svc.spans[keyB]), len(svc.spans[keyOther])
	svc.mu.Unlock()
	if dA != 1 || dB != 1 || dOther != 1 {
		t.Fatalf("span depths = A:%d B:%d other-env:%d, want 1,1,1", dA, dB, dOther)
	}

	if err := svc.onEnd(event.End, event.Payload{EnvironmentID: 1, AttributeID: 1}); err != nil {
		t.Fatalf("onEnd: %v", err)
	}
	svc.mu.Lock()
	dA, dB = len(svc.spans[keyA]), len(svc.spans[keyB])
	svc.mu.Unlock()
	if dA != 0 {
		t.Fatalf("attribute 1's span depth after its own End = %d, want 0", dA)
	}
	if dB != 1 {
		t.Fatalf("attribute 2's span should be untouched by ending attribute 1: depth = %d, want 1", dB)
	}
}

func TestNestedBeginEndTracksIndependentEnvironments(t *testing.T) {
	svc := newTestService(t)

	svc.onBegin(event.Begin, event.Payload{EnvironmentID: 1, AttributeID: 1})
	svc.onBegin(event.Begin, event.Payload{EnvironmentID: 1, AttributeID: 1})
	svc.onBegin(event.Begin, event.Payload{EnvironmentID: 2, AttributeID: 1})

	key1 := spanKey{EnvironmentID: 1, AttributeID: 1}
	key2 := spanKey{EnvironmentID: 2, AttributeID: 1}

	svc.mu.Lock()
	d1, d2 := len(svc.spans[key1]), len(svc.spans[key2])
	svc.mu.Unlock()
	if d1 != 2 {
		t.Fatalf("environment 1 span depth = %d, want 2", d1)
	}
	if d2 != 1 {
		t.Fatalf("environment 2 span depth = %d, want 1", d2)
	}

	if err := svc.onEnd(event.End, event.Payload{EnvironmentID: 1, AttributeID: 1}); err != nil {
		t.Fatalf("onEnd: %v", err)
	}
	svc.mu.Lock()
	d1 = len(svc.spans[key1])
	svc.mu.Unlock()
	if d1 != 1 {
		t.Fatalf("environment 1 span depth after one End = %d, want 1 (nested span still open)", d1)
	}
}

func TestSetWithNoOpenSpanIsANoop(t *testing.T) {
	svc := newTestService(t)

	if err := svc.onSet(event.Set, event.Payload{EnvironmentID: 7, AttributeID: 1, Value: "x"}); err != nil {
		t.Fatalf("onSet with no open span should be a no-op, got %v", err)
	}
}

func TestAttachSubscribesToBeginEndSet(t *testing.T) {
	svc := newTestService(t)
	bus := event.New(nil)
	svc.Attach(bus)

	key := spanKey{EnvironmentID: 3, AttributeID: 1}

	bus.Emit(event.Begin, event.Payload{EnvironmentID: 3, AttributeID: 1})
	svc.mu.Lock()
	depth := len(svc.spans[key])
	svc.mu.Unlock()
	if depth != 1 {
		t.Fatalf("Attach did not wire Begin through the bus: depth = %d, want 1", depth)
	}

	bus.Emit(event.Set, event.Payload{EnvironmentID: 3, AttributeID: 1, Value: []byte("v")})
	bus.Emit(event.End, event.Payload{EnvironmentID: 3, AttributeID: 1})

	svc.mu.Lock()
	depth = len(svc.spans[key])
	svc.mu.Unlock()
	if depth != 0 {
		t.Fatalf("Attach did not wire End through the bus: depth = %d, want 0", depth)
	}
}
