// Package metrics is caliper's internal operational-metrics side
// channel: counters and gauges about the runtime itself (in this module,
// the resilience package's circuit-breaker outcomes), distinct from the
// spec's Event Bus, which carries the user-visible begin/end/set/create-
// attribute lifecycle.
//
// Grounded on telemetry/registry.go's declare-then-initialize-then-emit
// lifecycle: a module can declare its metric names up front via
// DeclareMetrics (no package in this module does so), a single
// Initialize(sink) call wires up the actual sink once, and Counter/Gauge
// are cheap and safe to call before Initialize (they are no-ops until a
// sink is attached).
package metrics

import (
	"sync"
	"sync/atomic"
)

// ModuleConfig names the metrics a component intends to emit, declared
// ahead of time so a sink can pre-allocate label sets, matching the
// teacher's ModuleConfig shape.
type ModuleConfig struct {
	Counters   []string
	Gauges     []string
}

var (
	declared     sync.Map // module string -> ModuleConfig
	globalSink   atomic.Value
	initOnce     sync.Once
)

// Sink receives emitted metric values. Implementations must be safe for
// concurrent use.
type Sink interface {
	Counter(module, name string, delta float64, labels ...string)
	Gauge(module, name string, value float64, labels ...string)
}

// DeclareMetrics registers the metric names a module will emit. Safe to
// call from package init() before Initialize; last writer for a given
// module name wins, matching telemetry/registry.go's DeclareMetrics.
func DeclareMetrics(module string, cfg ModuleConfig) {
	declared.Store(module, cfg)
}

// Declared returns the ModuleConfig registered for module, if any.
func Declared(module string) (ModuleConfig, bool) {
	v, ok := declared.Load(module)
	if !ok {
		return ModuleConfig{}, false
	}
	return v.(ModuleConfig), true
}

// Initialize attaches sink as the process-wide metrics destination.
// Idempotent: only the first call takes effect, matching the teacher's
// sync.Once-guarded registry initialization.
func Initialize(sink Sink) {
	initOnce.Do(func() {
		globalSink.Store(sink)
	})
}

// Counter emits a counter delta for module/name. A no-op until
// Initialize has been called.
func Counter(module, name string, delta float64, labels ...string) {
	if s, ok := globalSink.Load().(Sink); ok {
		s.Counter(module, name, delta, labels...)
	}
}

// Gauge emits a gauge value for module/name. A no-op until Initialize
// has been called.
func Gauge(module, name string, value float64, labels ...string) {
	if s, ok := globalSink.Load().(Sink); ok {
		s.Gauge(module, name, value, labels...)
	}
}

// reset is test-only: it clears the global sink and declared metrics so
// each test starts from a clean slate despite the package-level sync.Once.
func reset() {
	initOnce = sync.Once{}
	globalSink = atomic.Value{}
	declared = sync.Map{}
}
