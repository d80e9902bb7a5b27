// Package caliper is a performance-annotation runtime: a shared node
// trie records the nested call paths an instrumented program walks
// through (via Begin/End), a per-environment context store layers
// key/value attributes over that shared structure (via Set), and a
// metadata writer service persists snapshots of that context as the
// program runs.
//
// The package-level Instance/TryInstance pair is the singleton lifecycle
// most callers use; Facade itself is also safe to construct directly
// (via New) for callers who want multiple independent runtimes in one
// process (tests, in particular).
package caliper

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/gocaliper/caliper/attribute"
	"github.com/gocaliper/caliper/config"
	"github.com/gocaliper/caliper/ctxstore"
	"github.com/gocaliper/caliper/errs"
	"github.com/gocaliper/caliper/event"
	"github.com/gocaliper/caliper/internal/pool"
	"github.com/gocaliper/caliper/logger"
	"github.com/gocaliper/caliper/node"
	"github.com/gocaliper/caliper/service"
)

var (
	globalFacade atomic.Pointer[Facade]
	initOnce     sync.Once
	initErr      error
)

// Instance returns the process-wide Facade, lazily creating it from
// config.DefaultConfig on first call if no prior Init has run. This is
// the "deferred initialization" entry point: the first caller to touch
// Instance (from any goroutine) pays the setup cost; everyone else gets
// the already-built Facade.
func Instance() (*Facade, error) {
	initOnce.Do(func() {
		if globalFacade.Load() == nil {
			f, err := New()
			if err != nil {
				initErr = err
				return
			}
			globalFacade.Store(f)
		}
	})
	if initErr != nil {
		return nil, initErr
	}
	return globalFacade.Load(), nil
}

// TryInstance returns the process-wide Facade without triggering
// deferred initialization. It returns errs.ErrNotReady if Instance/Init
// has never been called — callers on a signal-handler or other
// non-blocking path should use this instead of Instance, which may
// itself block on first use while the runtime sets up.
func TryInstance() (*Facade, error) {
	f := globalFacade.Load()
	if f == nil {
		return nil, errs.ErrNotReady
	}
	return f, nil
}

// Init explicitly constructs and installs the process-wide Facade using
// opts, instead of waiting for the first Instance() call to default-
// construct one. Calling Init after the singleton already exists (via a
// prior Init or Instance call) is a no-op that returns the existing
// Facade — the singleton is established once, by whichever call wins.
func Init(opts ...config.Option) (*Facade, error) {
	var f *Facade
	var err error
	initOnce.Do(func() {
		f, err = New(opts...)
		if err != nil {
			initErr = err
			return
		}
		globalFacade.Store(f)
	})
	if initErr != nil {
		return nil, initErr
	}
	return globalFacade.Load(), nil
}

// Facade wires together every core component: the attribute registry,
// the shared node trie, the per-environment context store, the event
// bus, and the metadata writer installed with SetWriter. Construction
// does not consult config.Output and installs no writer.
type Facade struct {
	cfg   *config.Config
	log   logger.Logger
	pool  *pool.Pool
	attrs *attribute.Registry
	trie  *node.Trie
	ctx   *ctxstore.Store
	bus   *event.Bus

	writerMu sync.RWMutex
	writer   service.Writer

	instanceID string
}

// New builds a standalone Facade. Most callers should use Instance/Init
// instead; New is exported for tests and for callers who deliberately
// want more than one independent runtime in a process.
func New(opts ...config.Option) (*Facade, error) {
	cfg, err := config.New(opts...)
	if err != nil {
		return nil, errs.Wrap("caliper.New", "config", err)
	}
	return NewFromConfig(cfg)
}

// NewFromConfig builds a standalone Facade from an already-resolved
// config.Config, for callers (like cmd/calipertool) that load
// configuration through a path New's functional options don't cover,
// such as a YAML file or flag/env binding.
func NewFromConfig(cfg *config.Config) (*Facade, error) {
	log := logger.New(cfg.ServiceName)
	p := pool.New(0)
	if cfg.NodePoolSize > 0 {
		p.Reserve(cfg.NodePoolSize)
	}

	bus := event.New(log)
	attrs := attribute.New(bus)
	trie := node.New(p)
	ctx := ctxstore.New()

	f := &Facade{
		cfg:        cfg,
		log:        log,
		pool:       p,
		attrs:      attrs,
		trie:       trie,
		ctx:        ctx,
		bus:        bus,
		instanceID: uuid.NewString(),
	}

	f.bus.Emit(event.InitComplete, event.Payload{})
	log.Log(logger.LevelLifecycle, "caliper initialized", map[string]interface{}{
		"instance_id": f.instanceID,
		"output":      cfg.Output,
	})

	return f, nil
}

// InstanceID is a stable identifier for this process's Facade, used to
// namespace writer output (Redis keys, OTel resource attributes) across
// restarts — it does not imply any cross-process or cross-restart
// aggregation, which stays a Non-goal.
func (f *Facade) InstanceID() string { return f.instanceID }

// Attributes exposes the attribute registry for writer services and the
// CLI that need read-only access (ForEach, Get).
func (f *Facade) Attributes() *attribute.Registry { return f.attrs }

// Nodes exposes the node trie for the same reason.
func (f *Facade) Nodes() *node.Trie { return f.trie }

// Bus exposes the event bus so a service (telemetryservice, a custom
// subscriber) can Attach itself.
func (f *Facade) Bus() *event.Bus { return f.bus }

// SetWriter installs the metadata writer used by WriteMetadata. Safe to
// call after construction, and safe to call concurrently with
// WriteMetadata.
func (f *Facade) SetWriter(w service.Writer) {
	f.writerMu.Lock()
	f.writer = w
	f.writerMu.Unlock()
}

// Finalize emits the finalize event and closes the active writer, if
// any. Safe to call once at shutdown.
func (f *Facade) Finalize() error {
	f.bus.Emit(event.Finalize, event.Payload{})

	f.writerMu.RLock()
	w := f.writer
	f.writerMu.RUnlock()

	if w != nil {
		return w.Close()
	}
	return nil
}
