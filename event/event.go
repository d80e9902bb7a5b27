// Package event implements the Event Bus: synchronous, in-process
// notification of lifecycle hook points (attribute creation, begin/end/set,
// init-complete, finalize). Dispatch is always synchronous and in
// registration order — there is no queue, no goroutine hop, and a
// callback that panics or returns an error never aborts the caller's
// mutating operation; it is logged and swallowed.
//
// Grounded on the teacher's registry Emit/declarative-registration split
// (telemetry/registry.go): callbacks are registered ahead of time and
// invoked by name at the point of interest, but generalized here from
// "named metric, numeric value" to "named hook, structured payload"
// since the spec's event bus carries richer per-event data.
package event

import (
	"sync"

	"github.com/gocaliper/caliper/logger"
)

// Type identifies a hook point.
type Type string

const (
	Query           Type = "query"
	Begin           Type = "begin"
	End             Type = "end"
	Set             Type = "set"
	CreateAttribute Type = "create_attribute"
	InitComplete    Type = "init_complete"
	Finalize        Type = "finalize"
)

// Payload carries whatever fields are relevant to the event Type; unused
// fields are left at their zero value.
type Payload struct {
	EnvironmentID int
	NodeID        int
	AttributeID   int
	AttributeName string
	Value         interface{}
}

// Callback observes an event. A non-nil return is logged, never
// propagated to the emitting operation.
type Callback func(Type, Payload) error

// Bus is the process-wide event dispatcher. Safe for concurrent
// Subscribe/Emit; Emit never blocks on I/O beyond logging a failed
// callback.
type Bus struct {
	log       logger.Logger
	mu        sync.RWMutex
	listeners map[Type][]Callback
}

// New creates an empty bus. log may be nil, in which case logger.NoOp is
// used for callback-error reporting.
func New(log logger.Logger) *Bus {
	if log == nil {
		log = logger.NoOp{}
	}
	return &Bus{log: log, listeners: make(map[Type][]Callback)}
}

// Subscribe registers cb to run on every Emit of typ, appended after any
// already-registered callback for that type.
func (b *Bus) Subscribe(typ Type, cb Callback) {
	if cb == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[typ] = append(b.listeners[typ], cb)
}

// Emit synchronously invokes every callback registered for typ, in
// registration order. A callback error or panic is logged with the event
// type and does not stop later callbacks from running or propagate to the
// caller.
func (b *Bus) Emit(typ Type, payload Payload) {
	b.mu.RLock()
	cbs := b.listeners[typ]
	b.mu.RUnlock()

	for _, cb := range cbs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.log.Warn("event callback panicked", map[string]interface{}{
						"event": string(typ),
						"panic": r,
					})
				}
			}()
			if err := cb(typ, payload); err != nil {
				b.log.Warn("event callback failed", map[string]interface{}{
					"event": string(typ),
					"error": err.Error(),
				})
			}
		}()
	}
}
