// Package telemetryservice is an event-bus subscriber that turns
// begin/end/set events into OpenTelemetry spans: one span per open
// Begin, stacked per (environment, attribute); a value set via the
// Caliper "set" operation becomes an attribute of that same attribute's
// innermost open span.
//
// Grounded on telemetry/otel.go's OTelProvider (resource construction,
// OTLP-over-gRPC exporter, trace.Tracer wrapping), adapted from "wrap a
// context.Context span" to "subscribe to caliper's own event bus and
// track a stack of open spans per (environment, attribute)" since
// caliper has no ambient context.Context to carry a span through.
package telemetryservice

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	stdouttrace "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/trace"

	"github.com/gocaliper/caliper/errs"
	"github.com/gocaliper/caliper/event"
	"github.com/gocaliper/caliper/logger"
)

// Service subscribes to an event.Bus and exports spans over OTLP (or to
// stdout, when no collector endpoint is configured — useful for local
// development without standing up a collector).
type Service struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	log      logger.Logger

	mu    sync.Mutex
	spans map[spanKey][]trace.Span // (environment, attribute) -> open span stack, innermost last
}

// spanKey identifies one attribute's own nesting within one environment.
// Begin/End are attribute-scoped (each attribute tracks its own chain
// independently), so the span stack they drive one span per open call
// must be keyed the same way, not by environment alone.
type spanKey struct {
	EnvironmentID int
	AttributeID   int
}

// New builds a Service exporting to endpoint. An empty endpoint uses the
// stdout exporter instead of OTLP, matching how the teacher falls back
// to a default when OTEL_EXPORTER_OTLP_ENDPOINT is unset, generalized
// here to "no endpoint configured -> don't require a collector at all."
func New(serviceName, endpoint string, log logger.Logger) (*Service, error) {
	if log == nil {
		log = logger.NoOp{}
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetryservice: building resource: %w", err)
	}

	var tp *sdktrace.TracerProvider
	if endpoint == "" {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("telemetryservice: stdout exporter: %w", err)
		}
		tp = sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter), sdktrace.WithResource(res))
	} else {
		exporter, err := otlptracegrpc.New(context.Background(),
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("telemetryservice: otlp exporter: %w", err)
		}
		tp = sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter), sdktrace.WithResource(res))
	}

	return &Service{
		tracer:   tp.Tracer("caliper"),
		provider: tp,
		log:      log,
		spans:    make(map[spanKey][]trace.Span),
	}, nil
}

// Attach subscribes the service to bus's begin/end/set hook points.
func (s *Service) Attach(bus *event.Bus) {
	bus.Subscribe(event.Begin, s.onBegin)
	bus.Subscribe(event.End, s.onEnd)
	bus.Subscribe(event.Set, s.onSet)
}

func (s *Service) onBegin(_ event.Type, p event.Payload) error {
	name := fmt.Sprintf("attr:%d", p.AttributeID)
	_, span := s.tracer.Start(context.Background(), name)

	key := spanKey{EnvironmentID: p.EnvironmentID, AttributeID: p.AttributeID}
	s.mu.Lock()
	s.spans[key] = append(s.spans[key], span)
	s.mu.Unlock()
	return nil
}

// onEnd pops the innermost open span for (environment, attribute) —
// begin/end nest per attribute's own call stack, so End always closes
// that attribute's most recently opened span, leaving every other
// attribute's stack in the same environment untouched.
func (s *Service) onEnd(_ event.Type, p event.Payload) error {
	key := spanKey{EnvironmentID: p.EnvironmentID, AttributeID: p.AttributeID}
	s.mu.Lock()
	stack := s.spans[key]
	if len(stack) == 0 {
		s.mu.Unlock()
		return errs.Wrap("telemetryservice.onEnd", "event", errs.ErrInvalidArgument)
	}
	span := stack[len(stack)-1]
	s.spans[key] = stack[:len(stack)-1]
	s.mu.Unlock()

	span.End()
	return nil
}

func (s *Service) onSet(_ event.Type, p event.Payload) error {
	key := spanKey{EnvironmentID: p.EnvironmentID, AttributeID: p.AttributeID}
	s.mu.Lock()
	stack := s.spans[key]
	s.mu.Unlock()
	if len(stack) == 0 {
		return nil // no open span for this attribute yet; nothing to attach to
	}
	span := stack[len(stack)-1]

	attrKey := fmt.Sprintf("attr_%d", p.AttributeID)
	switch v := p.Value.(type) {
	case string:
		span.SetAttributes(attribute.String(attrKey, v))
	case []byte:
		span.SetAttributes(attribute.String(attrKey, string(v)))
	case int:
		span.SetAttributes(attribute.Int(attrKey, v))
	case int64:
		span.SetAttributes(attribute.Int64(attrKey, v))
	case float64:
		span.SetAttributes(attribute.Float64(attrKey, v))
	default:
		span.SetAttributes(attribute.String(attrKey, fmt.Sprintf("%v", v)))
	}
	return nil
}

// Shutdown flushes pending spans and releases exporter resources.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.provider.Shutdown(ctx)
}
