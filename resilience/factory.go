package resilience

import "github.com/gocaliper/caliper/logger"

// Dependencies holds optional collaborators for a writer's resilience
// wrapping, following the same dependency-injection shape as the
// teacher's ResilienceDependencies (logger, telemetry auto-detection),
// trimmed to the one collaborator this domain actually has — a logger;
// metrics go through the package-level metrics.Counter/Gauge side
// channel instead of an injected collector.
type Dependencies struct {
	Logger logger.Logger
}

// NewWriterCircuitBreaker builds a CircuitBreaker named for the writer
// it guards, wiring in deps.Logger if supplied.
func NewWriterCircuitBreaker(writerName string, deps Dependencies) *CircuitBreaker {
	return New(DefaultConfig(writerName), deps.Logger)
}
