// Package logging provides a minimal logging interface and adapters for the
// simulation harness.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the engine, policies and sinks use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - SimLogger with run/component context and round/decision helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	eng := engine.New(graph, agents, func(o *engine.Options) { o.Logger = logger })
//
// The interface stays minimal to avoid vendor lock-in while supporting
// structured logging where available.
package logging
