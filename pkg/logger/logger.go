// Package logger constructs the structured logger shared by every component
// of the segment store. Callers get a single *zap.SugaredLogger tagged with
// the owning service name, the same way every subsystem threads a logger
// through its Config struct.
package logger

import (
	"go.uber.org/zap"
)

// New builds a production-configured zap logger scoped to service, returning
// the sugared variant used throughout internal/segment and
// internal/segmentset for structured, leveled logging.
func New(service string) *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true

	log, err := cfg.Build()
	if err != nil {
		// zap.NewProductionConfig().Build() only fails on a malformed encoder
		// or sink configuration, neither of which applies here; fall back to
		// a no-op logger rather than letting a logging failure take down a
		// storage engine.
		log = zap.NewNop()
	}

	return log.Sugar().Named(service)
}

// NewDevelopment builds a development-configured zap logger scoped to
// service: human-readable console output with debug-level verbosity, for use
// in tests and local tooling.
func NewDevelopment(service string) *zap.SugaredLogger {
	log, err := zap.NewDevelopment()
	if err != nil {
		log = zap.NewNop()
	}
	return log.Sugar().Named(service)
}

// Nop returns a logger that discards everything, for tests that don't care
// about log output.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
