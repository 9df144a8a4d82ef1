// Package logging constructs the single process-wide zap logger threaded
// through the resolver and learning-loop handles. Every downgrade-to-
// UNKNOWN, missing-index, cache-conflict, and rate-capped event is a
// structured log line here, never a panic.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-style sugared logger. When debug is true, the
// encoder favors human-readable console output over JSON.
func New(debug bool) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.DisableStacktrace = !debug

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// Nop returns a logger that discards everything, for tests and library
// callers that do not want resolver output on stderr.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
