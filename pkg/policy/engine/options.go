package engine

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Clock supplies decision timestamps.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }

// IDGenerator supplies decision identifiers.
type IDGenerator interface {
	NewID() string
}

// IDGeneratorFunc adapts a function to IDGenerator.
type IDGeneratorFunc func() string

// NewID calls f.
func (f IDGeneratorFunc) NewID() string { return f() }

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for trace timestamps.
// Default: the system clock.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithIDGenerator sets the decision identifier generator.
// Default: random UUIDs.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		if g != nil {
			e.ids = g
		}
	}
}

// WithLogger sets the logger. The engine logs at debug level only.
// Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l.With("component", "policy.engine")
		}
	}
}

func systemClock() Clock {
	return ClockFunc(time.Now)
}

func uuidGenerator() IDGenerator {
	return IDGeneratorFunc(func() string { return uuid.New().String() })
}
