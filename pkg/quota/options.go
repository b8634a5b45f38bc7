package quota

import (
	"log/slog"
	"time"

	"golang.org/x/text/language"

	"github.com/formloom/quota/pkg/cache"
)

const (
	DefaultStoreTimeout  = 5 * time.Second
	DefaultCounterTTL    = 5 * time.Minute
	DefaultSnapshotTTL   = 30 * time.Second
	DefaultCacheCapacity = 10_000
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithStoreTimeout bounds every usage and subscription store call.
func WithStoreTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithCounterTTL sets the staleness window of single-counter reads.
func WithCounterTTL(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.counterTTL = d
		}
	}
}

// WithSnapshotTTL sets the staleness window of multi-action reads.
func WithSnapshotTTL(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.snapshotTTL = d
		}
	}
}

// WithCacheCapacity bounds the number of entries in each read cache.
func WithCacheCapacity(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.capacity = n
		}
	}
}

// WithClock injects the clock the read caches use for expiry.
func WithClock(c cache.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithLanguage sets the language denial reasons are formatted in.
func WithLanguage(tag language.Tag) Option {
	return func(e *Engine) {
		e.lang = tag
	}
}
