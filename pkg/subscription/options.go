package subscription

import (
	"log/slog"
	"time"
)

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// WithPeriod sets the billing period length used when provisioning.
func WithPeriod(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.period = d
		}
	}
}

// WithLogger sets the logger used for provisioning and lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithProvisionTimeout bounds the store write that provisions a tenant's first
// subscription. The write runs detached from the caller's cancellation.
func WithProvisionTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.provisionTimeout = d
		}
	}
}
