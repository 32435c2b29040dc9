package provepool

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/provepool/backoff"
	"github.com/xraph/provepool/hook"
	"github.com/xraph/provepool/middleware"
)

// Option configures a Pool during construction.
type Option func(*Pool) error

// WithPoolSize sets the fixed number of execution contexts.
func WithPoolSize(n int) Option {
	return func(p *Pool) error {
		if n < 1 {
			return ErrInvalidPoolSize
		}
		p.cfg.PoolSize = n
		return nil
	}
}

// WithJobTimeout bounds the wait for a terminal message after dispatch.
// Zero disables the timeout.
func WithJobTimeout(d time.Duration) Option {
	return func(p *Pool) error {
		if d < 0 {
			return fmt.Errorf("provepool: job timeout must not be negative, got %s", d)
		}
		p.cfg.JobTimeout = d
		return nil
	}
}

// WithQueueWarnDepth sets the backlog depth at which the pool logs a
// warning. Zero disables the warning. The queue is never bounded.
func WithQueueWarnDepth(n int) Option {
	return func(p *Pool) error {
		if n < 0 {
			return fmt.Errorf("provepool: queue warn depth must not be negative, got %d", n)
		}
		p.cfg.QueueWarnDepth = n
		return nil
	}
}

// WithConfig replaces the pool's configuration wholesale. Later options
// still apply on top of it.
func WithConfig(cfg Config) Option {
	return func(p *Pool) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		p.cfg = cfg
		return nil
	}
}

// WithLogger sets the structured logger used by the pool and its
// execution contexts.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) error {
		if l == nil {
			return fmt.Errorf("provepool: logger must not be nil")
		}
		p.logger = l
		return nil
	}
}

// WithMiddleware sets the middleware chain wrapped around every compute
// call inside each execution context. Middleware runs in the context's
// goroutine, so blocking there never blocks Submit.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(p *Pool) error {
		p.middleware = append(p.middleware, mws...)
		return nil
	}
}

// WithExtensions registers lifecycle extensions. Hooks are invoked
// synchronously in registration order; hook errors are logged and
// swallowed, never surfaced to jobs.
func WithExtensions(exts ...hook.Extension) Option {
	return func(p *Pool) error {
		p.pendingExts = append(p.pendingExts, exts...)
		return nil
	}
}

// WithReplacementBackoff sets the delay strategy between attempts to
// build a replacement context after a crash. Defaults to exponential
// backoff starting at 100ms and capped at 10s.
func WithReplacementBackoff(s backoff.Strategy) Option {
	return func(p *Pool) error {
		if s == nil {
			return fmt.Errorf("provepool: backoff strategy must not be nil")
		}
		p.replaceBackoff = s
		return nil
	}
}
