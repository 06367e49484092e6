package cache

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jmgilman/go/simplegit"
)

// Opener opens the repository stored at path.
type Opener func(path string) (*simplegit.Repository, error)

// Option configures a Registry.
type Option func(*registryOptions)

type registryOptions struct {
	logger   *slog.Logger
	registry prometheus.Registerer
	opener   Opener
	poolSize int
}

// WithLogger sets the logger for cache hits, misses and open failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *registryOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics registers the registry's counters with reg.
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	registry := cache.NewRegistry(cache.WithMetrics(reg))
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *registryOptions) {
		o.registry = reg
	}
}

// WithOpener replaces how repositories are opened. The default is
// simplegit.Open.
//
// Example:
//
//	fs := memfs.New()
//	registry := cache.NewRegistry(cache.WithOpener(func(path string) (*simplegit.Repository, error) {
//	    return simplegit.Open(path, simplegit.WithFilesystem(fs))
//	}))
func WithOpener(open Opener) Option {
	return func(o *registryOptions) {
		if open != nil {
			o.opener = open
		}
	}
}

// WithPool bounds how many asynchronous queries run at once. Zero or less
// uses GOMAXPROCS.
func WithPool(size int) Option {
	return func(o *registryOptions) {
		o.poolSize = size
	}
}
