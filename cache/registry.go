package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/jmgilman/go/simplegit"
	"github.com/jmgilman/go/simplegit/internal/task"
)

// Registry maps repository paths to open repositories.
type Registry struct {
	entries sync.Map // path -> *simplegit.Repository
	group   singleflight.Group
	open    Opener
	pool    *task.Pool
	logger  *slog.Logger

	hits       prometheus.Counter
	misses     prometheus.Counter
	openErrors prometheus.Counter
}

// NewRegistry creates an empty registry.
//
// Example:
//
//	registry := cache.NewRegistry(cache.WithLogger(logger), cache.WithPool(4))
//	defer registry.Close()
func NewRegistry(opts ...Option) *Registry {
	o := &registryOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.opener == nil {
		logger := o.logger
		o.opener = func(path string) (*simplegit.Repository, error) {
			return simplegit.Open(path, simplegit.WithLogger(logger))
		}
	}

	r := &Registry{
		open:   o.opener,
		pool:   task.NewPool(o.poolSize, o.logger),
		logger: o.logger,
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "simplegit",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Repository lookups served from the registry.",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "simplegit",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Repository lookups that had to open the repository.",
		}),
		openErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "simplegit",
			Subsystem: "cache",
			Name:      "open_errors_total",
			Help:      "Repository opens that failed.",
		}),
	}

	if o.registry != nil {
		r.hits = register(o.registry, r.hits, o.logger)
		r.misses = register(o.registry, r.misses, o.logger)
		r.openErrors = register(o.registry, r.openErrors, o.logger)
	}
	return r
}

// register adds c to reg, reusing a counter another registry already
// registered under the same name.
func register(reg prometheus.Registerer, c prometheus.Counter, logger *slog.Logger) prometheus.Counter {
	err := reg.Register(c)
	if err == nil {
		return c
	}

	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
			return existing
		}
	}
	logger.Warn("failed to register cache metric", "error", err)
	return c
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	return NewRegistry(WithMetrics(prometheus.DefaultRegisterer))
})

// Default returns the process-wide registry, creating it on first use. Its
// metrics are registered with the default prometheus registerer.
func Default() *Registry {
	return defaultRegistry()
}

// GetOrOpen returns a new handle on the repository at path, opening it on
// first use. The caller must Close the handle.
func (r *Registry) GetOrOpen(path string) (*simplegit.Repository, error) {
	for {
		repo, err := r.getOrOpen(path)
		if !errors.Is(err, errStale) {
			return repo, err
		}
	}
}

// errStale reports a cached repository that was closed under the caller.
var errStale = errors.New("cached repository was closed")

// getOrOpen returns errStale when the cached repository was closed under
// it, after dropping that entry so the next attempt opens a fresh one.
func (r *Registry) getOrOpen(path string) (*simplegit.Repository, error) {
	if v, ok := r.entries.Load(path); ok {
		r.hits.Inc()
		r.logger.Debug("repository cache hit", "path", path)
		return r.retain(path, v)
	}

	v, err, _ := r.group.Do(path, func() (any, error) {
		if v, ok := r.entries.Load(path); ok {
			r.hits.Inc()
			return v, nil
		}

		r.misses.Inc()
		r.logger.Debug("repository cache miss", "path", path)

		repo, err := r.open(path)
		if err != nil {
			r.openErrors.Inc()
			r.logger.Debug("failed to open repository", "path", path, "error", err)
			return nil, err
		}
		r.entries.Store(path, repo)
		return repo, nil
	})
	if err != nil {
		return nil, err
	}
	return r.retain(path, v)
}

func (r *Registry) retain(path string, v any) (*simplegit.Repository, error) {
	repo, err := v.(*simplegit.Repository).Retain()
	if errors.Is(err, simplegit.ErrClosed) {
		r.entries.CompareAndDelete(path, v)
		r.logger.Debug("dropped closed repository", "path", path)
		return nil, errStale
	}
	return repo, err
}

// Len returns the number of open repositories.
func (r *Registry) Len() int {
	n := 0
	r.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Close drops the registry's hold on every repository and empties it.
// Handles returned by GetOrOpen stay usable until they are closed. A
// GetOrOpen racing with Close opens the repository again.
func (r *Registry) Close() error {
	var errs []error
	r.entries.Range(func(key, value any) bool {
		r.entries.Delete(key)
		if err := value.(*simplegit.Repository).Close(); err != nil {
			errs = append(errs, err)
		}
		return true
	})
	return errors.Join(errs...)
}

// FileLatestModifiedDate opens the repository at path through the registry
// and returns the latest modification time of file in milliseconds.
func (r *Registry) FileLatestModifiedDate(path, file string) (int64, error) {
	repo, err := r.GetOrOpen(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = repo.Close() }()

	return repo.FileLatestModifiedDate(file)
}

// FileLatestModifiedDateAsync runs FileLatestModifiedDate on the registry's
// pool.
func (r *Registry) FileLatestModifiedDateAsync(ctx context.Context, path, file string) *simplegit.Task[int64] {
	return task.Run(ctx, r.pool, "file-latest-modified", func(context.Context) (int64, error) {
		return r.FileLatestModifiedDate(path, file)
	}, nil)
}
