package simplegit

import (
	"log/slog"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/cache"
)

// Option configures how a repository is opened or created.
type Option func(*options)

type options struct {
	fs         billy.Filesystem
	logger     *slog.Logger
	cacheSize  cache.FileSize
	customFS   bool
	skipGlobal bool
}

func newOptions(opts []Option) *options {
	o := &options{
		fs:        osfs.New("/"),
		logger:    slog.Default(),
		cacheSize: cache.DefaultMaxSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithFilesystem sets the billy filesystem that repository paths are
// resolved against. Defaults to the host filesystem.
//
// Example:
//
//	repo, err := simplegit.Init("/repo", simplegit.WithFilesystem(memfs.New()))
func WithFilesystem(fs billy.Filesystem) Option {
	return func(o *options) {
		o.fs = fs
		o.customFS = true
	}
}

// WithLogger sets the logger used for repository lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObjectCacheSize sets the size in bytes of the decoded object cache.
func WithObjectCacheSize(size int64) Option {
	return func(o *options) {
		if size > 0 {
			o.cacheSize = cache.FileSize(size)
		}
	}
}

// WithoutGlobalConfig skips the one-time global gitconfig check. It is
// meant for in-memory repositories in tests.
func WithoutGlobalConfig() Option {
	return func(o *options) {
		o.skipGlobal = true
	}
}
