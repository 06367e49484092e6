package cache_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmgilman/go/simplegit"
	"github.com/jmgilman/go/simplegit/cache"
	"github.com/jmgilman/go/simplegit/testutil"
)

// seed creates a repository at /repo on fs with README.md committed at
// testutil.Epoch and cmd/main.go an hour later.
func seed(t *testing.T, fs billy.Filesystem) {
	t.Helper()

	repo, err := simplegit.Init("/repo", simplegit.WithFilesystem(fs))
	require.NoError(t, err)
	defer func() { _ = repo.Close() }()

	root, err := testutil.CommitFiles(repo, map[string]string{"README.md": testutil.TestFileContent}, nil, testutil.Epoch)
	require.NoError(t, err)
	next, err := testutil.CommitFiles(repo, map[string]string{
		"README.md":   testutil.TestFileContent,
		"cmd/main.go": testutil.TestGoFileContent,
	}, []plumbing.Hash{root}, testutil.Epoch.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, testutil.SetHead(repo, next))
}

func newRegistry(t *testing.T) (*cache.Registry, *prometheus.Registry, *int) {
	t.Helper()

	fs := memfs.New()
	seed(t, fs)

	opens := 0
	var mu sync.Mutex
	reg := prometheus.NewRegistry()
	registry := cache.NewRegistry(
		cache.WithMetrics(reg),
		cache.WithPool(2),
		cache.WithOpener(func(path string) (*simplegit.Repository, error) {
			mu.Lock()
			opens++
			mu.Unlock()
			return simplegit.Open(path, simplegit.WithFilesystem(fs))
		}),
	)
	t.Cleanup(func() { _ = registry.Close() })
	return registry, reg, &opens
}

func counter(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			return f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not registered", name)
	return 0
}

func TestRegistry_GetOrOpen(t *testing.T) {
	registry, reg, opens := newRegistry(t)

	first, err := registry.GetOrOpen("/repo")
	require.NoError(t, err)
	defer func() { _ = first.Close() }()

	second, err := registry.GetOrOpen("/repo")
	require.NoError(t, err)
	defer func() { _ = second.Close() }()

	assert.Same(t, first.Underlying(), second.Underlying())
	assert.Equal(t, 1, *opens)
	assert.Equal(t, 1, registry.Len())
	assert.Equal(t, 1.0, counter(t, reg, "simplegit_cache_misses_total"))
	assert.Equal(t, 1.0, counter(t, reg, "simplegit_cache_hits_total"))

	t.Run("handles are independent", func(t *testing.T) {
		require.NoError(t, first.Close())

		head, err := second.Head()
		require.NoError(t, err)
		assert.NoError(t, head.Close())
	})

	t.Run("paths are keys", func(t *testing.T) {
		other, err := registry.GetOrOpen("/repo/")
		require.NoError(t, err)
		defer func() { _ = other.Close() }()

		assert.Equal(t, 2, registry.Len())
		assert.Equal(t, 2, *opens)
	})
}

func TestRegistry_Concurrent(t *testing.T) {
	registry, _, opens := newRegistry(t)

	var wg sync.WaitGroup
	repos := make([]*simplegit.Repository, 8)
	errs := make([]error, len(repos))
	for i := range repos {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			repos[i], errs[i] = registry.GetOrOpen("/repo")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	shared := repos[0].Underlying()
	for _, repo := range repos {
		assert.Same(t, shared, repo.Underlying())
	}
	for _, repo := range repos {
		_ = repo.Close()
	}
	assert.Equal(t, 1, *opens)
}

func TestRegistry_OpenError(t *testing.T) {
	registry, reg, opens := newRegistry(t)

	_, err := registry.GetOrOpen("/missing")
	require.Error(t, err)
	assert.True(t, simplegit.IsNotFound(err))

	_, err = registry.GetOrOpen("/missing")
	require.Error(t, err)

	assert.Equal(t, 2, *opens, "failures are not cached")
	assert.Zero(t, registry.Len())
	assert.Equal(t, 2.0, counter(t, reg, "simplegit_cache_open_errors_total"))
}

func TestRegistry_Close(t *testing.T) {
	registry, _, _ := newRegistry(t)

	repo, err := registry.GetOrOpen("/repo")
	require.NoError(t, err)
	defer func() { _ = repo.Close() }()

	require.NoError(t, registry.Close())
	assert.Zero(t, registry.Len())

	empty, err := repo.IsEmpty()
	require.NoError(t, err, "outstanding handles survive the registry")
	assert.False(t, empty)
}

func TestRegistry_ReopensClosedEntry(t *testing.T) {
	fs := memfs.New()
	seed(t, fs)

	var opened []*simplegit.Repository
	registry := cache.NewRegistry(cache.WithOpener(func(path string) (*simplegit.Repository, error) {
		repo, err := simplegit.Open(path, simplegit.WithFilesystem(fs))
		if err == nil {
			opened = append(opened, repo)
		}
		return repo, err
	}))
	defer func() { _ = registry.Close() }()

	first, err := registry.GetOrOpen("/repo")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// Closing the registry's own hold is what a concurrent Close does.
	require.Len(t, opened, 1)
	require.NoError(t, opened[0].Close())

	repo, err := registry.GetOrOpen("/repo")
	require.NoError(t, err)
	defer func() { _ = repo.Close() }()

	assert.Len(t, opened, 2)
	assert.Equal(t, 1, registry.Len())

	empty, err := repo.IsEmpty()
	require.NoError(t, err)
	assert.False(t, empty)
}

func TestRegistry_FileLatestModifiedDate(t *testing.T) {
	registry, _, opens := newRegistry(t)

	ms, err := registry.FileLatestModifiedDate("/repo", "cmd/main.go")
	require.NoError(t, err)
	assert.Equal(t, testutil.Epoch.Add(time.Hour).UnixMilli(), ms)

	ms, err = registry.FileLatestModifiedDate("/repo", "README.md")
	require.NoError(t, err)
	assert.Equal(t, testutil.Epoch.UnixMilli(), ms)

	_, err = registry.FileLatestModifiedDate("/repo", "missing")
	assert.True(t, simplegit.IsNotFound(err))

	assert.Equal(t, 1, *opens)

	t.Run("async", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		ms, err := registry.FileLatestModifiedDateAsync(ctx, "/repo", "cmd").Wait(ctx)
		require.NoError(t, err)
		assert.Equal(t, testutil.Epoch.Add(time.Hour).UnixMilli(), ms)

		_, err = registry.FileLatestModifiedDateAsync(ctx, "/missing", "README.md").Wait(ctx)
		assert.Error(t, err)
	})
}

func TestDefault(t *testing.T) {
	assert.Same(t, cache.Default(), cache.Default())
}

func TestWithMetrics_SharedRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	open := cache.WithOpener(func(path string) (*simplegit.Repository, error) {
		return simplegit.Open(path, simplegit.WithFilesystem(memfs.New()))
	})
	a := cache.NewRegistry(cache.WithMetrics(reg), open)
	b := cache.NewRegistry(cache.WithMetrics(reg), open)
	defer func() { _ = a.Close(); _ = b.Close() }()

	_, err := a.GetOrOpen("/definitely/missing")
	require.Error(t, err)
	_, err = b.GetOrOpen("/definitely/missing")
	require.Error(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 3, "the second registry reuses the first one's counters")
	assert.Equal(t, 2.0, counter(t, reg, "simplegit_cache_open_errors_total"))
}
