package simplegit_test

import (
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmgilman/go/simplegit"
	"github.com/jmgilman/go/simplegit/testutil"
)

func TestReference(t *testing.T) {
	repo, _, err := testutil.NewMemoryRepo()
	require.NoError(t, err)
	defer func() { _ = repo.Close() }()

	id, err := testutil.CommitFiles(repo, map[string]string{"README.md": testutil.TestFileContent}, nil, testutil.Epoch)
	require.NoError(t, err)
	require.NoError(t, testutil.SetHead(repo, id))

	s := repo.Underlying().Storer
	require.NoError(t, s.SetReference(plumbing.NewHashReference("refs/remotes/origin/main", id)))
	require.NoError(t, s.SetReference(plumbing.NewHashReference("refs/notes/commits", id)))

	t.Run("symbolic HEAD", func(t *testing.T) {
		head, err := repo.FindReference("HEAD")
		require.NoError(t, err)
		defer func() { _ = head.Close() }()

		kind, err := head.Kind()
		require.NoError(t, err)
		assert.Equal(t, simplegit.ReferenceSymbolic, kind)

		target, ok := head.SymbolicTarget()
		assert.True(t, ok)
		assert.Equal(t, "refs/heads/master", target)

		_, ok = head.Target()
		assert.False(t, ok)

		resolved, err := head.Resolve()
		require.NoError(t, err)
		defer func() { _ = resolved.Close() }()

		name, err := resolved.Name()
		require.NoError(t, err)
		assert.Equal(t, "refs/heads/master", name)

		hash, ok := resolved.Target()
		assert.True(t, ok)
		assert.Equal(t, id, hash)
	})

	t.Run("classification", func(t *testing.T) {
		tests := []struct {
			name      string
			branch    bool
			remote    bool
			note      bool
			shorthand string
		}{
			{"refs/heads/master", true, false, false, "master"},
			{"refs/remotes/origin/main", false, true, false, "origin/main"},
			{"refs/notes/commits", false, false, true, "notes/commits"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				ref, err := repo.FindReference(tt.name)
				require.NoError(t, err)
				defer func() { _ = ref.Close() }()

				branch, err := ref.IsBranch()
				require.NoError(t, err)
				assert.Equal(t, tt.branch, branch)

				remote, err := ref.IsRemote()
				require.NoError(t, err)
				assert.Equal(t, tt.remote, remote)

				note, err := ref.IsNote()
				require.NoError(t, err)
				assert.Equal(t, tt.note, note)

				short, err := ref.Shorthand()
				require.NoError(t, err)
				assert.Equal(t, tt.shorthand, short)
			})
		}
	})

	t.Run("peel to tree", func(t *testing.T) {
		ref, err := repo.FindReference("refs/heads/master")
		require.NoError(t, err)
		defer func() { _ = ref.Close() }()

		tree, err := ref.PeelToTree()
		require.NoError(t, err)
		defer func() { _ = tree.Close() }()

		n, err := tree.Len()
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := repo.FindReference("refs/heads/nope")
		require.Error(t, err)
		assert.True(t, simplegit.IsNotFound(err))
	})

	t.Run("namespace", func(t *testing.T) {
		require.NoError(t, s.SetReference(plumbing.NewHashReference("refs/namespaces/tenant/refs/heads/main", id)))
		require.NoError(t, repo.SetNamespace("tenant"))
		defer func() { _ = repo.RemoveNamespace() }()

		ref, err := repo.FindReference("refs/heads/main")
		require.NoError(t, err)
		defer func() { _ = ref.Close() }()

		name, err := ref.Name()
		require.NoError(t, err)
		assert.Equal(t, "refs/namespaces/tenant/refs/heads/main", name)

		_, err = repo.FindReference("refs/heads/master")
		assert.True(t, simplegit.IsNotFound(err))
	})
}

func TestIsValidReferenceName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"HEAD", true},
		{"ORIG_HEAD", true},
		{"refs/heads/main", true},
		{"refs/tags/v1.0.0", true},
		{"main", false},
		{"refs/heads/bad..name", false},
		{"refs/heads/ends.lock", false},
		{"refs/heads/with space", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, simplegit.IsValidReferenceName(tt.name))
		})
	}
}
