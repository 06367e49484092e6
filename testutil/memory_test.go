package testutil

import (
	"testing"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitFiles(t *testing.T) {
	repo, fs, err := NewMemoryRepo()
	require.NoError(t, err)
	defer func() { _ = repo.Close() }()
	require.NotNil(t, fs)

	root, err := CommitFiles(repo, map[string]string{
		"README.md":         TestFileContent,
		"cmd/app/main.go":   TestGoFileContent,
		"cmd/app/helper.go": "package main\n",
		"cmd.txt":           "flat\n",
	}, nil, Epoch)
	require.NoError(t, err)

	s := repo.Underlying().Storer
	commit, err := object.GetCommit(s, root)
	require.NoError(t, err)
	assert.Equal(t, TestAuthor, commit.Author.Name)
	assert.Equal(t, TestEmail, commit.Committer.Email)
	assert.True(t, Epoch.Equal(commit.Author.When))
	assert.Empty(t, commit.ParentHashes)

	tree, err := commit.Tree()
	require.NoError(t, err)

	names := make([]string, len(tree.Entries))
	for i, e := range tree.Entries {
		names[i] = e.Name
	}
	assert.Equal(t, []string{"README.md", "cmd.txt", "cmd"}, names)

	f, err := tree.File("cmd/app/main.go")
	require.NoError(t, err)
	content, err := f.Contents()
	require.NoError(t, err)
	assert.Equal(t, TestGoFileContent, content)

	t.Run("merge parents", func(t *testing.T) {
		side, err := CommitFiles(repo, map[string]string{"side": "x"}, []plumbing.Hash{root}, Epoch.Add(time.Hour))
		require.NoError(t, err)
		merge, err := CommitFiles(repo, map[string]string{"side": "x", "README.md": "merged"}, []plumbing.Hash{root, side}, Epoch.Add(2*time.Hour))
		require.NoError(t, err)

		commit, err := object.GetCommit(s, merge)
		require.NoError(t, err)
		assert.Equal(t, []plumbing.Hash{root, side}, commit.ParentHashes)
	})

	t.Run("same content same id", func(t *testing.T) {
		again, err := CommitFiles(repo, map[string]string{
			"cmd.txt":           "flat\n",
			"cmd/app/helper.go": "package main\n",
			"cmd/app/main.go":   TestGoFileContent,
			"README.md":         TestFileContent,
		}, nil, Epoch)
		require.NoError(t, err)
		assert.Equal(t, root, again)
	})
}

func TestSetHead(t *testing.T) {
	repo, _, err := NewMemoryRepo()
	require.NoError(t, err)
	defer func() { _ = repo.Close() }()

	id, err := CommitFiles(repo, map[string]string{"a": "a"}, nil, Epoch)
	require.NoError(t, err)
	require.NoError(t, SetHead(repo, id))

	s := repo.Underlying().Storer
	branch, err := s.Reference(plumbing.Master)
	require.NoError(t, err)
	assert.Equal(t, id, branch.Hash())

	head, err := s.Reference(plumbing.HEAD)
	require.NoError(t, err)
	assert.Equal(t, plumbing.SymbolicReference, head.Type(), "HEAD stays attached")

	t.Run("detached", func(t *testing.T) {
		require.NoError(t, s.SetReference(plumbing.NewHashReference(plumbing.HEAD, id)))

		next, err := CommitFiles(repo, map[string]string{"b": "b"}, []plumbing.Hash{id}, Epoch.Add(time.Hour))
		require.NoError(t, err)
		require.NoError(t, SetHead(repo, next))

		head, err := s.Reference(plumbing.HEAD)
		require.NoError(t, err)
		assert.Equal(t, next, head.Hash())

		branch, err := s.Reference(plumbing.Master)
		require.NoError(t, err)
		assert.Equal(t, id, branch.Hash())
	})
}

func TestNewDiskRepo(t *testing.T) {
	repo := NewDiskRepo(t)

	dir, ok, err := repo.Workdir()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, dir)

	empty, err := repo.IsEmpty()
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestCreateTestFile(t *testing.T) {
	_, fs, err := NewMemoryRepo()
	require.NoError(t, err)

	require.NoError(t, CreateTestFile(fs, "nested/dir/file.txt", "hello"))
	info, err := fs.Stat("nested/dir/file.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size())
}
