package simplegit_test

import (
	"errors"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmgilman/go/simplegit"
	"github.com/jmgilman/go/simplegit/testutil"
)

func TestInit(t *testing.T) {
	repo, _, err := testutil.NewMemoryRepo()
	require.NoError(t, err)
	defer func() { _ = repo.Close() }()

	path, err := repo.Path()
	require.NoError(t, err)
	assert.Equal(t, "/.git/", path)

	workdir, ok, err := repo.Workdir()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/", workdir)

	bare, err := repo.IsBare()
	require.NoError(t, err)
	assert.False(t, bare)

	empty, err := repo.IsEmpty()
	require.NoError(t, err)
	assert.True(t, empty)

	_, err = repo.Head()
	require.Error(t, err)
	assert.True(t, simplegit.IsNotFound(err))
}

func TestInitBare(t *testing.T) {
	repo, err := simplegit.InitBare("/srv/site.git", simplegit.WithFilesystem(memfs.New()))
	require.NoError(t, err)
	defer func() { _ = repo.Close() }()

	path, err := repo.Path()
	require.NoError(t, err)
	assert.Equal(t, "/srv/site.git/", path)

	_, ok, err := repo.Workdir()
	require.NoError(t, err)
	assert.False(t, ok)

	bare, err := repo.IsBare()
	require.NoError(t, err)
	assert.True(t, bare)
}

func TestOpen(t *testing.T) {
	fs := memfs.New()
	repo, err := simplegit.Init("/work", simplegit.WithFilesystem(fs))
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	t.Run("working tree", func(t *testing.T) {
		repo, err := simplegit.Open("/work", simplegit.WithFilesystem(fs))
		require.NoError(t, err)
		defer func() { _ = repo.Close() }()

		path, err := repo.Path()
		require.NoError(t, err)
		assert.Equal(t, "/work/.git/", path)
	})

	t.Run("git directory", func(t *testing.T) {
		repo, err := simplegit.Open("/work/.git", simplegit.WithFilesystem(fs))
		require.NoError(t, err)
		defer func() { _ = repo.Close() }()

		workdir, ok, err := repo.Workdir()
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "/work/", workdir)
	})

	t.Run("bare flag drops working tree", func(t *testing.T) {
		repo, err := simplegit.OpenExt("/work", simplegit.OpenNoSearch|simplegit.OpenBare, nil, simplegit.WithFilesystem(fs))
		require.NoError(t, err)
		defer func() { _ = repo.Close() }()

		bare, err := repo.IsBare()
		require.NoError(t, err)
		assert.True(t, bare)
	})

	t.Run("does not search parents", func(t *testing.T) {
		_, err := simplegit.Open("/work/src/pkg", simplegit.WithFilesystem(fs))
		require.Error(t, err)
		assert.True(t, simplegit.IsNotFound(err))
	})

	t.Run("missing", func(t *testing.T) {
		_, err := simplegit.Open("/nowhere", simplegit.WithFilesystem(fs))
		require.Error(t, err)
		assert.True(t, simplegit.IsNotFound(err))
	})
}

func TestDiscover(t *testing.T) {
	fs := memfs.New()
	repo, err := simplegit.Init("/a", simplegit.WithFilesystem(fs))
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	t.Run("finds parent repository", func(t *testing.T) {
		repo, err := simplegit.Discover("/a/b/c", simplegit.WithFilesystem(fs))
		require.NoError(t, err)
		defer func() { _ = repo.Close() }()

		workdir, _, err := repo.Workdir()
		require.NoError(t, err)
		assert.Equal(t, "/a/", workdir)
	})

	t.Run("stops at ceiling", func(t *testing.T) {
		_, err := simplegit.OpenExt("/a/b/c", 0, []string{"/a"}, simplegit.WithFilesystem(fs))
		require.Error(t, err)
		assert.True(t, simplegit.IsNotFound(err))
	})

	t.Run("gitlink", func(t *testing.T) {
		require.NoError(t, util.WriteFile(fs, "/linked/.git", []byte("gitdir: /a/.git\n"), 0o644))

		repo, err := simplegit.Discover("/linked/sub", simplegit.WithFilesystem(fs))
		require.NoError(t, err)
		defer func() { _ = repo.Close() }()

		path, err := repo.Path()
		require.NoError(t, err)
		assert.Equal(t, "/a/.git/", path)

		workdir, _, err := repo.Workdir()
		require.NoError(t, err)
		assert.Equal(t, "/linked/", workdir)
	})
}

func TestRepository_Close(t *testing.T) {
	repo, _, err := testutil.NewMemoryRepo()
	require.NoError(t, err)

	id, err := testutil.CommitFiles(repo, map[string]string{"README.md": testutil.TestFileContent}, nil, testutil.Epoch)
	require.NoError(t, err)
	require.NoError(t, testutil.SetHead(repo, id))

	head, err := repo.Head()
	require.NoError(t, err)
	defer func() { _ = head.Close() }()

	held, err := repo.Retain()
	require.NoError(t, err)

	require.NoError(t, repo.Close())

	t.Run("closed handle fails", func(t *testing.T) {
		_, err := repo.Path()
		require.Error(t, err)
		assert.True(t, errors.Is(err, simplegit.ErrClosed))
		assert.Nil(t, repo.Underlying())
		assert.NoError(t, repo.Close(), "close is idempotent")
	})

	t.Run("retained handle works", func(t *testing.T) {
		_, err := held.Path()
		require.NoError(t, err)
		require.NoError(t, held.Close())
	})

	t.Run("derived values keep repository open", func(t *testing.T) {
		target, ok := head.Target()
		require.True(t, ok)
		assert.Equal(t, id, target)

		commit, err := head.PeelToCommit()
		require.NoError(t, err)
		defer func() { _ = commit.Close() }()

		summary, err := commit.Summary()
		require.NoError(t, err)
		assert.Contains(t, summary, "test commit")
	})
}

func TestRepository_State(t *testing.T) {
	repo, fs, err := testutil.NewMemoryRepo()
	require.NoError(t, err)
	defer func() { _ = repo.Close() }()

	state, err := repo.State()
	require.NoError(t, err)
	assert.Equal(t, simplegit.StateClean, state)

	tests := []struct {
		name  string
		files []string
		want  simplegit.RepositoryState
	}{
		{"merge", []string{"MERGE_HEAD"}, simplegit.StateMerge},
		{"revert", []string{"REVERT_HEAD"}, simplegit.StateRevert},
		{"revert sequence", []string{"REVERT_HEAD", "sequencer/todo"}, simplegit.StateRevertSequence},
		{"cherry-pick", []string{"CHERRY_PICK_HEAD"}, simplegit.StateCherryPick},
		{"bisect", []string{"BISECT_LOG"}, simplegit.StateBisect},
		{"rebase", []string{"rebase-apply/rebasing"}, simplegit.StateRebase},
		{"interactive rebase", []string{"rebase-merge/interactive"}, simplegit.StateRebaseInteractive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, f := range tt.files {
				require.NoError(t, testutil.CreateTestFile(fs, "/.git/"+f, "x"))
			}
			defer func() {
				for _, f := range []string{"MERGE_HEAD", "REVERT_HEAD", "CHERRY_PICK_HEAD", "BISECT_LOG"} {
					_ = fs.Remove("/.git/" + f)
				}
				_ = util.RemoveAll(fs, "/.git/sequencer")
				_ = util.RemoveAll(fs, "/.git/rebase-apply")
				_ = util.RemoveAll(fs, "/.git/rebase-merge")
			}()

			state, err := repo.State()
			require.NoError(t, err)
			assert.Equal(t, tt.want, state)
		})
	}
}

func TestRepository_Message(t *testing.T) {
	repo, fs, err := testutil.NewMemoryRepo()
	require.NoError(t, err)
	defer func() { _ = repo.Close() }()

	_, err = repo.Message()
	require.Error(t, err)
	assert.True(t, simplegit.IsNotFound(err))

	require.NoError(t, testutil.CreateTestFile(fs, "/.git/MERGE_MSG", "Merge branch 'topic'\n"))

	msg, err := repo.Message()
	require.NoError(t, err)
	assert.Equal(t, "Merge branch 'topic'\n", msg)

	require.NoError(t, repo.RemoveMessage())
	require.NoError(t, repo.RemoveMessage())

	_, err = repo.Message()
	assert.True(t, simplegit.IsNotFound(err))
}

func TestRepository_Namespace(t *testing.T) {
	repo, _, err := testutil.NewMemoryRepo()
	require.NoError(t, err)
	defer func() { _ = repo.Close() }()

	_, ok := repo.Namespace()
	assert.False(t, ok)

	require.NoError(t, repo.SetNamespace("tenant"))
	ns, ok := repo.Namespace()
	assert.True(t, ok)
	assert.Equal(t, "tenant", ns)

	assert.Error(t, repo.SetNamespace("bad name"))

	require.NoError(t, repo.RemoveNamespace())
	_, ok = repo.Namespace()
	assert.False(t, ok)
}

func TestRepository_SetWorkdir(t *testing.T) {
	repo, fs, err := testutil.NewMemoryRepo()
	require.NoError(t, err)
	defer func() { _ = repo.Close() }()

	require.NoError(t, fs.MkdirAll("/elsewhere", 0o755))
	require.NoError(t, repo.SetWorkdir("/elsewhere", true))

	workdir, ok, err := repo.Workdir()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/elsewhere/", workdir)

	link, err := util.ReadFile(fs, "/elsewhere/.git")
	require.NoError(t, err)
	assert.Equal(t, "gitdir: /.git\n", string(link))
}

func TestRepository_IsEmpty(t *testing.T) {
	repo := testutil.NewDiskRepo(t)

	empty, err := repo.IsEmpty()
	require.NoError(t, err)
	assert.True(t, empty)

	id, err := testutil.CommitFiles(repo, map[string]string{"main.go": testutil.TestGoFileContent}, nil, testutil.Epoch)
	require.NoError(t, err)
	require.NoError(t, testutil.SetHead(repo, id))

	empty, err = repo.IsEmpty()
	require.NoError(t, err)
	assert.False(t, empty)

	shallow, err := repo.IsShallow()
	require.NoError(t, err)
	assert.False(t, shallow)

	worktree, err := repo.IsWorktree()
	require.NoError(t, err)
	assert.False(t, worktree)
}
