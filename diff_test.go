package simplegit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmgilman/go/simplegit"
	"github.com/jmgilman/go/simplegit/testutil"
)

func commitTree(t *testing.T, repo *simplegit.Repository, files map[string]string) *simplegit.Tree {
	t.Helper()

	id, err := testutil.CommitFiles(repo, files, nil, testutil.Epoch)
	require.NoError(t, err)
	commit, err := repo.FindCommit(id.String())
	require.NoError(t, err)
	defer func() { _ = commit.Close() }()

	tree, err := commit.Tree()
	require.NoError(t, err)
	t.Cleanup(func() { _ = tree.Close() })
	return tree
}

type change struct {
	path   string
	status simplegit.DeltaStatus
}

func changes(t *testing.T, diff *simplegit.Diff) []change {
	t.Helper()

	deltas, err := diff.Deltas()
	require.NoError(t, err)

	var out []change
	for {
		d, ok := deltas.Next()
		if !ok {
			break
		}
		path := d.NewFile().Path()
		if !d.NewFile().Exists() {
			path = d.OldFile().Path()
		}
		out = append(out, change{path, d.Status()})
	}
	require.NoError(t, deltas.Err())
	return out
}

func TestDiffTreeToTree(t *testing.T) {
	repo, _, err := testutil.NewMemoryRepo()
	require.NoError(t, err)
	defer func() { _ = repo.Close() }()

	oldTree := commitTree(t, repo, map[string]string{"a": "1", "b": "2", "dir/c": "3"})
	newTree := commitTree(t, repo, map[string]string{"a": "1 changed", "dir/c": "3", "d": "4"})

	t.Run("all changes", func(t *testing.T) {
		diff, err := repo.DiffTreeToTree(oldTree, newTree, nil)
		require.NoError(t, err)
		defer func() { _ = diff.Close() }()

		assert.Equal(t, []change{
			{"a", simplegit.DeltaModified},
			{"b", simplegit.DeltaDeleted},
			{"d", simplegit.DeltaAdded},
		}, changes(t, diff))

		n, err := diff.Len()
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		stats, err := diff.Stats()
		require.NoError(t, err)
		assert.Equal(t, map[simplegit.DeltaStatus]int{
			simplegit.DeltaModified: 1,
			simplegit.DeltaDeleted:  1,
			simplegit.DeltaAdded:    1,
		}, stats)
	})

	t.Run("delta files", func(t *testing.T) {
		diff, err := repo.DiffTreeToTree(oldTree, newTree, &simplegit.DiffOptions{Pathspecs: []string{"a"}})
		require.NoError(t, err)
		defer func() { _ = diff.Close() }()

		deltas, err := diff.Deltas()
		require.NoError(t, err)
		d, ok := deltas.Next()
		require.True(t, ok)

		assert.Equal(t, 2, d.NumFiles())
		assert.True(t, d.OldFile().Exists())
		assert.NotEqual(t, d.OldFile().ID(), d.NewFile().ID())
		assert.Equal(t, "modified", d.Status().String())

		_, ok = deltas.Next()
		assert.False(t, ok)
	})

	t.Run("empty old tree", func(t *testing.T) {
		diff, err := repo.DiffTreeToTree(nil, oldTree, nil)
		require.NoError(t, err)
		defer func() { _ = diff.Close() }()

		assert.Equal(t, []change{
			{"a", simplegit.DeltaAdded},
			{"b", simplegit.DeltaAdded},
			{"dir/c", simplegit.DeltaAdded},
		}, changes(t, diff))
	})

	t.Run("pathspec directory", func(t *testing.T) {
		diff, err := repo.DiffTreeToTree(nil, oldTree, &simplegit.DiffOptions{Pathspecs: []string{"dir"}})
		require.NoError(t, err)
		defer func() { _ = diff.Close() }()

		assert.Equal(t, []change{{"dir/c", simplegit.DeltaAdded}}, changes(t, diff))
	})

	t.Run("identical trees", func(t *testing.T) {
		diff, err := repo.DiffTreeToTree(oldTree, oldTree, nil)
		require.NoError(t, err)
		defer func() { _ = diff.Close() }()

		n, err := diff.Len()
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestDiff_IgnoreCase(t *testing.T) {
	repo, _, err := testutil.NewMemoryRepo()
	require.NoError(t, err)
	defer func() { _ = repo.Close() }()

	tree := commitTree(t, repo, map[string]string{"B.txt": "b", "a.txt": "a", "C.md": "c"})

	diff, err := repo.DiffTreeToTree(nil, tree, &simplegit.DiffOptions{IgnoreCase: true, Pathspecs: []string{"*.TXT"}})
	require.NoError(t, err)
	defer func() { _ = diff.Close() }()

	icase, err := diff.IsSortedIcase()
	require.NoError(t, err)
	assert.True(t, icase)

	assert.Equal(t, []change{
		{"a.txt", simplegit.DeltaAdded},
		{"B.txt", simplegit.DeltaAdded},
	}, changes(t, diff))
}

func TestDiffTreeToWorkdir(t *testing.T) {
	repo, fs, err := testutil.NewMemoryRepo()
	require.NoError(t, err)
	defer func() { _ = repo.Close() }()

	tree := commitTree(t, repo, map[string]string{"a": "1", "b": "2"})

	require.NoError(t, testutil.CreateTestFile(fs, "/a", "1 changed"))
	require.NoError(t, testutil.CreateTestFile(fs, "/b", "2"))
	require.NoError(t, testutil.CreateTestFile(fs, "/new", "n"))
	require.NoError(t, testutil.CreateTestFile(fs, "/build.log", "ignored"))
	require.NoError(t, testutil.CreateTestFile(fs, "/.gitignore", "*.log\n"))

	t.Run("untracked excluded", func(t *testing.T) {
		diff, err := repo.DiffTreeToWorkdir(tree, nil)
		require.NoError(t, err)
		defer func() { _ = diff.Close() }()

		assert.Equal(t, []change{{"a", simplegit.DeltaModified}}, changes(t, diff))
	})

	t.Run("untracked included", func(t *testing.T) {
		diff, err := repo.DiffTreeToWorkdir(tree, &simplegit.DiffOptions{IncludeUntracked: true})
		require.NoError(t, err)
		defer func() { _ = diff.Close() }()

		assert.Equal(t, []change{
			{".gitignore", simplegit.DeltaUntracked},
			{"a", simplegit.DeltaModified},
			{"new", simplegit.DeltaUntracked},
		}, changes(t, diff))
	})

	t.Run("with index", func(t *testing.T) {
		wt, err := repo.Underlying().Worktree()
		require.NoError(t, err)
		_, err = wt.Add("a")
		require.NoError(t, err)
		_, err = wt.Add("b")
		require.NoError(t, err)

		require.NoError(t, testutil.CreateTestFile(fs, "/b", "2 changed after staging"))

		diff, err := repo.DiffTreeToWorkdirWithIndex(tree, nil)
		require.NoError(t, err)
		defer func() { _ = diff.Close() }()

		assert.Equal(t, []change{
			{"a", simplegit.DeltaModified},
			{"b", simplegit.DeltaModified},
		}, changes(t, diff))
	})
}

func TestDiff_Merge(t *testing.T) {
	repo, _, err := testutil.NewMemoryRepo()
	require.NoError(t, err)
	defer func() { _ = repo.Close() }()

	base := commitTree(t, repo, map[string]string{"a": "1", "b": "2"})
	mid := commitTree(t, repo, map[string]string{"a": "1", "b": "2 changed", "c": "3"})
	tip := commitTree(t, repo, map[string]string{"a": "1 changed", "b": "2 changed"})

	staged, err := repo.DiffTreeToTree(base, mid, nil)
	require.NoError(t, err)
	defer func() { _ = staged.Close() }()

	unstaged, err := repo.DiffTreeToTree(mid, tip, nil)
	require.NoError(t, err)
	defer func() { _ = unstaged.Close() }()

	require.NoError(t, staged.Merge(unstaged))
	require.NoError(t, staged.Merge(staged))

	assert.Equal(t, []change{
		{"a", simplegit.DeltaModified},
		{"b", simplegit.DeltaModified},
	}, changes(t, staged), "an add undone by a delete drops out")

	t.Run("closed diff", func(t *testing.T) {
		require.NoError(t, unstaged.Close())
		assert.Error(t, staged.Merge(unstaged))
	})
}
