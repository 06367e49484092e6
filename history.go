package simplegit

import (
	"context"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/jmgilman/go/simplegit/internal/task"
)

// Task is the pending result of an asynchronous query.
type Task[T any] = task.Task[T]

// FileLatestModifiedDate returns the committer time, in milliseconds since
// the Unix epoch, of the first commit reachable from HEAD that touches path.
//
// Commits are visited newest first by committer time. A commit with one
// parent matches when its diff against that parent includes path, and a root
// commit matches when path exists in its tree. Merge commits never match, so
// a change made by a merge reports the newest modifying commit behind it.
// A not-found error is returned when no commit matches.
func (r *Repository) FileLatestModifiedDate(path string) (int64, error) {
	return r.fileLatestModifiedDate(context.Background(), path)
}

// FileLatestModifiedDateAsync runs FileLatestModifiedDate on the shared task
// pool. The repository stays open until the task settles, even if r is
// closed first.
//
// Example:
//
//	t := repo.FileLatestModifiedDateAsync(ctx, "README.md")
//	ms, err := t.Wait(ctx)
func (r *Repository) FileLatestModifiedDateAsync(ctx context.Context, path string) *Task[int64] {
	return r.fileLatestModifiedDateAsync(ctx, task.Default(), path)
}

func (r *Repository) fileLatestModifiedDateAsync(ctx context.Context, pool *task.Pool, path string) *Task[int64] {
	held, err := r.Retain()
	if err != nil {
		return task.Run(ctx, pool, "file-latest-modified", func(context.Context) (int64, error) {
			return 0, err
		}, nil)
	}

	return task.Run(ctx, pool, "file-latest-modified", func(ctx context.Context) (int64, error) {
		return held.fileLatestModifiedDate(ctx, path)
	}, func() { _ = held.Close() })
}

func (r *Repository) fileLatestModifiedDate(ctx context.Context, path string) (int64, error) {
	spec, err := compilePathspec([]string{path}, false)
	if err != nil {
		return 0, err
	}

	walk, err := r.RevWalk()
	if err != nil {
		return 0, err
	}
	defer func() { _ = walk.Close() }()

	if err := walk.PushHead(); err != nil {
		return 0, err
	}
	// Time and topological sorting share no bits, so this is the default
	// walk, which still pops the newest commit first.
	if err := walk.SetSorting(SortTime & SortTopological); err != nil {
		return 0, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		id, ok := walk.Next()
		if !ok {
			break
		}

		when, matched := walk.core.touches(ctx, id, path, spec)
		if matched {
			return when, nil
		}
	}
	if err := walk.Err(); err != nil {
		return 0, err
	}

	return 0, notFound("no commit found for path %q", path)
}

// touches reports whether commit id changed path. Commits that cannot be
// read are treated as not matching.
func (c *repoCore) touches(ctx context.Context, id plumbing.Hash, path string, spec pathspec) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	commit, err := object.GetCommit(c.storage, id)
	if err != nil {
		return 0, false
	}
	when := commit.Committer.When.Unix() * 1000

	tree, err := commit.Tree()
	if err != nil {
		return 0, false
	}

	switch commit.NumParents() {
	case 0:
		if _, err := tree.FindEntry(path); err != nil {
			return 0, false
		}
		return when, true
	case 1:
		parent, err := commit.Parent(0)
		if err != nil {
			return 0, false
		}
		parentTree, err := parent.Tree()
		if err != nil {
			return 0, false
		}
		deltas, err := diffTrees(ctx, tree, parentTree, spec)
		if err != nil || len(deltas) == 0 {
			return 0, false
		}
		return when, true
	default:
		return 0, false
	}
}
