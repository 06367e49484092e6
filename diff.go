package simplegit

import (
	"bytes"
	"context"
	"encoding/binary"
	"sort"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/go-git/go-git/v5/plumbing/hash"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
	"github.com/go-git/go-git/v5/utils/merkletrie/filesystem"
	mindex "github.com/go-git/go-git/v5/utils/merkletrie/index"
	"github.com/go-git/go-git/v5/utils/merkletrie/noder"

	"github.com/jmgilman/go/simplegit/internal/handle"
)

// DiffOptions restrict and shape a diff. A nil *DiffOptions is valid.
type DiffOptions struct {
	// Pathspecs limit the diff to matching paths.
	Pathspecs []string
	// IncludeUntracked reports files that only exist in the working tree.
	IncludeUntracked bool
	// IgnoreCase matches pathspecs and orders deltas case-insensitively.
	IgnoreCase bool
}

func (o *DiffOptions) orDefault() *DiffOptions {
	if o == nil {
		return &DiffOptions{}
	}
	return o
}

type diffState struct {
	mu     sync.Mutex
	deltas []DiffDelta
	icase  bool
}

// Diff is a list of file-level changes between two trees, or a tree and the
// working tree.
type Diff struct {
	ref *handle.Ref[*diffState]
}

func newDiff(ref *handle.Ref[*diffState]) *Diff {
	d := &Diff{ref: ref}
	handle.Track(d, ref)
	return d
}

// DiffTreeToTree compares two trees. A nil tree stands for the empty tree.
func (r *Repository) DiffTreeToTree(oldTree, newTree *Tree, opts *DiffOptions) (*Diff, error) {
	from, err := treeValue(oldTree)
	if err != nil {
		return nil, err
	}
	to, err := treeValue(newTree)
	if err != nil {
		return nil, err
	}

	return r.buildDiff(opts, func(ctx context.Context, _ *repoCore, spec pathspec) ([]DiffDelta, error) {
		return diffTrees(ctx, from, to, spec)
	})
}

// DiffTreeToWorkdir compares a tree directly with the working tree,
// ignoring the index.
func (r *Repository) DiffTreeToWorkdir(oldTree *Tree, opts *DiffOptions) (*Diff, error) {
	from, err := treeValue(oldTree)
	if err != nil {
		return nil, err
	}

	o := opts.orDefault()
	return r.buildDiff(opts, func(ctx context.Context, c *repoCore, spec pathspec) ([]DiffDelta, error) {
		wt, err := c.worktreeNode()
		if err != nil {
			return nil, err
		}
		return diffNodes(ctx, object.NewTreeRootNode(from), wt, spec, c.untrackedFilter(o.IncludeUntracked))
	})
}

// DiffTreeToWorkdirWithIndex compares a tree with the working tree the way
// `git diff <tree>` does: tree against index merged with index against
// working tree.
func (r *Repository) DiffTreeToWorkdirWithIndex(oldTree *Tree, opts *DiffOptions) (*Diff, error) {
	from, err := treeValue(oldTree)
	if err != nil {
		return nil, err
	}

	o := opts.orDefault()
	return r.buildDiff(opts, func(ctx context.Context, c *repoCore, spec pathspec) ([]DiffDelta, error) {
		idx, err := c.storage.Index()
		if err != nil {
			return nil, wrapError(err, "failed to read index")
		}
		wt, err := c.worktreeNode()
		if err != nil {
			return nil, err
		}

		staged, err := diffNodes(ctx, object.NewTreeRootNode(from), mindex.NewRootNode(idx), spec, nil)
		if err != nil {
			return nil, err
		}
		unstaged, err := diffNodes(ctx, mindex.NewRootNode(idx), wt, spec, c.untrackedFilter(o.IncludeUntracked))
		if err != nil {
			return nil, err
		}
		return mergeDeltas(staged, unstaged, o.IgnoreCase), nil
	})
}

func treeValue(t *Tree) (*object.Tree, error) {
	if t == nil {
		return nil, nil
	}
	return t.get()
}

func (r *Repository) buildDiff(opts *DiffOptions, build func(context.Context, *repoCore, pathspec) ([]DiffDelta, error)) (*Diff, error) {
	o := opts.orDefault()
	spec, err := compilePathspec(o.Pathspecs, o.IgnoreCase)
	if err != nil {
		return nil, err
	}

	ref, err := handle.Derive(r.ref, func(c *repoCore) (*diffState, error) {
		c.mu.RLock()
		defer c.mu.RUnlock()

		deltas, err := build(context.Background(), c, spec)
		if err != nil {
			return nil, err
		}
		sortDeltas(deltas, o.IgnoreCase)
		return &diffState{deltas: deltas, icase: o.IgnoreCase}, nil
	})
	if err != nil {
		return nil, classifyError(err)
	}
	return newDiff(ref), nil
}

func (c *repoCore) worktreeNode() (noder.Noder, error) {
	wt, err := c.repo.Worktree()
	if err != nil {
		return nil, wrapError(err, "repository has no working tree")
	}
	return filesystem.NewRootNode(wt.Filesystem, nil), nil
}

// untrackedFilter decides what happens to files only present in the working
// tree: ignored files are dropped, others become untracked deltas when
// include is set.
func (c *repoCore) untrackedFilter(include bool) func(string) (DeltaStatus, bool) {
	if !include {
		return func(string) (DeltaStatus, bool) { return DeltaUntracked, false }
	}

	var matcher gitignore.Matcher
	if wt, err := c.repo.Worktree(); err == nil {
		if patterns, err := gitignore.ReadPatterns(wt.Filesystem, nil); err == nil {
			matcher = gitignore.NewMatcher(patterns)
		}
	}

	return func(path string) (DeltaStatus, bool) {
		if matcher != nil && matcher.Match(strings.Split(path, "/"), false) {
			return DeltaIgnored, false
		}
		return DeltaUntracked, true
	}
}

func diffTrees(ctx context.Context, from, to *object.Tree, spec pathspec) ([]DiffDelta, error) {
	return diffNodes(ctx, object.NewTreeRootNode(from), object.NewTreeRootNode(to), spec, nil)
}

// diffNodes runs the merkletrie diff and converts file changes into deltas.
// insert, when set, classifies paths that only exist on the "to" side.
func diffNodes(ctx context.Context, from, to noder.Noder, spec pathspec, insert func(string) (DeltaStatus, bool)) ([]DiffDelta, error) {
	changes, err := merkletrie.DiffTreeContext(ctx, from, to, hashEqual)
	if err != nil {
		return nil, gitError(err)
	}

	deltas := make([]DiffDelta, 0, len(changes))
	for _, ch := range changes {
		action, err := ch.Action()
		if err != nil {
			return nil, gitError(err)
		}

		var delta DiffDelta
		switch action {
		case merkletrie.Insert:
			if ch.To.IsDir() || !spec.match(ch.To.String()) {
				continue
			}
			delta = DiffDelta{status: DeltaAdded, oldFile: DiffFile{path: ch.To.String()}, newFile: fileOf(ch.To)}
			if insert != nil {
				status, keep := insert(delta.newFile.path)
				if !keep {
					continue
				}
				delta.status = status
			}
		case merkletrie.Delete:
			if ch.From.IsDir() || !spec.match(ch.From.String()) {
				continue
			}
			delta = DiffDelta{status: DeltaDeleted, oldFile: fileOf(ch.From), newFile: DiffFile{path: ch.From.String()}}
		case merkletrie.Modify:
			if ch.To.IsDir() || !spec.match(ch.To.String()) {
				continue
			}
			delta = DiffDelta{status: DeltaModified, oldFile: fileOf(ch.From), newFile: fileOf(ch.To)}
			if isTypechange(delta.oldFile.mode, delta.newFile.mode) {
				delta.status = DeltaTypechange
			}
		}
		deltas = append(deltas, delta)
	}
	return deltas, nil
}

var emptyNoderHash = make([]byte, hash.Size+4)

// hashEqual treats an all-zero hash as unknown, never equal.
func hashEqual(a, b noder.Hasher) bool {
	ha, hb := a.Hash(), b.Hash()
	if bytes.Equal(ha, emptyNoderHash) || bytes.Equal(hb, emptyNoderHash) {
		return false
	}
	return bytes.Equal(ha, hb)
}

// fileOf decodes a noder hash, which is the object id followed by the
// little-endian file mode.
func fileOf(p noder.Path) DiffFile {
	f := DiffFile{path: p.String(), exists: true}
	h := p.Hash()
	if len(h) >= hash.Size {
		copy(f.id[:], h[:hash.Size])
	}
	if len(h) >= hash.Size+4 {
		f.mode = filemode.FileMode(binary.LittleEndian.Uint32(h[hash.Size:]))
	}
	return f
}

func isTypechange(a, b filemode.FileMode) bool {
	kind := func(m filemode.FileMode) int {
		switch m {
		case filemode.Symlink:
			return 1
		case filemode.Submodule:
			return 2
		case filemode.Dir:
			return 3
		default:
			return 0
		}
	}
	return kind(a) != kind(b)
}

func sortDeltas(deltas []DiffDelta, icase bool) {
	key := func(d DiffDelta) string {
		p := d.path()
		if icase {
			return strings.ToLower(p)
		}
		return p
	}
	sort.SliceStable(deltas, func(i, j int) bool { return key(deltas[i]) < key(deltas[j]) })
}

// mergeDeltas folds from onto onto. For a path present in both, the result
// describes onto's old side and from's new side, the way git combines a
// staged and an unstaged diff.
func mergeDeltas(onto, from []DiffDelta, icase bool) []DiffDelta {
	byPath := make(map[string]int, len(onto))
	out := make([]DiffDelta, 0, len(onto)+len(from))
	for _, d := range onto {
		byPath[d.path()] = len(out)
		out = append(out, d)
	}

	for _, b := range from {
		i, ok := byPath[b.path()]
		if !ok {
			out = append(out, b)
			continue
		}
		out[i] = mergeDelta(out[i], b)
	}

	kept := out[:0]
	for _, d := range out {
		if d.status != DeltaUnmodified {
			kept = append(kept, d)
		}
	}
	sortDeltas(kept, icase)
	return kept
}

func mergeDelta(a, b DiffDelta) DiffDelta {
	if b.status == DeltaConflicted {
		return b
	}
	if a.status == DeltaConflicted {
		return a
	}
	if b.status == DeltaUnmodified || a.status == DeltaDeleted {
		return a
	}

	out := b
	switch a.status {
	case DeltaUnmodified, DeltaUntracked, DeltaUnreadable:
		return out
	}

	if out.status == DeltaDeleted {
		if a.status == DeltaAdded {
			out.status = DeltaUnmodified
		}
	} else {
		out.status = a.status
	}

	out.oldFile.id = a.oldFile.id
	out.oldFile.mode = a.oldFile.mode
	out.oldFile.exists = a.oldFile.exists
	return out
}

func (d *Diff) state() (*diffState, error) {
	s, err := d.ref.Get()
	if err != nil {
		return nil, wrapError(err, "diff is not available")
	}
	return s, nil
}

// Close drops the hold on the diff and its repository.
func (d *Diff) Close() error {
	return d.ref.Close()
}

// Merge folds other into d, as when combining a staged and an unstaged
// diff.
func (d *Diff) Merge(other *Diff) error {
	onto, err := d.state()
	if err != nil {
		return err
	}
	from, err := other.state()
	if err != nil {
		return err
	}
	if onto == from {
		return nil
	}

	from.mu.Lock()
	incoming := append([]DiffDelta(nil), from.deltas...)
	from.mu.Unlock()

	onto.mu.Lock()
	defer onto.mu.Unlock()
	onto.deltas = mergeDeltas(onto.deltas, incoming, onto.icase)
	return nil
}

// Len returns the number of deltas.
func (d *Diff) Len() (int, error) {
	s, err := d.state()
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.deltas), nil
}

// IsSortedIcase reports whether deltas are ordered case-insensitively.
func (d *Diff) IsSortedIcase() (bool, error) {
	s, err := d.state()
	if err != nil {
		return false, err
	}
	return s.icase, nil
}

// Stats counts changed files by status.
func (d *Diff) Stats() (map[DeltaStatus]int, error) {
	s, err := d.state()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make(map[DeltaStatus]int)
	for _, delta := range s.deltas {
		stats[delta.status]++
	}
	return stats, nil
}

// Deltas returns a single-pass cursor over a snapshot of the deltas.
func (d *Diff) Deltas() (*Deltas, error) {
	ref, err := handle.Derive(d.ref, func(s *diffState) ([]DiffDelta, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return append([]DiffDelta(nil), s.deltas...), nil
	})
	if err != nil {
		return nil, classifyError(err)
	}
	return &Deltas{ref: ref}, nil
}
