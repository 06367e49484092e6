package simplegit

import (
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/jmgilman/go/simplegit/internal/handle"
)

// Tree is a directory listing in the object database. Its parent may be a
// repository, a reference, a commit or an object.
type Tree struct {
	ref    *handle.Ref[*object.Tree]
	core   *repoCore
	parent ParentKind
}

func newTree(ref *handle.Ref[*object.Tree], core *repoCore, parent ParentKind) *Tree {
	t := &Tree{ref: ref, core: core, parent: parent}
	handle.Track(t, ref)
	return t
}

func (t *Tree) get() (*object.Tree, error) {
	tree, err := t.ref.Get()
	if err != nil {
		return nil, wrapError(err, "tree is not available")
	}
	return tree, nil
}

// Close drops the hold on the tree and everything it was derived from.
func (t *Tree) Close() error {
	return t.ref.Close()
}

// ParentKind reports what the tree was derived from.
func (t *Tree) ParentKind() ParentKind {
	return t.parent
}

// ID returns the tree id.
func (t *Tree) ID() (plumbing.Hash, error) {
	tree, err := t.get()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return tree.Hash, nil
}

// Len returns the number of entries in the tree.
func (t *Tree) Len() (int, error) {
	tree, err := t.get()
	if err != nil {
		return 0, err
	}
	return len(tree.Entries), nil
}

// Iter returns a single-pass cursor over the tree's entries.
func (t *Tree) Iter() (*TreeIter, error) {
	ref, err := handle.Derive(t.ref, func(tree *object.Tree) (*object.Tree, error) {
		return tree, nil
	})
	if err != nil {
		return nil, classifyError(err)
	}
	return &TreeIter{ref: ref}, nil
}

// Get returns the entry at index i.
func (t *Tree) Get(i int) (*TreeEntry, error) {
	return t.entry(func(tree *object.Tree) (object.TreeEntry, error) {
		if i < 0 || i >= len(tree.Entries) {
			return object.TreeEntry{}, notFound("tree %s has no entry at index %d", tree.Hash, i)
		}
		return tree.Entries[i], nil
	})
}

// GetName returns the entry with the given file name.
func (t *Tree) GetName(name string) (*TreeEntry, error) {
	return t.entry(func(tree *object.Tree) (object.TreeEntry, error) {
		for _, e := range tree.Entries {
			if e.Name == name {
				return e, nil
			}
		}
		return object.TreeEntry{}, notFound("tree %s has no entry named %q", tree.Hash, name)
	})
}

// GetID returns the first entry pointing at id.
func (t *Tree) GetID(id plumbing.Hash) (*TreeEntry, error) {
	return t.entry(func(tree *object.Tree) (object.TreeEntry, error) {
		for _, e := range tree.Entries {
			if e.Hash == id {
				return e, nil
			}
		}
		return object.TreeEntry{}, notFound("tree %s has no entry with id %s", tree.Hash, id)
	})
}

// GetPath returns the entry at a slash-separated path below the tree.
func (t *Tree) GetPath(path string) (*TreeEntry, error) {
	return t.entry(func(tree *object.Tree) (object.TreeEntry, error) {
		t.core.mu.RLock()
		defer t.core.mu.RUnlock()

		e, err := tree.FindEntry(path)
		if err != nil {
			return object.TreeEntry{}, wrapErrorf(err, "failed to find path %s", path)
		}
		return *e, nil
	})
}

func (t *Tree) entry(fn func(*object.Tree) (object.TreeEntry, error)) (*TreeEntry, error) {
	ref, err := handle.Derive(t.ref, fn)
	if err != nil {
		return nil, classifyError(err)
	}
	return newTreeEntry(ref, t.core, ParentTree), nil
}

// TreeEntry is one entry of a tree. Entries looked up by index, name or
// path keep their tree alive; entries produced by iteration are copies.
type TreeEntry struct {
	ref    *handle.Ref[object.TreeEntry]
	core   *repoCore
	parent ParentKind
}

func newTreeEntry(ref *handle.Ref[object.TreeEntry], core *repoCore, parent ParentKind) *TreeEntry {
	e := &TreeEntry{ref: ref, core: core, parent: parent}
	handle.Track(e, ref)
	return e
}

func (e *TreeEntry) get() (object.TreeEntry, error) {
	entry, err := e.ref.Get()
	if err != nil {
		return object.TreeEntry{}, wrapError(err, "tree entry is not available")
	}
	return entry, nil
}

// Close drops the hold on the entry.
func (e *TreeEntry) Close() error {
	return e.ref.Close()
}

// ParentKind reports ParentTree for looked-up entries and ParentOwned for
// iterated ones.
func (e *TreeEntry) ParentKind() ParentKind {
	return e.parent
}

// ID returns the id of the object the entry points at.
func (e *TreeEntry) ID() (plumbing.Hash, error) {
	entry, err := e.get()
	return entry.Hash, err
}

// Name returns the file name of the entry.
func (e *TreeEntry) Name() (string, error) {
	entry, err := e.get()
	return entry.Name, err
}

// Filemode returns the raw file mode.
func (e *TreeEntry) Filemode() (filemode.FileMode, error) {
	entry, err := e.get()
	return entry.Mode, err
}

// Kind returns the kind of object the entry points at, derived from its
// mode.
func (e *TreeEntry) Kind() (ObjectKind, error) {
	entry, err := e.get()
	if err != nil {
		return ObjectAny, err
	}

	switch entry.Mode {
	case filemode.Dir:
		return ObjectTree, nil
	case filemode.Submodule:
		return ObjectCommit, nil
	case filemode.Regular, filemode.Executable, filemode.Deprecated, filemode.Symlink:
		return ObjectBlob, nil
	default:
		return ObjectAny, nil
	}
}

// ToObject loads the object the entry points at from repo.
func (e *TreeEntry) ToObject(repo *Repository) (*GitObject, error) {
	entry, err := e.get()
	if err != nil {
		return nil, err
	}

	core, err := repo.load()
	if err != nil {
		return nil, err
	}

	ref, err := handle.Derive(repo.ref, func(c *repoCore) (object.Object, error) {
		c.mu.RLock()
		defer c.mu.RUnlock()

		obj, err := object.GetObject(c.storage, entry.Hash)
		if err != nil {
			return nil, wrapErrorf(err, "failed to load %s", entry.Name)
		}
		return obj, nil
	})
	if err != nil {
		return nil, classifyError(err)
	}
	return newObject(ref, core, ParentRepository), nil
}

// TreeIter is a single-pass cursor over tree entries. Once exhausted it
// keeps returning false and releases its hold on the tree.
type TreeIter struct {
	ref  *handle.Ref[*object.Tree]
	next int
	err  error
}

// Next returns the next entry as an owned copy.
func (it *TreeIter) Next() (*TreeEntry, bool) {
	if it.ref.Closed() {
		return nil, false
	}

	tree, err := it.ref.Get()
	if err != nil {
		it.err = wrapError(err, "tree is not available")
		_ = it.Close()
		return nil, false
	}
	if it.next >= len(tree.Entries) {
		_ = it.Close()
		return nil, false
	}

	entry := tree.Entries[it.next]
	it.next++
	return newTreeEntry(handle.Own[object.TreeEntry](handle.NewRoot(entry, nil)), nil, ParentOwned), true
}

// Err returns the error that ended iteration, if any.
func (it *TreeIter) Err() error {
	return it.err
}

// Close releases the cursor's hold on the tree.
func (it *TreeIter) Close() error {
	return it.ref.Close()
}
