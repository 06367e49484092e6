// Package testutil provides helpers for building repositories in tests.
// Histories are written straight into the object store, so tests can create
// any commit graph, merges included, without a working tree or the git
// binary.
package testutil

import (
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/stretchr/testify/require"

	"github.com/jmgilman/go/simplegit"
)

// NewMemoryRepo creates a repository with a working tree at "/" on a memory
// filesystem. The returned filesystem is the one the repository lives on.
//
// Example:
//
//	repo, fs, err := testutil.NewMemoryRepo()
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer repo.Close()
func NewMemoryRepo() (*simplegit.Repository, billy.Filesystem, error) {
	fs := memfs.New()

	repo, err := simplegit.Init("/", simplegit.WithFilesystem(fs))
	if err != nil {
		//nolint:wrapcheck // Test utility - errors from simplegit are already wrapped
		return nil, nil, err
	}
	return repo, fs, nil
}

// NewDiskRepo creates a repository in a temporary directory that is removed
// when the test ends. The repository is closed at the same time.
func NewDiskRepo(t testing.TB) *simplegit.Repository {
	t.Helper()

	repo, err := simplegit.Init(t.TempDir(), simplegit.WithoutGlobalConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

// CreateTestFile writes content to path in fs, creating parent directories.
func CreateTestFile(fs billy.Filesystem, path, content string) error {
	//nolint:wrapcheck // Test utility - simple file operation error
	return util.WriteFile(fs, path, []byte(content), 0o644)
}

// CommitFiles writes files as a complete tree and commits it with the given
// parents at when. Paths use forward slashes. No reference is updated; use
// SetHead to move HEAD.
//
// Example:
//
//	root, err := testutil.CommitFiles(repo, map[string]string{"README.md": "hi"}, nil, testutil.Epoch)
//	next, err := testutil.CommitFiles(repo, map[string]string{"README.md": "hello"},
//	    []plumbing.Hash{root}, testutil.Epoch.Add(time.Hour))
func CommitFiles(repo *simplegit.Repository, files map[string]string, parents []plumbing.Hash, when time.Time) (plumbing.Hash, error) {
	s := repo.Underlying().Storer

	root := &treeNode{}
	for path, content := range files {
		id, err := writeBlob(s, content)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		root.add(strings.Split(path, "/"), id)
	}

	treeID, err := root.write(s)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	sig := object.Signature{Name: TestAuthor, Email: TestEmail, When: when}
	commit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      "test commit at " + when.UTC().Format(time.RFC3339) + "\n",
		TreeHash:     treeID,
		ParentHashes: parents,
	}
	return writeObject(s, commit.Encode)
}

// SetHead moves the branch HEAD points at, or HEAD itself when detached,
// to id.
func SetHead(repo *simplegit.Repository, id plumbing.Hash) error {
	s := repo.Underlying().Storer

	head, err := s.Reference(plumbing.HEAD)
	if err != nil {
		//nolint:wrapcheck // Test utility - errors from go-git are transparent
		return err
	}

	name := plumbing.HEAD
	if head.Type() == plumbing.SymbolicReference {
		name = head.Target()
	}
	//nolint:wrapcheck // Test utility - errors from go-git are transparent
	return s.SetReference(plumbing.NewHashReference(name, id))
}

type treeNode struct {
	files map[string]plumbing.Hash
	dirs  map[string]*treeNode
}

func (n *treeNode) add(parts []string, id plumbing.Hash) {
	if len(parts) == 1 {
		if n.files == nil {
			n.files = make(map[string]plumbing.Hash)
		}
		n.files[parts[0]] = id
		return
	}

	if n.dirs == nil {
		n.dirs = make(map[string]*treeNode)
	}
	child, ok := n.dirs[parts[0]]
	if !ok {
		child = &treeNode{}
		n.dirs[parts[0]] = child
	}
	child.add(parts[1:], id)
}

func (n *treeNode) write(s storer.EncodedObjectStorer) (plumbing.Hash, error) {
	var entries []object.TreeEntry
	for name, id := range n.files {
		entries = append(entries, object.TreeEntry{Name: name, Mode: filemode.Regular, Hash: id})
	}
	for name, child := range n.dirs {
		id, err := child.write(s)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		entries = append(entries, object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: id})
	}

	// Git orders directories as if their names ended in a slash.
	key := func(e object.TreeEntry) string {
		if e.Mode == filemode.Dir {
			return e.Name + "/"
		}
		return e.Name
	}
	sort.Slice(entries, func(i, j int) bool { return key(entries[i]) < key(entries[j]) })

	tree := &object.Tree{Entries: entries}
	return writeObject(s, tree.Encode)
}

func writeBlob(s storer.EncodedObjectStorer, content string) (plumbing.Hash, error) {
	return writeObject(s, func(obj plumbing.EncodedObject) error {
		obj.SetType(plumbing.BlobObject)
		w, err := obj.Writer()
		if err != nil {
			return err
		}
		if _, err := io.WriteString(w, content); err != nil {
			_ = w.Close()
			return err
		}
		return w.Close()
	})
}

func writeObject(s storer.EncodedObjectStorer, encode func(plumbing.EncodedObject) error) (plumbing.Hash, error) {
	obj := s.NewEncodedObject()
	if err := encode(obj); err != nil {
		//nolint:wrapcheck // Test utility - errors from go-git are transparent
		return plumbing.ZeroHash, err
	}
	//nolint:wrapcheck // Test utility - errors from go-git are transparent
	return s.SetEncodedObject(obj)
}
