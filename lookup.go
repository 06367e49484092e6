package simplegit

import (
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/hash"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/jmgilman/go/simplegit/internal/handle"
)

const minPrefixLen = 4

// resolveID turns a full or abbreviated hex id into a hash. Abbreviations
// are resolved by scanning the object database.
func (c *repoCore) resolveID(id string) (plumbing.Hash, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if len(id) < minPrefixLen || len(id) > hash.HexSize || !isHex(id) {
		return plumbing.ZeroHash, invalidInput("invalid object id %q", id)
	}
	if len(id) == hash.HexSize {
		return plumbing.NewHash(id), nil
	}

	iter, err := c.storage.IterEncodedObjects(plumbing.AnyObject)
	if err != nil {
		return plumbing.ZeroHash, gitError(err)
	}
	defer iter.Close()

	var match plumbing.Hash
	matches := 0
	err = iter.ForEach(func(o plumbing.EncodedObject) error {
		h := o.Hash()
		if !strings.HasPrefix(h.String(), id) || (matches > 0 && h == match) {
			return nil
		}
		match = h
		matches++
		if matches > 1 {
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		return plumbing.ZeroHash, gitError(err)
	}

	switch matches {
	case 0:
		return plumbing.ZeroHash, notFound("object %s not found", id)
	case 1:
		return match, nil
	default:
		return plumbing.ZeroHash, invalidInput("object id prefix %s is ambiguous", id)
	}
}

func isHex(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

func findObject[T any](r *Repository, id, what string, get func(storer.EncodedObjectStorer, plumbing.Hash) (T, error)) (*handle.Ref[T], *repoCore, error) {
	core, err := r.load()
	if err != nil {
		return nil, nil, err
	}

	ref, err := handle.Derive(r.ref, func(c *repoCore) (T, error) {
		c.mu.RLock()
		defer c.mu.RUnlock()

		var zero T
		h, err := c.resolveID(id)
		if err != nil {
			return zero, wrapErrorf(err, "failed to find %s %s", what, id)
		}
		obj, err := get(c.storage, h)
		if err != nil {
			return zero, wrapErrorf(err, "failed to find %s %s", what, id)
		}
		return obj, nil
	})
	if err != nil {
		return nil, nil, classifyError(err)
	}
	return ref, core, nil
}

// FindCommit looks up a commit by full or abbreviated id.
func (r *Repository) FindCommit(id string) (*Commit, error) {
	ref, core, err := findObject(r, id, "commit", object.GetCommit)
	if err != nil {
		return nil, err
	}
	return newCommit(ref, core, ParentRepository), nil
}

// FindTree looks up a tree by full or abbreviated id.
func (r *Repository) FindTree(id string) (*Tree, error) {
	ref, core, err := findObject(r, id, "tree", object.GetTree)
	if err != nil {
		return nil, err
	}
	return newTree(ref, core, ParentRepository), nil
}

// FindTag looks up an annotated tag by full or abbreviated id.
func (r *Repository) FindTag(id string) (*Tag, error) {
	ref, core, err := findObject(r, id, "tag", object.GetTag)
	if err != nil {
		return nil, err
	}
	return newTag(ref, core, ParentRepository), nil
}

// FindBlob looks up a blob by full or abbreviated id.
func (r *Repository) FindBlob(id string) (*Blob, error) {
	ref, _, err := findObject(r, id, "blob", object.GetBlob)
	if err != nil {
		return nil, err
	}
	return newBlob(ref, ParentRepository), nil
}

// FindObject looks up an object of any kind by full or abbreviated id.
func (r *Repository) FindObject(id string) (*GitObject, error) {
	ref, core, err := findObject(r, id, "object", object.GetObject)
	if err != nil {
		return nil, err
	}
	return newObject(ref, core, ParentRepository), nil
}
