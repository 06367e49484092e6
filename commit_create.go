package simplegit

import (
	"errors"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	platformerrors "github.com/jmgilman/go/errors"
)

// Commit writes a new commit object and returns its id.
//
// When updateRef is not empty the reference is moved to the new commit.
// "HEAD" moves the branch HEAD points at, or HEAD itself when detached. An
// existing reference must currently point at the first parent, so a stale
// caller cannot drop commits. A nil committer reuses the author.
//
// Example:
//
//	sig, _ := simplegit.SignatureNow("Jane Doe", "jane@example.com")
//	id, err := repo.Commit("HEAD", sig, sig, "Initial commit", tree, nil)
func (r *Repository) Commit(updateRef string, author, committer *Signature, message string, tree *Tree, parents []*Commit) (plumbing.Hash, error) {
	if author == nil || tree == nil {
		return plumbing.ZeroHash, invalidInput("commit needs an author and a tree")
	}
	if committer == nil {
		committer = author
	}

	core, err := r.load()
	if err != nil {
		return plumbing.ZeroHash, err
	}

	authorSig, err := author.get()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	committerSig, err := committer.get()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	treeObj, err := tree.get()
	if err != nil {
		return plumbing.ZeroHash, err
	}

	parentIDs := make([]plumbing.Hash, 0, len(parents))
	for _, p := range parents {
		id, err := p.ID()
		if err != nil {
			return plumbing.ZeroHash, err
		}
		parentIDs = append(parentIDs, id)
	}

	commit := &object.Commit{
		Author:       authorSig,
		Committer:    committerSig,
		Message:      message,
		TreeHash:     treeObj.Hash,
		ParentHashes: parentIDs,
	}

	core.mu.RLock()
	defer core.mu.RUnlock()

	obj := core.storage.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return plumbing.ZeroHash, wrapError(err, "failed to encode commit")
	}
	id, err := core.storage.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, wrapError(err, "failed to write commit")
	}

	if updateRef != "" {
		if err := core.advanceRef(plumbing.ReferenceName(updateRef), id, parentIDs); err != nil {
			return plumbing.ZeroHash, err
		}
	}

	core.logger.Debug("created commit", "id", id, "ref", updateRef)
	return id, nil
}

// advanceRef points name, or the branch it symbolically names, at id.
// Callers hold the read lock.
func (c *repoCore) advanceRef(name plumbing.ReferenceName, id plumbing.Hash, parents []plumbing.Hash) error {
	target := name
	current, err := c.storage.Reference(name)
	for err == nil && current.Type() == plumbing.SymbolicReference {
		target = current.Target()
		current, err = c.storage.Reference(target)
	}
	if err != nil && !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return wrapErrorf(err, "failed to read reference %s", target)
	}

	if err == nil {
		if len(parents) == 0 || current.Hash() != parents[0] {
			return platformerrors.Newf(platformerrors.CodeConflict,
				"failed to update %s: current tip is not the first parent", target)
		}
	} else {
		current = nil
	}

	if err := c.storage.CheckAndSetReference(plumbing.NewHashReference(target, id), current); err != nil {
		return wrapErrorf(err, "failed to update reference %s", target)
	}
	return nil
}
