package simplegit

import (
	"regexp"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/jmgilman/go/simplegit/internal/handle"
)

// ReferenceKind distinguishes direct references from symbolic ones.
type ReferenceKind int

const (
	ReferenceUnknown ReferenceKind = iota
	ReferenceDirect
	ReferenceSymbolic
)

func (k ReferenceKind) String() string {
	switch k {
	case ReferenceDirect:
		return "direct"
	case ReferenceSymbolic:
		return "symbolic"
	default:
		return "unknown"
	}
}

// Reference is a named pointer such as a branch, a tag or HEAD. It keeps its
// repository open until closed.
type Reference struct {
	ref  *handle.Ref[*plumbing.Reference]
	core *repoCore
}

func newReference(ref *handle.Ref[*plumbing.Reference], core *repoCore) *Reference {
	r := &Reference{ref: ref, core: core}
	handle.Track(r, ref)
	return r
}

func (r *Repository) deriveReference(fn func(*repoCore) (*plumbing.Reference, error)) (*Reference, error) {
	core, err := r.load()
	if err != nil {
		return nil, err
	}

	ref, err := handle.Derive(r.ref, func(c *repoCore) (*plumbing.Reference, error) {
		c.mu.RLock()
		defer c.mu.RUnlock()
		return fn(c)
	})
	if err != nil {
		return nil, classifyError(err)
	}
	return newReference(ref, core), nil
}

// FindReference looks up a reference by its full name. When a namespace is
// set, the name is looked up inside it.
func (r *Repository) FindReference(name string) (*Reference, error) {
	return r.deriveReference(func(core *repoCore) (*plumbing.Reference, error) {
		ref, err := core.storage.Reference(core.namespaced(name))
		if err != nil {
			return nil, wrapErrorf(err, "failed to find reference %s", name)
		}
		return ref, nil
	})
}

func (c *repoCore) namespaced(name string) plumbing.ReferenceName {
	if c.namespace == "" || name == plumbing.HEAD.String() {
		return plumbing.ReferenceName(name)
	}

	prefix := "refs/namespaces/" + strings.ReplaceAll(c.namespace, "/", "/refs/namespaces/") + "/"
	return plumbing.ReferenceName(prefix + name)
}

var oneLevelRef = regexp.MustCompile(`^[A-Z_]+$`)

// IsValidReferenceName reports whether name can be used as a reference.
// Besides names under refs/, upper-case one-level names such as HEAD or
// ORIG_HEAD are accepted.
func IsValidReferenceName(name string) bool {
	if oneLevelRef.MatchString(name) {
		return true
	}
	if !strings.HasPrefix(name, "refs/") {
		return false
	}
	return plumbing.ReferenceName(name).Validate() == nil
}

func (r *Reference) get() (*plumbing.Reference, error) {
	ref, err := r.ref.Get()
	if err != nil {
		return nil, wrapError(err, "reference is not available")
	}
	return ref, nil
}

// Close drops the hold on the reference and its repository.
func (r *Reference) Close() error {
	return r.ref.Close()
}

// ParentKind reports what the reference was derived from.
func (r *Reference) ParentKind() ParentKind {
	return ParentRepository
}

// IsBranch reports whether the reference lives under refs/heads.
func (r *Reference) IsBranch() (bool, error) {
	ref, err := r.get()
	if err != nil {
		return false, err
	}
	return ref.Name().IsBranch(), nil
}

// IsNote reports whether the reference lives under refs/notes.
func (r *Reference) IsNote() (bool, error) {
	ref, err := r.get()
	if err != nil {
		return false, err
	}
	return ref.Name().IsNote(), nil
}

// IsRemote reports whether the reference lives under refs/remotes.
func (r *Reference) IsRemote() (bool, error) {
	ref, err := r.get()
	if err != nil {
		return false, err
	}
	return ref.Name().IsRemote(), nil
}

// IsTag reports whether the reference lives under refs/tags.
func (r *Reference) IsTag() (bool, error) {
	ref, err := r.get()
	if err != nil {
		return false, err
	}
	return ref.Name().IsTag(), nil
}

// Kind reports whether the reference is direct or symbolic.
func (r *Reference) Kind() (ReferenceKind, error) {
	ref, err := r.get()
	if err != nil {
		return ReferenceUnknown, err
	}

	switch ref.Type() {
	case plumbing.HashReference:
		return ReferenceDirect, nil
	case plumbing.SymbolicReference:
		return ReferenceSymbolic, nil
	default:
		return ReferenceUnknown, nil
	}
}

// Name returns the full name of the reference.
func (r *Reference) Name() (string, error) {
	ref, err := r.get()
	if err != nil {
		return "", err
	}
	return ref.Name().String(), nil
}

// Shorthand returns the human-readable name, such as "main" for
// refs/heads/main.
func (r *Reference) Shorthand() (string, error) {
	ref, err := r.get()
	if err != nil {
		return "", err
	}
	return ref.Name().Short(), nil
}

// Target returns the object id of a direct reference.
func (r *Reference) Target() (plumbing.Hash, bool) {
	ref, err := r.get()
	if err != nil || ref.Type() != plumbing.HashReference {
		return plumbing.ZeroHash, false
	}
	return ref.Hash(), true
}

// TargetPeel returns the object an annotated tag reference ultimately
// points at. ok is false for references that do not point at a tag object.
func (r *Reference) TargetPeel() (plumbing.Hash, bool) {
	ref, err := r.get()
	if err != nil || ref.Type() != plumbing.HashReference {
		return plumbing.ZeroHash, false
	}

	tag, err := object.GetTag(r.core.storage, ref.Hash())
	if err != nil {
		return plumbing.ZeroHash, false
	}

	target, err := peel(r.core.storage, tag.Target, plumbing.AnyObject)
	if err != nil {
		return plumbing.ZeroHash, false
	}
	return target.ID(), true
}

// SymbolicTarget returns the name a symbolic reference points at.
func (r *Reference) SymbolicTarget() (string, bool) {
	ref, err := r.get()
	if err != nil || ref.Type() != plumbing.SymbolicReference {
		return "", false
	}
	return ref.Target().String(), true
}

// Resolve follows symbolic references until a direct one is found. The
// result shares this reference's repository rather than this reference.
func (r *Reference) Resolve() (*Reference, error) {
	ref, err := handle.Sibling(r.ref, func(ref *plumbing.Reference) (*plumbing.Reference, error) {
		r.core.mu.RLock()
		defer r.core.mu.RUnlock()

		resolved, err := storer.ResolveReference(r.core.storage, ref.Name())
		if err != nil {
			return nil, wrapErrorf(err, "failed to resolve reference %s", ref.Name())
		}
		return resolved, nil
	})
	if err != nil {
		return nil, classifyError(err)
	}
	return newReference(ref, r.core), nil
}

// PeelToTree returns the tree the reference ultimately points at.
func (r *Reference) PeelToTree() (*Tree, error) {
	tree, err := handle.Derive(r.ref, func(ref *plumbing.Reference) (*object.Tree, error) {
		obj, err := r.peelTarget(ref, plumbing.TreeObject)
		if err != nil {
			return nil, err
		}
		return obj.(*object.Tree), nil
	})
	if err != nil {
		return nil, classifyError(err)
	}
	return newTree(tree, r.core, ParentReference), nil
}

// PeelToCommit returns the commit the reference ultimately points at.
func (r *Reference) PeelToCommit() (*Commit, error) {
	commit, err := handle.Derive(r.ref, func(ref *plumbing.Reference) (*object.Commit, error) {
		obj, err := r.peelTarget(ref, plumbing.CommitObject)
		if err != nil {
			return nil, err
		}
		return obj.(*object.Commit), nil
	})
	if err != nil {
		return nil, classifyError(err)
	}
	return newCommit(commit, r.core, ParentReference), nil
}

func (r *Reference) peelTarget(ref *plumbing.Reference, want plumbing.ObjectType) (object.Object, error) {
	r.core.mu.RLock()
	defer r.core.mu.RUnlock()

	if ref.Type() == plumbing.SymbolicReference {
		resolved, err := storer.ResolveReference(r.core.storage, ref.Name())
		if err != nil {
			return nil, wrapErrorf(err, "failed to resolve reference %s", ref.Name())
		}
		ref = resolved
	}

	obj, err := peel(r.core.storage, ref.Hash(), want)
	if err != nil {
		return nil, wrapErrorf(err, "failed to peel reference %s to %s", ref.Name(), want)
	}
	return obj, nil
}
