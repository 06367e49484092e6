package simplegit

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/jmgilman/go/simplegit/internal/handle"
)

// GitObject is any object in the database: a commit, tree, blob or tag.
type GitObject struct {
	ref    *handle.Ref[object.Object]
	core   *repoCore
	parent ParentKind
}

func newObject(ref *handle.Ref[object.Object], core *repoCore, parent ParentKind) *GitObject {
	o := &GitObject{ref: ref, core: core, parent: parent}
	handle.Track(o, ref)
	return o
}

// peel follows tags, and commits when a tree is wanted, until an object of
// kind want is reached. plumbing.AnyObject stops at the first non-tag.
func peel(s storer.EncodedObjectStorer, h plumbing.Hash, want plumbing.ObjectType) (object.Object, error) {
	obj, err := object.GetObject(s, h)
	if err != nil {
		return nil, err
	}

	for {
		if want == plumbing.AnyObject && obj.Type() != plumbing.TagObject {
			return obj, nil
		}
		if obj.Type() == want {
			return obj, nil
		}

		switch o := obj.(type) {
		case *object.Tag:
			if obj, err = o.Object(); err != nil {
				return nil, err
			}
		case *object.Commit:
			if want != plumbing.TreeObject {
				return nil, peelError(o.Type(), want)
			}
			if obj, err = o.Tree(); err != nil {
				return nil, err
			}
		default:
			return nil, peelError(obj.Type(), want)
		}
	}
}

func peelError(have, want plumbing.ObjectType) error {
	return invalidInput("cannot peel %s to %s", have, want)
}

func (o *GitObject) get() (object.Object, error) {
	obj, err := o.ref.Get()
	if err != nil {
		return nil, wrapError(err, "object is not available")
	}
	return obj, nil
}

// Close drops the hold on the object and everything it was derived from.
func (o *GitObject) Close() error {
	return o.ref.Close()
}

// ParentKind reports what the object was derived from.
func (o *GitObject) ParentKind() ParentKind {
	return o.parent
}

// ID returns the object id.
func (o *GitObject) ID() (plumbing.Hash, error) {
	obj, err := o.get()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return obj.ID(), nil
}

// Kind returns the object type.
func (o *GitObject) Kind() (ObjectKind, error) {
	obj, err := o.get()
	if err != nil {
		return ObjectAny, err
	}
	return objectKindOf(obj.Type()), nil
}

// Peel recursively resolves the object until one of the given kind is
// reached. ObjectAny peels annotated tags only.
func (o *GitObject) Peel(kind ObjectKind) (*GitObject, error) {
	ref, err := handle.Derive(o.ref, func(obj object.Object) (object.Object, error) {
		peeled, err := peel(o.core.storage, obj.ID(), kind.objectType())
		if err != nil {
			return nil, wrapErrorf(err, "failed to peel %s", obj.ID())
		}
		return peeled, nil
	})
	if err != nil {
		return nil, classifyError(err)
	}
	return newObject(ref, o.core, ParentObject), nil
}

// PeelToBlob peels the object to a blob.
func (o *GitObject) PeelToBlob() (*Blob, error) {
	ref, err := handle.Derive(o.ref, func(obj object.Object) (*object.Blob, error) {
		peeled, err := peel(o.core.storage, obj.ID(), plumbing.BlobObject)
		if err != nil {
			return nil, wrapErrorf(err, "failed to peel %s", obj.ID())
		}
		return peeled.(*object.Blob), nil
	})
	if err != nil {
		return nil, classifyError(err)
	}
	return newBlob(ref, ParentObject), nil
}

// AsBlob views the object as a blob. It fails if the object is not a blob.
func (o *GitObject) AsBlob() (*Blob, error) {
	ref, err := asKind[*object.Blob](o)
	if err != nil {
		return nil, err
	}
	return newBlob(ref, ParentObject), nil
}

// AsCommit views the object as a commit.
func (o *GitObject) AsCommit() (*Commit, error) {
	ref, err := asKind[*object.Commit](o)
	if err != nil {
		return nil, err
	}
	return newCommit(ref, o.core, ParentObject), nil
}

// AsTree views the object as a tree.
func (o *GitObject) AsTree() (*Tree, error) {
	ref, err := asKind[*object.Tree](o)
	if err != nil {
		return nil, err
	}
	return newTree(ref, o.core, ParentObject), nil
}

// AsTag views the object as an annotated tag.
func (o *GitObject) AsTag() (*Tag, error) {
	ref, err := asKind[*object.Tag](o)
	if err != nil {
		return nil, err
	}
	return newTag(ref, o.core, ParentObject), nil
}

func asKind[T object.Object](o *GitObject) (*handle.Ref[T], error) {
	ref, err := handle.Derive(o.ref, func(obj object.Object) (T, error) {
		typed, ok := obj.(T)
		if !ok {
			var zero T
			return zero, invalidInput("object %s is a %s", obj.ID(), obj.Type())
		}
		return typed, nil
	})
	if err != nil {
		return nil, classifyError(err)
	}
	return ref, nil
}

func (o *GitObject) String() string {
	obj, err := o.ref.Get()
	if err != nil {
		return "<closed object>"
	}
	return fmt.Sprintf("%s %s", obj.Type(), obj.ID())
}
