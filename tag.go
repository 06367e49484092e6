package simplegit

import (
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/jmgilman/go/simplegit/internal/handle"
)

// Tag is an annotated tag object.
type Tag struct {
	ref    *handle.Ref[*object.Tag]
	core   *repoCore
	parent ParentKind
}

func newTag(ref *handle.Ref[*object.Tag], core *repoCore, parent ParentKind) *Tag {
	t := &Tag{ref: ref, core: core, parent: parent}
	handle.Track(t, ref)
	return t
}

// IsValidTagName reports whether name can be used as a tag name.
func IsValidTagName(name string) bool {
	if name == "" || strings.HasPrefix(name, "-") {
		return false
	}
	return plumbing.NewTagReferenceName(name).Validate() == nil
}

func (t *Tag) get() (*object.Tag, error) {
	tag, err := t.ref.Get()
	if err != nil {
		return nil, wrapError(err, "tag is not available")
	}
	return tag, nil
}

// Close drops the hold on the tag.
func (t *Tag) Close() error {
	return t.ref.Close()
}

// ParentKind reports what the tag was derived from.
func (t *Tag) ParentKind() ParentKind {
	return t.parent
}

// ID returns the id of the tag object.
func (t *Tag) ID() (plumbing.Hash, error) {
	tag, err := t.get()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return tag.Hash, nil
}

// Name returns the tag name.
func (t *Tag) Name() (string, error) {
	tag, err := t.get()
	if err != nil {
		return "", err
	}
	return tag.Name, nil
}

// NameBytes is Name as bytes.
func (t *Tag) NameBytes() ([]byte, error) {
	name, err := t.Name()
	return []byte(name), err
}

// Message returns the tag message. ok is false for an empty message.
func (t *Tag) Message() (msg string, ok bool, err error) {
	tag, err := t.get()
	if err != nil {
		return "", false, err
	}
	return tag.Message, tag.Message != "", nil
}

// MessageBytes is Message as bytes.
func (t *Tag) MessageBytes() ([]byte, bool, error) {
	msg, ok, err := t.Message()
	return []byte(msg), ok, err
}

// TargetID returns the id of the tagged object.
func (t *Tag) TargetID() (plumbing.Hash, error) {
	tag, err := t.get()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return tag.Target, nil
}

// TargetKind returns the kind of the tagged object.
func (t *Tag) TargetKind() (ObjectKind, error) {
	tag, err := t.get()
	if err != nil {
		return ObjectAny, err
	}
	return objectKindOf(tag.TargetType), nil
}

// Target loads the tagged object. It keeps the tag alive.
func (t *Tag) Target() (*GitObject, error) {
	ref, err := handle.Derive(t.ref, func(tag *object.Tag) (object.Object, error) {
		t.core.mu.RLock()
		defer t.core.mu.RUnlock()

		obj, err := tag.Object()
		if err != nil {
			return nil, wrapErrorf(err, "failed to load target of tag %s", tag.Name)
		}
		return obj, nil
	})
	if err != nil {
		return nil, classifyError(err)
	}
	return newObject(ref, t.core, ParentObject), nil
}

// Peel follows the tag through any chain of tags to the first non-tag
// object. The result is an owned copy.
func (t *Tag) Peel() (*GitObject, error) {
	tag, err := t.get()
	if err != nil {
		return nil, err
	}

	t.core.mu.RLock()
	obj, err := peel(t.core.storage, tag.Hash, plumbing.AnyObject)
	t.core.mu.RUnlock()
	if err != nil {
		return nil, wrapErrorf(err, "failed to peel tag %s", tag.Name)
	}

	return newObject(handle.Own[object.Object](handle.NewRoot(obj, nil)), t.core, ParentOwned), nil
}

// Tagger returns the tagger signature.
func (t *Tag) Tagger() (*Signature, error) {
	ref, err := handle.Derive(t.ref, func(tag *object.Tag) (object.Signature, error) {
		return tag.Tagger, nil
	})
	if err != nil {
		return nil, classifyError(err)
	}
	return newSignature(ref, ParentObject), nil
}
