package simplegit

import (
	"io"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/binary"

	"github.com/jmgilman/go/simplegit/internal/handle"
)

// Blob is file content in the object database.
type Blob struct {
	ref    *handle.Ref[*object.Blob]
	parent ParentKind
}

func newBlob(ref *handle.Ref[*object.Blob], parent ParentKind) *Blob {
	b := &Blob{ref: ref, parent: parent}
	handle.Track(b, ref)
	return b
}

func (b *Blob) get() (*object.Blob, error) {
	blob, err := b.ref.Get()
	if err != nil {
		return nil, wrapError(err, "blob is not available")
	}
	return blob, nil
}

// Close drops the hold on the blob.
func (b *Blob) Close() error {
	return b.ref.Close()
}

// ParentKind reports what the blob was derived from.
func (b *Blob) ParentKind() ParentKind {
	return b.parent
}

// ID returns the blob id.
func (b *Blob) ID() (plumbing.Hash, error) {
	blob, err := b.get()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return blob.Hash, nil
}

// Size returns the content length in bytes.
func (b *Blob) Size() (int64, error) {
	blob, err := b.get()
	if err != nil {
		return 0, err
	}
	return blob.Size, nil
}

// Content reads the whole blob.
func (b *Blob) Content() ([]byte, error) {
	blob, err := b.get()
	if err != nil {
		return nil, err
	}

	r, err := blob.Reader()
	if err != nil {
		return nil, wrapErrorf(err, "failed to read blob %s", blob.Hash)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, wrapErrorf(err, "failed to read blob %s", blob.Hash)
	}
	return data, nil
}

// IsBinary applies git's heuristic: content with a NUL byte in the first
// few kilobytes is binary.
func (b *Blob) IsBinary() (bool, error) {
	blob, err := b.get()
	if err != nil {
		return false, err
	}

	r, err := blob.Reader()
	if err != nil {
		return false, wrapErrorf(err, "failed to read blob %s", blob.Hash)
	}
	defer func() { _ = r.Close() }()

	bin, err := binary.IsBinary(r)
	if err != nil {
		return false, wrapErrorf(err, "failed to read blob %s", blob.Hash)
	}
	return bin, nil
}
