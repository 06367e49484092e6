package simplegit

import (
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/jmgilman/go/simplegit/internal/handle"
)

// Commit is a commit object. Commits found through a repository, reference
// or object keep that parent alive; commits returned by Parent are copies.
type Commit struct {
	ref    *handle.Ref[*object.Commit]
	core   *repoCore
	parent ParentKind
}

func newCommit(ref *handle.Ref[*object.Commit], core *repoCore, parent ParentKind) *Commit {
	c := &Commit{ref: ref, core: core, parent: parent}
	handle.Track(c, ref)
	return c
}

func (c *Commit) get() (*object.Commit, error) {
	commit, err := c.ref.Get()
	if err != nil {
		return nil, wrapError(err, "commit is not available")
	}
	return commit, nil
}

// Close drops the hold on the commit and everything it was derived from.
func (c *Commit) Close() error {
	return c.ref.Close()
}

// ParentKind reports what the commit was derived from.
func (c *Commit) ParentKind() ParentKind {
	return c.parent
}

// ID returns the commit id.
func (c *Commit) ID() (plumbing.Hash, error) {
	commit, err := c.get()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return commit.Hash, nil
}

// TreeID returns the id of the commit's tree.
func (c *Commit) TreeID() (plumbing.Hash, error) {
	commit, err := c.get()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return commit.TreeHash, nil
}

// Tree returns the commit's tree.
func (c *Commit) Tree() (*Tree, error) {
	ref, err := handle.Derive(c.ref, func(commit *object.Commit) (*object.Tree, error) {
		c.core.mu.RLock()
		defer c.core.mu.RUnlock()

		tree, err := commit.Tree()
		if err != nil {
			return nil, wrapErrorf(err, "failed to load tree of commit %s", commit.Hash)
		}
		return tree, nil
	})
	if err != nil {
		return nil, classifyError(err)
	}
	return newTree(ref, c.core, ParentCommit), nil
}

// AsObject views the commit as a type-erased object.
func (c *Commit) AsObject() (*GitObject, error) {
	ref, err := handle.Derive(c.ref, func(commit *object.Commit) (object.Object, error) {
		return commit, nil
	})
	if err != nil {
		return nil, classifyError(err)
	}
	return newObject(ref, c.core, ParentCommit), nil
}

// Message returns the commit message with leading newlines removed.
func (c *Commit) Message() (string, error) {
	commit, err := c.get()
	if err != nil {
		return "", err
	}
	return strings.TrimLeft(commit.Message, "\n"), nil
}

// MessageBytes is Message as bytes.
func (c *Commit) MessageBytes() ([]byte, error) {
	msg, err := c.Message()
	return []byte(msg), err
}

// MessageRaw returns the message exactly as stored.
func (c *Commit) MessageRaw() (string, error) {
	commit, err := c.get()
	if err != nil {
		return "", err
	}
	return commit.Message, nil
}

// MessageRawBytes is MessageRaw as bytes.
func (c *Commit) MessageRawBytes() ([]byte, error) {
	msg, err := c.MessageRaw()
	return []byte(msg), err
}

// MessageEncoding returns the encoding header. ok is false when the commit
// does not declare one, which means UTF-8.
func (c *Commit) MessageEncoding() (encoding string, ok bool, err error) {
	value, err := c.HeaderFieldBytes("encoding")
	if err != nil {
		if IsNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(value), true, nil
}

// Summary returns the first paragraph of the message with line breaks
// folded into spaces.
func (c *Commit) Summary() (string, error) {
	msg, err := c.Message()
	if err != nil {
		return "", err
	}
	summary, _ := splitMessage(msg)
	return summary, nil
}

// SummaryBytes is Summary as bytes.
func (c *Commit) SummaryBytes() ([]byte, error) {
	summary, err := c.Summary()
	return []byte(summary), err
}

// Body returns everything after the summary paragraph. ok is false when
// the message has no body.
func (c *Commit) Body() (body string, ok bool, err error) {
	msg, err := c.Message()
	if err != nil {
		return "", false, err
	}
	_, body = splitMessage(msg)
	return body, body != "", nil
}

// BodyBytes is Body as bytes.
func (c *Commit) BodyBytes() ([]byte, bool, error) {
	body, ok, err := c.Body()
	return []byte(body), ok, err
}

func splitMessage(msg string) (summary, body string) {
	msg = strings.TrimLeft(msg, " \t\r\n")

	first, rest, _ := strings.Cut(msg, "\n\n")
	lines := strings.Split(first, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	summary = strings.TrimSpace(strings.Join(lines, " "))

	body = strings.TrimRight(strings.TrimLeft(rest, " \t\r\n"), " \t\r\n")
	return summary, body
}

// RawHeader returns the header block of the encoded commit.
func (c *Commit) RawHeader() (string, error) {
	header, err := c.RawHeaderBytes()
	return string(header), err
}

// RawHeaderBytes is RawHeader as bytes.
func (c *Commit) RawHeaderBytes() ([]byte, error) {
	commit, err := c.get()
	if err != nil {
		return nil, err
	}

	obj := &plumbing.MemoryObject{}
	if err := commit.Encode(obj); err != nil {
		return nil, gitError(err)
	}
	r, err := obj.Reader()
	if err != nil {
		return nil, gitError(err)
	}
	defer func() { _ = r.Close() }()

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, gitError(err)
	}

	header, _, _ := bytes.Cut(raw, []byte("\n\n"))
	return append(header, '\n'), nil
}

// HeaderFieldBytes returns the value of a header field. Continuation lines
// are joined with newlines.
func (c *Commit) HeaderFieldBytes(field string) ([]byte, error) {
	header, err := c.RawHeaderBytes()
	if err != nil {
		return nil, err
	}

	var value []byte
	found := false
	for _, line := range bytes.Split(header, []byte("\n")) {
		if found {
			if rest, ok := bytes.CutPrefix(line, []byte(" ")); ok {
				value = append(append(value, '\n'), rest...)
				continue
			}
			break
		}
		if rest, ok := bytes.CutPrefix(line, []byte(field+" ")); ok {
			value = append(value, rest...)
			found = true
		}
	}

	if !found {
		return nil, notFound("commit has no %s header", field)
	}
	return value, nil
}

// Time returns the committer time.
func (c *Commit) Time() (time.Time, error) {
	commit, err := c.get()
	if err != nil {
		return time.Time{}, err
	}
	return commit.Committer.When, nil
}

// Author returns the author signature.
func (c *Commit) Author() (*Signature, error) {
	return c.signature(func(commit *object.Commit) object.Signature { return commit.Author })
}

// Committer returns the committer signature.
func (c *Commit) Committer() (*Signature, error) {
	return c.signature(func(commit *object.Commit) object.Signature { return commit.Committer })
}

func (c *Commit) signature(pick func(*object.Commit) object.Signature) (*Signature, error) {
	ref, err := handle.Derive(c.ref, func(commit *object.Commit) (object.Signature, error) {
		return pick(commit), nil
	})
	if err != nil {
		return nil, classifyError(err)
	}
	return newSignature(ref, ParentCommit), nil
}

// ParentCount returns the number of parents.
func (c *Commit) ParentCount() (int, error) {
	commit, err := c.get()
	if err != nil {
		return 0, err
	}
	return commit.NumParents(), nil
}

// ParentID returns the id of the i-th parent.
func (c *Commit) ParentID(i int) (plumbing.Hash, error) {
	commit, err := c.get()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if i < 0 || i >= len(commit.ParentHashes) {
		return plumbing.ZeroHash, notFound("commit %s has no parent %d", commit.Hash, i)
	}
	return commit.ParentHashes[i], nil
}

// Parent loads the i-th parent. The result is an owned copy that does not
// keep this commit alive.
func (c *Commit) Parent(i int) (*Commit, error) {
	commit, err := c.get()
	if err != nil {
		return nil, err
	}

	c.core.mu.RLock()
	parent, err := commit.Parent(i)
	c.core.mu.RUnlock()
	if err != nil {
		return nil, wrapErrorf(err, "failed to load parent %d of commit %s", i, commit.Hash)
	}

	return newCommit(handle.Own[*object.Commit](handle.NewRoot(parent, nil)), c.core, ParentOwned), nil
}
