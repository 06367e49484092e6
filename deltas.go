package simplegit

import (
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"

	"github.com/jmgilman/go/simplegit/internal/handle"
)

// DeltaStatus is the kind of change a delta records.
type DeltaStatus int

const (
	DeltaUnmodified DeltaStatus = iota
	DeltaAdded
	DeltaDeleted
	DeltaModified
	DeltaRenamed
	DeltaCopied
	DeltaIgnored
	DeltaUntracked
	DeltaTypechange
	DeltaUnreadable
	DeltaConflicted
)

var deltaNames = [...]string{
	DeltaUnmodified: "unmodified",
	DeltaAdded:      "added",
	DeltaDeleted:    "deleted",
	DeltaModified:   "modified",
	DeltaRenamed:    "renamed",
	DeltaCopied:     "copied",
	DeltaIgnored:    "ignored",
	DeltaUntracked:  "untracked",
	DeltaTypechange: "typechange",
	DeltaUnreadable: "unreadable",
	DeltaConflicted: "conflicted",
}

func (s DeltaStatus) String() string {
	if s < 0 || int(s) >= len(deltaNames) {
		return "unknown"
	}
	return deltaNames[s]
}

// DiffFile is one side of a delta.
type DiffFile struct {
	path   string
	id     plumbing.Hash
	mode   filemode.FileMode
	exists bool
}

// Path returns the path relative to the repository root.
func (f DiffFile) Path() string { return f.path }

// ID returns the blob id, or the zero hash when the side does not exist.
func (f DiffFile) ID() plumbing.Hash { return f.id }

// Mode returns the file mode.
func (f DiffFile) Mode() filemode.FileMode { return f.mode }

// Exists reports whether this side of the delta has content.
func (f DiffFile) Exists() bool { return f.exists }

// DiffDelta is a snapshot of a single file-level change.
type DiffDelta struct {
	status  DeltaStatus
	oldFile DiffFile
	newFile DiffFile
}

// Status returns the kind of change.
func (d DiffDelta) Status() DeltaStatus { return d.status }

// OldFile returns the "from" side.
func (d DiffDelta) OldFile() DiffFile { return d.oldFile }

// NewFile returns the "to" side.
func (d DiffDelta) NewFile() DiffFile { return d.newFile }

// NumFiles is 1 for deltas with a single side and 2 otherwise.
func (d DiffDelta) NumFiles() int {
	if d.oldFile.exists && d.newFile.exists {
		return 2
	}
	return 1
}

func (d DiffDelta) path() string {
	if d.newFile.path != "" {
		return d.newFile.path
	}
	return d.oldFile.path
}

// Deltas is a single-pass cursor over the deltas of a Diff. It holds the
// diff open until it is exhausted or closed.
type Deltas struct {
	ref  *handle.Ref[[]DiffDelta]
	next int
	err  error
}

// Next returns the next delta.
func (it *Deltas) Next() (DiffDelta, bool) {
	if it.ref.Closed() {
		return DiffDelta{}, false
	}

	deltas, err := it.ref.Get()
	if err != nil {
		it.err = wrapError(err, "diff is not available")
		_ = it.Close()
		return DiffDelta{}, false
	}
	if it.next >= len(deltas) {
		_ = it.Close()
		return DiffDelta{}, false
	}

	d := deltas[it.next]
	it.next++
	return d, true
}

// Err returns the error that ended iteration, if any.
func (it *Deltas) Err() error {
	return it.err
}

// Close releases the cursor's hold on the diff.
func (it *Deltas) Close() error {
	return it.ref.Close()
}
