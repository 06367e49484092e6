// Package simplegit is a handle-based Git library built on go-git.
//
// It exposes repositories, objects, references, remotes, revision walks and
// diffs as handles with explicit lifetimes, and answers the question most
// callers actually ask: when was this file last changed?
//
// # Architecture
//
// The library is built on a few rules:
//
//  1. Every value derived from a repository (commits, trees, references,
//     remotes, walks, diffs) keeps that repository open until the value is
//     closed.
//  2. Close is idempotent. Using a closed handle returns ErrClosed.
//  3. Handles nobody closes are released by the garbage collector, so a
//     forgotten Close costs memory for a while, never correctness.
//  4. Billy filesystems carry all I/O, so tests run on memfs.
//  5. Underlying() exposes the go-git repository for anything not covered
//     here.
//
// # Core Types
//
// Repository is an open repository. Init, InitBare, Open, Discover and
// OpenExt create one; RepoBuilder clones one.
//
// Commit, Tree, Blob, Tag and GitObject wrap objects looked up by full or
// abbreviated id. Reference wraps a branch, tag, remote-tracking ref or note.
//
// RevWalk iterates commits with git's sorting modes. Diff holds the deltas
// between two trees, or between a tree and the working tree.
//
// Remote reads and edits remote configuration and fetches or pushes over
// go-git's transports. Local paths are served in process, so no git binary
// is needed.
//
// # Last Modified Dates
//
// FileLatestModifiedDate walks back from HEAD and returns the committer time
// of the first commit that touches a path:
//
//	repo, err := simplegit.Open("/srv/repos/site")
//	if err != nil {
//	    return err
//	}
//	defer repo.Close()
//
//	ms, err := repo.FileLatestModifiedDate("docs/index.md")
//	if simplegit.IsNotFound(err) {
//	    // never committed
//	}
//
// FileLatestModifiedDateAsync runs the same query on a bounded worker pool
// and returns a Task. Servers answering many such requests should open
// repositories through the cache package instead of calling Open each time.
//
// # Errors
//
// Errors carry codes from github.com/jmgilman/go/errors. go-git sentinels
// stay in the chain, so both of these work:
//
//	simplegit.IsNotFound(err)
//	errors.Is(err, plumbing.ErrReferenceNotFound)
//
// # Remotes
//
// Fetch, push and clone options are single use. Passing the same
// RemoteCallbacks, ProxyOptions or FetchOptions twice returns
// ErrAlreadyUsed:
//
//	cbs := simplegit.NewRemoteCallbacks().TransferProgress(func(p simplegit.Progress) bool {
//	    log.Printf("%d/%d objects", p.ReceivedObjects, p.TotalObjects)
//	    return true
//	})
//	opts := simplegit.NewFetchOptions()
//	if err := opts.RemoteCallbacks(cbs); err != nil {
//	    return err
//	}
//	err := remote.Fetch(ctx, nil, opts, "")
//
// # Testing
//
// The testutil package builds repositories on memfs or in a temporary
// directory and writes arbitrary commit graphs straight into the object
// store.
package simplegit
