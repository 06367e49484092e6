package simplegit

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/go-git/go-git/v5/storage/filesystem/dotgit"

	"github.com/jmgilman/go/simplegit/internal/handle"
)

// repoCore is the state owned by a repository root handle.
type repoCore struct {
	mu        sync.RWMutex
	repo      *gogit.Repository
	storage   *filesystem.Storage
	fs        billy.Filesystem
	gitDir    string
	workdir   string
	namespace string
	logger    *slog.Logger
}

func (c *repoCore) close() error {
	c.logger.Debug("closing repository", "path", c.gitDir)
	return c.storage.Close()
}

// Repository is an open git repository.
//
// Values derived from a Repository (references, commits, trees, diffs,
// remotes) keep it open until they are closed themselves, so closing the
// Repository only drops the caller's own hold. Handles that are never closed
// are released when they are garbage collected.
type Repository struct {
	ref *handle.Ref[*repoCore]
}

func newRepository(core *repoCore) *Repository {
	return wrapRepository(handle.Own[*repoCore](handle.NewRoot(core, (*repoCore).close)))
}

func wrapRepository(ref *handle.Ref[*repoCore]) *Repository {
	r := &Repository{ref: ref}
	handle.Track(r, ref)
	return r
}

// Init creates a new repository with a working tree at path.
//
// Examples:
//
//	repo, err := simplegit.Init("/path/to/repo")
//
//	// In memory, for tests
//	repo, err := simplegit.Init("/repo", simplegit.WithFilesystem(memfs.New()))
func Init(path string, opts ...Option) (*Repository, error) {
	return initRepository(path, false, opts)
}

// InitBare creates a new bare repository at path.
func InitBare(path string, opts ...Option) (*Repository, error) {
	return initRepository(path, true, opts)
}

func initRepository(dir string, bare bool, opts []Option) (*Repository, error) {
	o := newOptions(opts)
	if err := o.prepare(); err != nil {
		return nil, err
	}
	dir = o.abs(dir)

	if err := o.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, wrapError(err, "failed to create repository directory")
	}

	gitDir, workdir := dir, ""
	if !bare {
		gitDir, workdir = path.Join(dir, gogit.GitDirName), dir
	}

	core, err := o.newCore(gitDir, workdir)
	if err != nil {
		return nil, err
	}

	var wt billy.Filesystem
	if workdir != "" {
		if wt, err = o.fs.Chroot(workdir); err != nil {
			return nil, wrapError(err, "failed to scope filesystem to working tree")
		}
	}

	repo, err := gogit.Init(core.storage, wt)
	if err != nil {
		return nil, wrapError(err, "failed to initialize repository")
	}
	core.repo = repo

	o.logger.Debug("initialized repository", "path", gitDir, "bare", bare)
	return newRepository(core), nil
}

// Open opens the repository at path without searching parent directories.
// path may be a working tree or a git directory.
func Open(path string, opts ...Option) (*Repository, error) {
	return OpenExt(path, OpenNoSearch, nil, opts...)
}

// Discover opens the repository containing path, searching parent
// directories up to the filesystem root.
func Discover(path string, opts ...Option) (*Repository, error) {
	return OpenExt(path, 0, nil, opts...)
}

// OpenExt opens a repository with explicit search flags. ceilingDirs stop
// the upward search; the search never enters a ceiling directory itself.
func OpenExt(path string, flags OpenFlags, ceilingDirs []string, opts ...Option) (*Repository, error) {
	o := newOptions(opts)
	if err := o.prepare(); err != nil {
		return nil, err
	}

	loc, err := locate(o, o.abs(path), flags, ceilingDirs)
	if err != nil {
		return nil, wrapErrorf(err, "failed to open repository at %s", path)
	}

	core, err := o.newCore(loc.gitDir, loc.workdir)
	if err != nil {
		return nil, err
	}

	var wt billy.Filesystem
	if loc.workdir != "" {
		if wt, err = o.fs.Chroot(loc.workdir); err != nil {
			return nil, wrapError(err, "failed to scope filesystem to working tree")
		}
	}

	repo, err := gogit.Open(core.storage, wt)
	if err != nil {
		return nil, wrapErrorf(err, "failed to open repository at %s", path)
	}
	core.repo = repo

	o.logger.Debug("opened repository", "path", loc.gitDir, "workdir", loc.workdir)
	return newRepository(core), nil
}

func (o *options) prepare() error {
	if o.skipGlobal || o.customFS {
		return nil
	}
	return EnsureGlobalConfig()
}

func (o *options) newCore(gitDir, workdir string) (*repoCore, error) {
	dot, err := o.fs.Chroot(gitDir)
	if err != nil {
		return nil, wrapError(err, "failed to scope filesystem to git directory")
	}

	storageFs := dot
	if common, ok := readCommonDir(o.fs, gitDir); ok {
		commonFs, err := o.fs.Chroot(common)
		if err != nil {
			return nil, wrapError(err, "failed to scope filesystem to common directory")
		}
		storageFs = dotgit.NewRepositoryFilesystem(dot, commonFs)
	}

	return &repoCore{
		storage: filesystem.NewStorage(storageFs, cache.NewObjectLRU(o.cacheSize)),
		fs:      o.fs,
		gitDir:  gitDir,
		workdir: workdir,
		logger:  o.logger,
	}, nil
}

func (r *Repository) load() (*repoCore, error) {
	core, err := r.ref.Get()
	if err != nil {
		return nil, wrapError(err, "repository is not available")
	}
	return core, nil
}

// Close drops this handle's hold on the repository. Storage is closed once
// every value derived from it has been closed too.
func (r *Repository) Close() error {
	return r.ref.Close()
}

// Retain returns another handle on the same open repository.
func (r *Repository) Retain() (*Repository, error) {
	ref, err := r.ref.Clone()
	if err != nil {
		return nil, wrapError(err, "repository is not available")
	}
	return wrapRepository(ref), nil
}

// Underlying returns the go-git repository, or nil once the handle is closed.
func (r *Repository) Underlying() *gogit.Repository {
	core, err := r.ref.Get()
	if err != nil {
		return nil
	}
	core.mu.RLock()
	defer core.mu.RUnlock()
	return core.repo
}

// Filesystem returns the filesystem that repository paths resolve against.
func (r *Repository) Filesystem() billy.Filesystem {
	core, err := r.ref.Get()
	if err != nil {
		return nil
	}
	return core.fs
}

// Path returns the git directory, with a trailing slash.
func (r *Repository) Path() (string, error) {
	core, err := r.load()
	if err != nil {
		return "", err
	}
	return withSlash(core.gitDir), nil
}

// Workdir returns the working tree, with a trailing slash. ok is false for
// bare repositories.
func (r *Repository) Workdir() (dir string, ok bool, err error) {
	core, err := r.load()
	if err != nil {
		return "", false, err
	}
	core.mu.RLock()
	defer core.mu.RUnlock()

	if core.workdir == "" {
		return "", false, nil
	}
	return withSlash(core.workdir), true, nil
}

// IsBare reports whether the repository has no working tree.
func (r *Repository) IsBare() (bool, error) {
	_, ok, err := r.Workdir()
	return !ok, err
}

// SetWorkdir points the repository at a new working tree. With
// updateGitlink, a .git file linking back to the git directory is written in
// the new working tree and core.worktree is recorded in the config.
func (r *Repository) SetWorkdir(dir string, updateGitlink bool) error {
	core, err := r.load()
	if err != nil {
		return err
	}

	core.mu.Lock()
	defer core.mu.Unlock()

	wt, err := core.fs.Chroot(dir)
	if err != nil {
		return wrapError(err, "failed to scope filesystem to working tree")
	}

	if updateGitlink {
		link := []byte("gitdir: " + core.gitDir + "\n")
		if err := util.WriteFile(core.fs, path.Join(dir, gogit.GitDirName), link, 0o644); err != nil {
			return wrapError(err, "failed to write gitlink")
		}

		cfg, err := core.storage.Config()
		if err != nil {
			return wrapError(err, "failed to read config")
		}
		cfg.Core.Worktree = dir
		if err := core.storage.SetConfig(cfg); err != nil {
			return wrapError(err, "failed to write config")
		}
	}

	repo, err := gogit.Open(core.storage, wt)
	if err != nil {
		return wrapError(err, "failed to reopen repository")
	}

	core.repo = repo
	core.workdir = dir
	core.logger.Debug("changed working tree", "path", core.gitDir, "workdir", dir)
	return nil
}

// Head returns the reference HEAD resolves to.
func (r *Repository) Head() (*Reference, error) {
	return r.deriveReference(func(core *repoCore) (*plumbing.Reference, error) {
		ref, err := core.repo.Head()
		if err != nil {
			return nil, wrapError(err, "failed to resolve HEAD")
		}
		return ref, nil
	})
}

// IsShallow reports whether the repository is a shallow clone.
func (r *Repository) IsShallow() (bool, error) {
	core, err := r.load()
	if err != nil {
		return false, err
	}
	core.mu.RLock()
	defer core.mu.RUnlock()

	commits, err := core.storage.Shallow()
	if err != nil {
		return false, gitError(err)
	}
	return len(commits) > 0, nil
}

// IsEmpty reports whether the repository has no references besides an
// unborn HEAD.
func (r *Repository) IsEmpty() (bool, error) {
	core, err := r.load()
	if err != nil {
		return false, err
	}
	core.mu.RLock()
	defer core.mu.RUnlock()

	iter, err := core.storage.IterReferences()
	if err != nil {
		return false, gitError(err)
	}
	defer iter.Close()

	empty := true
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if ref.Name() == plumbing.HEAD {
			return nil
		}
		empty = false
		return storer.ErrStop
	})
	if err != nil {
		return false, gitError(err)
	}
	return empty, nil
}

// IsWorktree reports whether the repository was opened through a linked
// working tree.
func (r *Repository) IsWorktree() (bool, error) {
	core, err := r.load()
	if err != nil {
		return false, err
	}
	_, ok := readCommonDir(core.fs, core.gitDir)
	return ok, nil
}

// RepositoryState is an operation that is in progress in the repository.
type RepositoryState int

const (
	StateClean RepositoryState = iota
	StateMerge
	StateRevert
	StateRevertSequence
	StateCherryPick
	StateCherryPickSequence
	StateBisect
	StateRebase
	StateRebaseInteractive
	StateRebaseMerge
	StateApplyMailbox
	StateApplyMailboxOrRebase
)

// State inspects the git directory for an in-progress operation.
func (r *Repository) State() (RepositoryState, error) {
	core, err := r.load()
	if err != nil {
		return StateClean, err
	}

	exists := func(name string) bool {
		_, err := core.fs.Stat(path.Join(core.gitDir, name))
		return err == nil
	}

	switch {
	case exists("rebase-merge/interactive"):
		return StateRebaseInteractive, nil
	case exists("rebase-merge"):
		return StateRebaseMerge, nil
	case exists("rebase-apply/rebasing"):
		return StateRebase, nil
	case exists("rebase-apply/applying"):
		return StateApplyMailbox, nil
	case exists("rebase-apply"):
		return StateApplyMailboxOrRebase, nil
	case exists("MERGE_HEAD"):
		return StateMerge, nil
	case exists("REVERT_HEAD"):
		if exists("sequencer/todo") {
			return StateRevertSequence, nil
		}
		return StateRevert, nil
	case exists("CHERRY_PICK_HEAD"):
		if exists("sequencer/todo") {
			return StateCherryPickSequence, nil
		}
		return StateCherryPick, nil
	case exists("BISECT_LOG"):
		return StateBisect, nil
	}
	return StateClean, nil
}

// Namespace returns the active reference namespace, if any.
func (r *Repository) Namespace() (string, bool) {
	core, err := r.ref.Get()
	if err != nil {
		return "", false
	}
	core.mu.RLock()
	defer core.mu.RUnlock()
	return core.namespace, core.namespace != ""
}

// SetNamespace scopes reference lookups to refs/namespaces/<namespace>/.
func (r *Repository) SetNamespace(namespace string) error {
	core, err := r.load()
	if err != nil {
		return err
	}
	if strings.ContainsAny(namespace, " ~^:?*[\\") {
		return invalidInput("invalid namespace %q", namespace)
	}

	core.mu.Lock()
	defer core.mu.Unlock()
	core.namespace = strings.Trim(namespace, "/")
	return nil
}

// RemoveNamespace clears the reference namespace.
func (r *Repository) RemoveNamespace() error {
	return r.SetNamespace("")
}

// Message returns the prepared commit message from MERGE_MSG.
func (r *Repository) Message() (string, error) {
	core, err := r.load()
	if err != nil {
		return "", err
	}

	data, err := util.ReadFile(core.fs, path.Join(core.gitDir, "MERGE_MSG"))
	if errors.Is(err, os.ErrNotExist) {
		return "", notFound("no prepared commit message in %s", core.gitDir)
	}
	if err != nil {
		return "", wrapError(err, "failed to read prepared message")
	}
	return string(data), nil
}

// RemoveMessage deletes MERGE_MSG. A missing file is not an error.
func (r *Repository) RemoveMessage() error {
	core, err := r.load()
	if err != nil {
		return err
	}

	err = core.fs.Remove(path.Join(core.gitDir, "MERGE_MSG"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return wrapError(err, "failed to remove prepared message")
	}
	return nil
}

func withSlash(p string) string {
	if strings.HasSuffix(p, "/") {
		return p
	}
	return p + "/"
}

// readCommonDir returns the shared git directory of a linked working tree.
func readCommonDir(fs billy.Filesystem, gitDir string) (string, bool) {
	f, err := fs.Open(path.Join(gitDir, "commondir"))
	if err != nil {
		return "", false
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", false
	}

	common := strings.TrimSpace(string(data))
	if common == "" {
		return "", false
	}
	if !path.IsAbs(common) {
		common = path.Join(gitDir, common)
	}
	return common, true
}
