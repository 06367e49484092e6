package simplegit

import (
	"context"
	"path"

	"github.com/go-git/go-billy/v5"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
)

// RepoBuilder configures and performs a clone.
//
// Example:
//
//	cbs := simplegit.NewRemoteCallbacks().Credentials(func(req simplegit.CredentialRequest) (*simplegit.Cred, error) {
//		return simplegit.CredSSHKey(req.UsernameFromURL, "", os.ExpandEnv("$HOME/.ssh/id_ed25519"), "")
//	})
//	opts := simplegit.NewFetchOptions()
//	if err := opts.RemoteCallbacks(cbs); err != nil {
//		return err
//	}
//
//	builder := simplegit.NewRepoBuilder()
//	if err := builder.FetchOptions(opts); err != nil {
//		return err
//	}
//	repo, err := builder.Clone(ctx, "git@github.com:go-git/go-git.git", "/tmp/go-git")
type RepoBuilder struct {
	bare       bool
	branch     string
	cloneLocal CloneLocal
	fetch      *FetchOptions
	opts       []Option
}

// NewRepoBuilder returns a builder for a non-bare clone of the remote's
// default branch.
func NewRepoBuilder(opts ...Option) *RepoBuilder {
	return &RepoBuilder{opts: opts}
}

// Bare clones without a working tree.
func (b *RepoBuilder) Bare(bare bool) *RepoBuilder {
	b.bare = bare
	return b
}

// Branch checks out name instead of the remote's default branch.
func (b *RepoBuilder) Branch(name string) *RepoBuilder {
	b.branch = name
	return b
}

// CloneLocal controls how local sources are copied.
func (b *RepoBuilder) CloneLocal(mode CloneLocal) *RepoBuilder {
	b.cloneLocal = mode
	return b
}

// FetchOptions sets the options for the initial fetch, consuming them.
func (b *RepoBuilder) FetchOptions(opts *FetchOptions) error {
	if opts == nil {
		b.fetch = nil
		return nil
	}
	if err := opts.consume(); err != nil {
		return err
	}
	b.fetch = opts
	return nil
}

// Clone clones url into dir and opens the result.
func (b *RepoBuilder) Clone(ctx context.Context, url, dir string) (*Repository, error) {
	o := newOptions(b.opts)
	if err := o.prepare(); err != nil {
		return nil, err
	}
	dir = o.abs(dir)

	fetch := b.fetch
	if fetch == nil {
		fetch = &FetchOptions{}
	}
	callbacks := fetch.callbacks
	if callbacks == nil {
		callbacks = &RemoteCallbacks{}
	}

	auth, err := authFor(url, callbacks.credentials)
	if err != nil {
		return nil, err
	}

	if err := o.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, wrapError(err, "failed to create clone directory")
	}

	gitDir, workdir := dir, ""
	if !b.bare {
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

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cloneOpts := &gogit.CloneOptions{
		URL:             transportURL(url, b.cloneLocal),
		Auth:            auth,
		Depth:           fetch.depth,
		Progress:        &progressWriter{onFetch: callbacks.transfer, cancel: cancel, logger: o.logger},
		Tags:            fetch.tags.tagMode(),
		InsecureSkipTLS: fetch.insecureSkipTLS,
		ProxyOptions:    fetch.proxy,
	}
	if b.branch != "" {
		cloneOpts.ReferenceName = plumbing.NewBranchReferenceName(b.branch)
	}

	repo, err := gogit.CloneContext(ctx, core.storage, wt, cloneOpts)
	if err != nil {
		_ = core.storage.Close()
		return nil, wrapErrorf(err, "failed to clone %s", url)
	}
	core.repo = repo

	if cloneOpts.URL != url {
		if err := core.editConfig(func(cfg *config.Config) error {
			if rc, ok := cfg.Remotes[gogit.DefaultRemoteName]; ok {
				cfg.Raw.Section(remoteSection).Subsection(rc.Name).SetOption(urlKey, url)
			}
			return nil
		}); err != nil {
			return nil, err
		}
	}

	o.logger.Debug("cloned repository", "url", url, "path", gitDir, "bare", b.bare)
	return newRepository(core), nil
}
