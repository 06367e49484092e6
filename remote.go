package simplegit

import (
	"context"
	"errors"
	"sort"
	"sync"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/jmgilman/go/simplegit/internal/handle"
)

// Direction is the direction of a remote connection.
type Direction int

const (
	// DirectionFetch reads from the remote.
	DirectionFetch Direction = iota
	// DirectionPush writes to the remote.
	DirectionPush
)

type remoteState struct {
	mu            sync.Mutex
	remote        *gogit.Remote
	name          string
	connected     bool
	advertised    []*plumbing.Reference
	defaultBranch string
	cancel        context.CancelFunc
}

// Remote is a configured remote of a repository.
type Remote struct {
	ref    *handle.Ref[*remoteState]
	core   *repoCore
	parent ParentKind
}

func newRemote(ref *handle.Ref[*remoteState], core *repoCore, parent ParentKind) *Remote {
	r := &Remote{ref: ref, core: core, parent: parent}
	handle.Track(r, ref)
	return r
}

// IsValidRemoteName reports whether name can be used as a remote name.
func IsValidRemoteName(name string) bool {
	if name == "" {
		return false
	}
	return plumbing.NewRemoteReferenceName(name, "test").Validate() == nil
}

// Remotes lists the names of the configured remotes, sorted.
func (r *Repository) Remotes() ([]string, error) {
	core, err := r.load()
	if err != nil {
		return nil, err
	}
	core.mu.RLock()
	defer core.mu.RUnlock()

	cfg, err := core.repo.Config()
	if err != nil {
		return nil, wrapError(err, "failed to read config")
	}

	names := make([]string, 0, len(cfg.Remotes))
	for name := range cfg.Remotes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Remote looks up a configured remote by name.
func (r *Repository) Remote(name string) (*Remote, error) {
	return r.deriveRemote(func(c *repoCore) (*gogit.Remote, error) {
		remote, err := c.repo.Remote(name)
		if err != nil {
			return nil, wrapErrorf(err, "failed to get remote %s", name)
		}
		return remote, nil
	})
}

func (r *Repository) deriveRemote(fn func(*repoCore) (*gogit.Remote, error)) (*Remote, error) {
	var core *repoCore
	ref, err := handle.Derive(r.ref, func(c *repoCore) (*remoteState, error) {
		c.mu.RLock()
		defer c.mu.RUnlock()

		core = c
		remote, err := fn(c)
		if err != nil {
			return nil, err
		}
		return &remoteState{remote: remote, name: remote.Config().Name}, nil
	})
	if err != nil {
		return nil, classifyError(err)
	}
	return newRemote(ref, core, ParentRepository), nil
}

func (r *Remote) state() (*remoteState, error) {
	s, err := r.ref.Get()
	if err != nil {
		return nil, wrapError(err, "remote is not available")
	}
	return s, nil
}

// Close drops the hold on the remote.
func (r *Remote) Close() error {
	return r.ref.Close()
}

// ParentKind reports what the remote was derived from.
func (r *Remote) ParentKind() ParentKind {
	return r.parent
}

// Name returns the remote name.
func (r *Remote) Name() (string, error) {
	s, err := r.state()
	if err != nil {
		return "", err
	}
	return s.name, nil
}

// URL returns the fetch URL.
func (r *Remote) URL() (string, bool, error) {
	return r.option(urlKey)
}

// PushURL returns the push URL. ok is false when pushes go to URL.
func (r *Remote) PushURL() (string, bool, error) {
	return r.option(pushURLKey)
}

func (r *Remote) option(key string) (string, bool, error) {
	s, err := r.state()
	if err != nil {
		return "", false, err
	}

	r.core.mu.RLock()
	defer r.core.mu.RUnlock()

	cfg, err := r.core.repo.Config()
	if err != nil {
		return "", false, wrapError(err, "failed to read config")
	}
	if !cfg.Raw.Section(remoteSection).HasSubsection(s.name) {
		return "", false, notFound("remote %s is no longer configured", s.name)
	}

	value := cfg.Raw.Section(remoteSection).Subsection(s.name).Option(key)
	return value, value != "", nil
}

// Refspecs returns the configured fetch refspecs followed by the push
// refspecs.
func (r *Remote) Refspecs() ([]string, error) {
	s, err := r.state()
	if err != nil {
		return nil, err
	}

	r.core.mu.RLock()
	defer r.core.mu.RUnlock()

	cfg, err := r.core.repo.Config()
	if err != nil {
		return nil, wrapError(err, "failed to read config")
	}
	rc, ok := cfg.Remotes[s.name]
	if !ok {
		return nil, notFound("remote %s is no longer configured", s.name)
	}

	var specs []string
	for _, spec := range rc.Fetch {
		specs = append(specs, spec.String())
	}
	specs = append(specs, cfg.Raw.Section(remoteSection).Subsection(s.name).Options.GetAll(pushKey)...)
	return specs, nil
}

// endpoint returns the URL used for dir.
func (r *Remote) endpoint(dir Direction) (string, error) {
	if dir == DirectionPush {
		if url, ok, err := r.PushURL(); err != nil || ok {
			return url, err
		}
	}

	url, ok, err := r.URL()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", wrapError(gogit.ErrMissingURL, "remote has no url")
	}
	return url, nil
}

// begin registers an in-flight network call so Stop can cancel it.
func (s *remoteState) begin(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	return ctx, func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
		cancel()
	}
}

// Connect contacts the remote and records the references it advertises.
func (r *Remote) Connect(ctx context.Context, dir Direction, cbs *RemoteCallbacks) error {
	callbacks, err := cbs.take()
	if err != nil {
		return err
	}
	s, err := r.state()
	if err != nil {
		return err
	}

	url, err := r.endpoint(dir)
	if err != nil {
		return err
	}
	auth, err := authFor(url, callbacks.credentials)
	if err != nil {
		return err
	}

	ctx, done := s.begin(ctx)
	defer done()

	r.core.mu.RLock()
	lister := gogit.NewRemote(r.core.storage, &config.RemoteConfig{
		Name: s.name,
		URLs: []string{transportURL(url, CloneLocalAuto)},
	})
	r.core.mu.RUnlock()

	refs, err := lister.ListContext(ctx, &gogit.ListOptions{Auth: auth})
	if err != nil {
		return wrapErrorf(err, "failed to connect to remote %s", s.name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	s.advertised = refs
	for _, ref := range refs {
		if ref.Name() == plumbing.HEAD && ref.Type() == plumbing.SymbolicReference {
			s.defaultBranch = ref.Target().String()
		}
	}

	r.core.logger.Debug("connected to remote", "remote", s.name, "refs", len(refs))
	return nil
}

// Connected reports whether Connect succeeded and Disconnect has not been
// called since.
func (r *Remote) Connected() bool {
	s, err := r.state()
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Disconnect forgets the connection. The default branch stays available.
func (r *Remote) Disconnect() error {
	s, err := r.state()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connected = false
	s.advertised = nil
	return nil
}

// Stop cancels the network call in progress, if any.
func (r *Remote) Stop() error {
	s, err := r.state()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

// DefaultBranch returns the branch the remote's HEAD points at. The remote
// must have been connected at least once.
func (r *Remote) DefaultBranch() (string, error) {
	s, err := r.state()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.defaultBranch == "" {
		return "", notFound("remote %s has not advertised a default branch", s.name)
	}
	return s.defaultBranch, nil
}

// Fetch downloads objects and updates remote-tracking references. Empty
// refspecs use the configured ones. reflogMessage is recorded in the debug
// log only, as references carry no reflog here.
//
// Example:
//
//	opts := simplegit.NewFetchOptions().Depth(1)
//	err := remote.Fetch(ctx, nil, opts, "")
func (r *Remote) Fetch(ctx context.Context, refspecs []string, opts *FetchOptions, reflogMessage string) error {
	o, err := opts.take()
	if err != nil {
		return err
	}
	s, err := r.state()
	if err != nil {
		return err
	}

	specs, err := parseRefSpecs(refspecs)
	if err != nil {
		return err
	}
	url, err := r.endpoint(DirectionFetch)
	if err != nil {
		return err
	}
	auth, err := authFor(url, o.callbacks.credentials)
	if err != nil {
		return err
	}

	ctx, done := s.begin(ctx)
	defer done()

	progress := &progressWriter{onFetch: o.callbacks.transfer, cancel: s.cancelFunc(), logger: r.core.logger}
	r.core.mu.RLock()
	err = s.remote.FetchContext(ctx, &gogit.FetchOptions{
		RemoteName:      s.name,
		RemoteURL:       transportURL(url, CloneLocalAuto),
		RefSpecs:        specs,
		Depth:           o.depth,
		Auth:            auth,
		Progress:        progress,
		Tags:            o.tags.tagMode(),
		InsecureSkipTLS: o.insecureSkipTLS,
		ProxyOptions:    o.proxy,
		Prune:           o.prune,
	})
	r.core.mu.RUnlock()
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return wrapErrorf(err, "failed to fetch from remote %s", s.name)
	}

	r.core.logger.Debug("fetched from remote", "remote", s.name, "message", reflogMessage)
	return nil
}

func (s *remoteState) cancelFunc() context.CancelFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel
}

// UpdateTips points remote-tracking references at the tips advertised by
// the last Connect, for tips whose objects are already present locally.
func (r *Remote) UpdateTips() error {
	s, err := r.state()
	if err != nil {
		return err
	}
	s.mu.Lock()
	advertised := s.advertised
	s.mu.Unlock()

	r.core.mu.RLock()
	defer r.core.mu.RUnlock()

	cfg, err := r.core.repo.Config()
	if err != nil {
		return wrapError(err, "failed to read config")
	}
	rc, ok := cfg.Remotes[s.name]
	if !ok {
		return notFound("remote %s is no longer configured", s.name)
	}

	for _, ref := range advertised {
		if ref.Type() != plumbing.HashReference || ref.Name() == plumbing.HEAD {
			continue
		}
		if r.core.storage.HasEncodedObject(ref.Hash()) != nil {
			continue
		}
		for _, spec := range rc.Fetch {
			if !spec.Match(ref.Name()) {
				continue
			}
			dst := plumbing.NewHashReference(spec.Dst(ref.Name()), ref.Hash())
			if err := r.core.storage.SetReference(dst); err != nil {
				return wrapErrorf(err, "failed to update %s", dst.Name())
			}
		}
	}
	return nil
}

// Push uploads local references to the remote. Empty refspecs use the
// configured push refspecs.
func (r *Remote) Push(ctx context.Context, refspecs []string, opts *PushOptions) error {
	o, err := opts.take()
	if err != nil {
		return err
	}
	s, err := r.state()
	if err != nil {
		return err
	}

	if len(refspecs) == 0 {
		if refspecs, err = r.pushRefspecs(s.name); err != nil {
			return err
		}
	}
	specs, err := parseRefSpecs(refspecs)
	if err != nil {
		return err
	}
	url, err := r.endpoint(DirectionPush)
	if err != nil {
		return err
	}
	auth, err := authFor(url, o.callbacks.credentials)
	if err != nil {
		return err
	}

	ctx, done := s.begin(ctx)
	defer done()

	progress := &progressWriter{onPush: o.callbacks.pushTransfer, cancel: s.cancelFunc(), logger: r.core.logger}
	r.core.mu.RLock()
	err = s.remote.PushContext(ctx, &gogit.PushOptions{
		RemoteName:   s.name,
		RemoteURL:    transportURL(url, CloneLocalAuto),
		RefSpecs:     specs,
		Auth:         auth,
		Progress:     progress,
		Force:        o.force,
		ProxyOptions: o.proxy,
	})
	r.core.mu.RUnlock()
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return wrapErrorf(err, "failed to push to remote %s", s.name)
	}

	r.core.logger.Debug("pushed to remote", "remote", s.name)
	return nil
}

func (r *Remote) pushRefspecs(name string) ([]string, error) {
	r.core.mu.RLock()
	defer r.core.mu.RUnlock()

	cfg, err := r.core.repo.Config()
	if err != nil {
		return nil, wrapError(err, "failed to read config")
	}
	return cfg.Raw.Section(remoteSection).Subsection(name).Options.GetAll(pushKey), nil
}

func parseRefSpecs(specs []string) ([]config.RefSpec, error) {
	out := make([]config.RefSpec, 0, len(specs))
	for _, s := range specs {
		spec := config.RefSpec(s)
		if err := spec.Validate(); err != nil {
			return nil, invalidInput("invalid refspec %q: %v", s, err)
		}
		out = append(out, spec)
	}
	return out, nil
}
