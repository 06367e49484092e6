package simplegit

import (
	"fmt"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	format "github.com/go-git/go-git/v5/plumbing/format/config"
	platformerrors "github.com/jmgilman/go/errors"
)

const (
	remoteSection = "remote"
	urlKey        = "url"
	pushURLKey    = "pushurl"
	pushKey       = "push"
)

// CreateRemote adds a remote with the default fetch refspec.
func (r *Repository) CreateRemote(name, url string) (*Remote, error) {
	if !IsValidRemoteName(name) {
		return nil, invalidInput("invalid remote name %q", name)
	}
	return r.deriveRemote(func(c *repoCore) (*gogit.Remote, error) {
		remote, err := c.repo.CreateRemote(&config.RemoteConfig{Name: name, URLs: []string{url}})
		if err != nil {
			return nil, wrapErrorf(err, "failed to create remote %s", name)
		}
		c.logger.Debug("created remote", "remote", name, "url", url)
		return remote, nil
	})
}

// DeleteRemote removes a remote and its remote-tracking references.
func (r *Repository) DeleteRemote(name string) error {
	core, err := r.load()
	if err != nil {
		return err
	}
	core.mu.RLock()
	defer core.mu.RUnlock()

	if err := core.repo.DeleteRemote(name); err != nil {
		return wrapErrorf(err, "failed to delete remote %s", name)
	}
	return core.moveTrackingRefs(name, "")
}

// RenameRemote renames a remote, its remote-tracking references and the
// branches tracking it. Fetch refspecs other than the default cannot be
// rewritten safely; they are returned unchanged for the caller to fix.
func (r *Repository) RenameRemote(oldName, newName string) ([]string, error) {
	if !IsValidRemoteName(newName) {
		return nil, invalidInput("invalid remote name %q", newName)
	}

	core, err := r.load()
	if err != nil {
		return nil, err
	}
	core.mu.RLock()
	defer core.mu.RUnlock()

	var problems []string
	err = core.editConfig(func(cfg *config.Config) error {
		rc, ok := cfg.Remotes[oldName]
		if !ok {
			return notFound("remote %s does not exist", oldName)
		}
		if _, ok := cfg.Remotes[newName]; ok {
			return platformerrors.Newf(platformerrors.CodeAlreadyExists, "remote %s already exists", newName)
		}

		oldDefault := config.RefSpec(fmt.Sprintf(config.DefaultFetchRefSpec, oldName))
		for i, spec := range rc.Fetch {
			if spec == oldDefault {
				rc.Fetch[i] = config.RefSpec(fmt.Sprintf(config.DefaultFetchRefSpec, newName))
				continue
			}
			problems = append(problems, spec.String())
		}

		cfg.Raw.Section(remoteSection).Subsection(oldName).Name = newName
		rc.Name = newName
		delete(cfg.Remotes, oldName)
		cfg.Remotes[newName] = rc

		for _, branch := range cfg.Branches {
			if branch.Remote == oldName {
				branch.Remote = newName
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := core.moveTrackingRefs(oldName, newName); err != nil {
		return nil, err
	}
	core.logger.Debug("renamed remote", "from", oldName, "to", newName)
	return problems, nil
}

// RemoteAddFetch appends a fetch refspec to a remote.
func (r *Repository) RemoteAddFetch(name, refspec string) error {
	spec := config.RefSpec(refspec)
	if err := spec.Validate(); err != nil {
		return invalidInput("invalid refspec %q: %v", refspec, err)
	}
	return r.editRemote(name, func(rc *config.RemoteConfig, _ *format.Subsection) {
		rc.Fetch = append(rc.Fetch, spec)
	})
}

// RemoteAddPush appends a push refspec to a remote.
func (r *Repository) RemoteAddPush(name, refspec string) error {
	if err := config.RefSpec(refspec).Validate(); err != nil {
		return invalidInput("invalid refspec %q: %v", refspec, err)
	}
	return r.editRemote(name, func(_ *config.RemoteConfig, raw *format.Subsection) {
		raw.AddOption(pushKey, refspec)
	})
}

// RemoteSetURL replaces a remote's fetch URL.
func (r *Repository) RemoteSetURL(name, url string) error {
	return r.editRemote(name, func(_ *config.RemoteConfig, raw *format.Subsection) {
		raw.SetOption(urlKey, url)
	})
}

// RemoteSetPushURL sets a separate push URL. An empty url removes it.
func (r *Repository) RemoteSetPushURL(name, url string) error {
	return r.editRemote(name, func(_ *config.RemoteConfig, raw *format.Subsection) {
		if url == "" {
			raw.RemoveOption(pushURLKey)
			return
		}
		raw.SetOption(pushURLKey, url)
	})
}

func (r *Repository) editRemote(name string, edit func(*config.RemoteConfig, *format.Subsection)) error {
	core, err := r.load()
	if err != nil {
		return err
	}
	core.mu.RLock()
	defer core.mu.RUnlock()

	return core.editConfig(func(cfg *config.Config) error {
		rc, ok := cfg.Remotes[name]
		if !ok {
			return notFound("remote %s does not exist", name)
		}
		edit(rc, cfg.Raw.Section(remoteSection).Subsection(name))
		return nil
	})
}

// editConfig applies edit to the repository config and saves it. Remote URLs
// are taken from the raw url options on save, since go-git folds push URLs
// into them when reading.
func (c *repoCore) editConfig(edit func(*config.Config) error) error {
	cfg, err := c.repo.Config()
	if err != nil {
		return wrapError(err, "failed to read config")
	}
	if err := edit(cfg); err != nil {
		return err
	}

	remotes := cfg.Raw.Section(remoteSection)
	for name, rc := range cfg.Remotes {
		if !remotes.HasSubsection(name) {
			continue
		}
		if urls := remotes.Subsection(name).Options.GetAll(urlKey); len(urls) > 0 {
			rc.URLs = urls
		}
	}

	if err := c.repo.SetConfig(cfg); err != nil {
		return wrapError(err, "failed to write config")
	}
	return nil
}

// moveTrackingRefs renames refs/remotes/<from>/ to refs/remotes/<to>/, or
// deletes them when to is empty. Callers hold the read lock.
func (c *repoCore) moveTrackingRefs(from, to string) error {
	oldPrefix := "refs/remotes/" + from + "/"
	newPrefix := "refs/remotes/" + to + "/"

	iter, err := c.storage.IterReferences()
	if err != nil {
		return wrapError(err, "failed to list references")
	}

	var moved []*plumbing.Reference
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if strings.HasPrefix(ref.Name().String(), oldPrefix) {
			moved = append(moved, ref)
		}
		return nil
	})
	if err != nil {
		return wrapError(err, "failed to list references")
	}

	for _, ref := range moved {
		if to != "" {
			name := plumbing.ReferenceName(newPrefix + strings.TrimPrefix(ref.Name().String(), oldPrefix))
			var next *plumbing.Reference
			if ref.Type() == plumbing.SymbolicReference {
				target := ref.Target().String()
				if strings.HasPrefix(target, oldPrefix) {
					target = newPrefix + strings.TrimPrefix(target, oldPrefix)
				}
				next = plumbing.NewSymbolicReference(name, plumbing.ReferenceName(target))
			} else {
				next = plumbing.NewHashReference(name, ref.Hash())
			}
			if err := c.storage.SetReference(next); err != nil {
				return wrapErrorf(err, "failed to write %s", name)
			}
		}
		if err := c.storage.RemoveReference(ref.Name()); err != nil {
			return wrapErrorf(err, "failed to remove %s", ref.Name())
		}
	}
	return nil
}
