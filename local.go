package simplegit

import (
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/client"
	"github.com/go-git/go-git/v5/plumbing/transport/server"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// localScheme serves repositories on the local filesystem in process,
// without the git-upload-pack and git-receive-pack binaries the file
// transport needs.
const localScheme = "simplegit-local"

func init() {
	client.InstallProtocol(localScheme, server.NewClient(localLoader{fs: osfs.New("/")}))
}

// localLoader opens the repository at an endpoint's path, accepting both
// working trees and git directories.
type localLoader struct {
	fs billy.Filesystem
}

func (l localLoader) Load(ep *transport.Endpoint) (storer.Storer, error) {
	loc, ok := probe(l.fs, ep.Path, 0)
	if !ok {
		return nil, transport.ErrRepositoryNotFound
	}

	dot, err := l.fs.Chroot(loc.gitDir)
	if err != nil {
		return nil, err
	}
	return filesystem.NewStorage(dot, cache.NewObjectLRUDefault()), nil
}

// CloneLocal controls whether local paths bypass the git-aware transport.
type CloneLocal int

const (
	// CloneLocalAuto bypasses the transport for plain paths but not for
	// file:// URLs.
	CloneLocalAuto CloneLocal = iota
	// CloneLocalYes bypasses the transport for file:// URLs too.
	CloneLocalYes
	// CloneNoLocal always uses the git-aware transport, which requires git to
	// be installed.
	CloneNoLocal
	// CloneLocalNoLinks is CloneLocalYes. Objects are always copied, never
	// hard linked.
	CloneLocalNoLinks
)

// transportURL rewrites local remotes to the in-process transport when mode
// allows it. Other URLs are returned unchanged.
func transportURL(raw string, mode CloneLocal) string {
	ep, err := transport.NewEndpoint(raw)
	if err != nil || ep.Protocol != "file" {
		return raw
	}

	explicit := strings.HasPrefix(raw, "file://")
	switch {
	case mode == CloneNoLocal:
		return raw
	case mode == CloneLocalAuto && explicit:
		return raw
	}

	p := ep.Path
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	return localScheme + "://" + filepath.ToSlash(p)
}
