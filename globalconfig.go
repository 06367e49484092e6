package simplegit

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/adrg/xdg"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

var globalConfig = sync.OnceValue(func() error {
	if runtime.GOOS != "linux" {
		return nil
	}
	return wrapError(createGlobalConfig(osfs.New("/"), xdg.Home, xdg.ConfigHome), "failed to prepare global git config")
})

// EnsureGlobalConfig makes sure a global git config file exists so that
// config lookups do not fail on hosts without one. It runs once per process;
// a failure is remembered and returned to every later caller.
func EnsureGlobalConfig() error {
	return globalConfig()
}

// createGlobalConfig writes an empty ~/.gitconfig unless it or the XDG git
// config already exists.
func createGlobalConfig(fs billy.Filesystem, home, configHome string) error {
	if home == "" {
		return errors.New("home directory is unknown")
	}

	gitconfig := filepath.Join(home, ".gitconfig")
	candidates := []string{gitconfig}
	if configHome != "" {
		candidates = append(candidates, filepath.Join(configHome, "git", "config"))
	}

	for _, path := range candidates {
		if _, err := fs.Stat(path); err == nil {
			return nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	f, err := fs.OpenFile(gitconfig, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil
		}
		return err
	}
	return f.Close()
}
