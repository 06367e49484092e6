package simplegit

import (
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	gogit "github.com/go-git/go-git/v5"
)

// OpenFlags control how OpenExt looks for a repository.
type OpenFlags uint

const (
	// OpenNoSearch only looks at the given path.
	OpenNoSearch OpenFlags = 1 << iota
	// OpenCrossFS is accepted for compatibility. billy exposes no device
	// information, so the search always crosses filesystem boundaries.
	OpenCrossFS
	// OpenBare opens the repository without a working tree.
	OpenBare
	// OpenNoDotGit does not look for a .git entry inside each directory.
	OpenNoDotGit
	// OpenFromEnv honours GIT_DIR, GIT_WORK_TREE and GIT_CEILING_DIRECTORIES.
	OpenFromEnv
)

type location struct {
	gitDir  string
	workdir string
}

func (o *options) abs(p string) string {
	if o.customFS {
		return path.Clean(p)
	}
	if a, err := filepath.Abs(p); err == nil {
		return filepath.ToSlash(a)
	}
	return path.Clean(p)
}

func locate(o *options, start string, flags OpenFlags, ceilings []string) (location, error) {
	if flags&OpenFromEnv != 0 {
		if dir := os.Getenv("GIT_DIR"); dir != "" {
			loc := location{gitDir: o.abs(dir)}
			if wt := os.Getenv("GIT_WORK_TREE"); wt != "" && flags&OpenBare == 0 {
				loc.workdir = o.abs(wt)
			}
			return loc, nil
		}
		if env := os.Getenv("GIT_CEILING_DIRECTORIES"); env != "" {
			ceilings = append(ceilings, filepath.SplitList(env)...)
		}
	}

	stops := make(map[string]struct{}, len(ceilings))
	for _, c := range ceilings {
		stops[o.abs(c)] = struct{}{}
	}

	dir := start
	for {
		if loc, ok := probe(o.fs, dir, flags); ok {
			if flags&OpenBare != 0 {
				loc.workdir = ""
			}
			return loc, nil
		}
		if flags&OpenNoSearch != 0 {
			break
		}

		parent := path.Dir(dir)
		if parent == dir {
			break
		}
		if _, ok := stops[parent]; ok {
			break
		}
		dir = parent
	}

	return location{}, gogit.ErrRepositoryNotExists
}

// probe checks whether dir is a working tree or a git directory.
func probe(fs billy.Filesystem, dir string, flags OpenFlags) (location, bool) {
	if flags&OpenNoDotGit == 0 {
		dotGit := path.Join(dir, gogit.GitDirName)
		if info, err := fs.Stat(dotGit); err == nil {
			if info.IsDir() && isGitDir(fs, dotGit) {
				return location{gitDir: dotGit, workdir: dir}, true
			}
			if !info.IsDir() {
				if target, ok := readGitLink(fs, dotGit); ok {
					return location{gitDir: target, workdir: dir}, true
				}
			}
		}
	}

	if isGitDir(fs, dir) {
		loc := location{gitDir: dir}
		if path.Base(dir) == gogit.GitDirName {
			loc.workdir = path.Dir(dir)
		}
		return loc, true
	}
	return location{}, false
}

func isGitDir(fs billy.Filesystem, dir string) bool {
	if _, err := fs.Stat(path.Join(dir, "HEAD")); err != nil {
		return false
	}
	if info, err := fs.Stat(path.Join(dir, "objects")); err == nil && info.IsDir() {
		return true
	}
	_, ok := readCommonDir(fs, dir)
	return ok
}

// readGitLink parses a .git file of the form "gitdir: <path>".
func readGitLink(fs billy.Filesystem, file string) (string, bool) {
	f, err := fs.Open(file)
	if err != nil {
		return "", false
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", false
	}

	line := strings.TrimSpace(string(data))
	target, ok := strings.CutPrefix(line, "gitdir: ")
	if !ok || target == "" {
		return "", false
	}
	if !path.IsAbs(target) {
		target = path.Join(path.Dir(file), target)
	}
	return target, true
}
