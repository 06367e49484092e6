package simplegit

import (
	"strings"

	"github.com/gobwas/glob"
)

const globMeta = "*?[{\\"

// pathspec filters paths the way git pathspecs do: a literal matches the
// path itself and anything below it, a pattern is matched against the whole
// path with wildcards crossing slashes.
type pathspec struct {
	literals []string
	globs    []glob.Glob
	icase    bool
}

func compilePathspec(patterns []string, icase bool) (pathspec, error) {
	spec := pathspec{icase: icase}
	for _, p := range patterns {
		p = strings.TrimPrefix(p, "./")
		if icase {
			p = strings.ToLower(p)
		}
		if p == "" || p == "." {
			// Matches everything.
			return pathspec{icase: icase}, nil
		}

		if !strings.ContainsAny(p, globMeta) {
			spec.literals = append(spec.literals, strings.TrimSuffix(p, "/"))
			continue
		}

		g, err := glob.Compile(p)
		if err != nil {
			return pathspec{}, invalidInput("invalid pathspec %q: %v", p, err)
		}
		spec.globs = append(spec.globs, g)
	}
	return spec, nil
}

func (s pathspec) empty() bool {
	return len(s.literals) == 0 && len(s.globs) == 0
}

func (s pathspec) match(path string) bool {
	if s.empty() {
		return true
	}
	if s.icase {
		path = strings.ToLower(path)
	}

	for _, l := range s.literals {
		if path == l || strings.HasPrefix(path, l+"/") {
			return true
		}
	}
	for _, g := range s.globs {
		if g.Match(path) {
			return true
		}
	}
	return false
}
