package simplegit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathspec(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		icase    bool
		path     string
		want     bool
	}{
		{"empty matches everything", nil, false, "any/file", true},
		{"dot matches everything", []string{"."}, false, "any/file", true},
		{"literal file", []string{"README.md"}, false, "README.md", true},
		{"literal is not a prefix match", []string{"READ"}, false, "README.md", false},
		{"literal directory", []string{"docs"}, false, "docs/guide.md", true},
		{"literal directory with slash", []string{"docs/"}, false, "docs/guide.md", true},
		{"leading dot slash", []string{"./docs"}, false, "docs/guide.md", true},
		{"glob crosses slashes", []string{"*.go"}, false, "cmd/main.go", true},
		{"glob miss", []string{"*.go"}, false, "README.md", false},
		{"case sensitive", []string{"readme.md"}, false, "README.md", false},
		{"case insensitive", []string{"readme.md"}, true, "README.md", true},
		{"any of several", []string{"a", "b"}, false, "b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := compilePathspec(tt.patterns, tt.icase)
			require.NoError(t, err)
			assert.Equal(t, tt.want, spec.match(tt.path))
		})
	}
}

func TestPathspec_InvalidGlob(t *testing.T) {
	_, err := compilePathspec([]string{"[unclosed"}, false)
	assert.Error(t, err)
}
