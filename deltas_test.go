package simplegit

import (
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/stretchr/testify/assert"
)

func file(path, id string) DiffFile {
	if id == "" {
		return DiffFile{path: path}
	}
	return DiffFile{path: path, id: plumbing.NewHash(id), mode: filemode.Regular, exists: true}
}

const (
	idA = "1111111111111111111111111111111111111111"
	idB = "2222222222222222222222222222222222222222"
	idC = "3333333333333333333333333333333333333333"
)

func TestMergeDelta(t *testing.T) {
	tests := []struct {
		name       string
		staged     DiffDelta
		unstaged   DiffDelta
		wantStatus DeltaStatus
		wantOld    string
		wantNew    string
	}{
		{
			name:       "modified twice keeps original old side",
			staged:     DiffDelta{DeltaModified, file("f", idA), file("f", idB)},
			unstaged:   DiffDelta{DeltaModified, file("f", idB), file("f", idC)},
			wantStatus: DeltaModified,
			wantOld:    idA,
			wantNew:    idC,
		},
		{
			name:       "added then modified stays added",
			staged:     DiffDelta{DeltaAdded, file("f", ""), file("f", idB)},
			unstaged:   DiffDelta{DeltaModified, file("f", idB), file("f", idC)},
			wantStatus: DeltaAdded,
			wantNew:    idC,
		},
		{
			name:       "added then deleted cancels out",
			staged:     DiffDelta{DeltaAdded, file("f", ""), file("f", idB)},
			unstaged:   DiffDelta{DeltaDeleted, file("f", idB), file("f", "")},
			wantStatus: DeltaUnmodified,
		},
		{
			name:       "modified then deleted is deleted",
			staged:     DiffDelta{DeltaModified, file("f", idA), file("f", idB)},
			unstaged:   DiffDelta{DeltaDeleted, file("f", idB), file("f", "")},
			wantStatus: DeltaDeleted,
			wantOld:    idA,
		},
		{
			name:       "deleted wins over later changes",
			staged:     DiffDelta{DeltaDeleted, file("f", idA), file("f", "")},
			unstaged:   DiffDelta{DeltaUntracked, file("f", ""), file("f", idC)},
			wantStatus: DeltaDeleted,
			wantOld:    idA,
		},
		{
			name:       "conflict wins",
			staged:     DiffDelta{DeltaModified, file("f", idA), file("f", idB)},
			unstaged:   DiffDelta{DeltaConflicted, file("f", idB), file("f", idC)},
			wantStatus: DeltaConflicted,
			wantOld:    idB,
			wantNew:    idC,
		},
		{
			name:       "unmodified staged side takes unstaged",
			staged:     DiffDelta{DeltaUnmodified, file("f", idA), file("f", idA)},
			unstaged:   DiffDelta{DeltaModified, file("f", idA), file("f", idC)},
			wantStatus: DeltaModified,
			wantOld:    idA,
			wantNew:    idC,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mergeDelta(tt.staged, tt.unstaged)
			assert.Equal(t, tt.wantStatus, got.Status())
			if tt.wantOld != "" {
				assert.Equal(t, plumbing.NewHash(tt.wantOld), got.OldFile().ID())
			}
			if tt.wantNew != "" {
				assert.Equal(t, plumbing.NewHash(tt.wantNew), got.NewFile().ID())
			}
		})
	}
}

func TestMergeDeltas_Sorted(t *testing.T) {
	onto := []DiffDelta{
		{DeltaAdded, file("b", ""), file("b", idB)},
	}
	from := []DiffDelta{
		{DeltaModified, file("a", idA), file("a", idC)},
		{DeltaDeleted, file("b", idB), file("b", "")},
		{DeltaUntracked, file("C", ""), file("C", idC)},
	}

	got := mergeDeltas(onto, from, true)
	paths := make([]string, len(got))
	for i, d := range got {
		paths[i] = d.path()
	}
	assert.Equal(t, []string{"a", "C"}, paths)
}

func TestDeltaStatus_String(t *testing.T) {
	assert.Equal(t, "added", DeltaAdded.String())
	assert.Equal(t, "typechange", DeltaTypechange.String())
}

func TestDiffDelta_NumFiles(t *testing.T) {
	assert.Equal(t, 1, DiffDelta{DeltaAdded, file("f", ""), file("f", idA)}.NumFiles())
	assert.Equal(t, 2, DiffDelta{DeltaModified, file("f", idA), file("f", idB)}.NumFiles())
}
