package diff3

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_DisjointEditsMergeClean(t *testing.T) {
	base := []byte("one\ntwo\nthree\nfour\nfive\n")
	ours := []byte("ONE\ntwo\nthree\nfour\nfive\n")
	theirs := []byte("one\ntwo\nthree\nfour\nFIVE\n")

	res := Merge(base, ours, theirs)

	require.False(t, res.HasConflicts)
	assert.Equal(t, 0, res.Conflicts)
	assert.Equal(t, "ONE\ntwo\nthree\nfour\nFIVE\n", string(res.Merged))
}

func TestMerge_OneSideUnchanged(t *testing.T) {
	base := []byte("a\nb\nc\n")
	ours := []byte("a\nb2\nc\n")

	res := Merge(base, ours, base)
	require.False(t, res.HasConflicts)
	assert.Equal(t, string(ours), string(res.Merged))

	res = Merge(base, base, ours)
	require.False(t, res.HasConflicts)
	assert.Equal(t, string(ours), string(res.Merged))
}

func TestMerge_IdenticalEditsMergeClean(t *testing.T) {
	base := []byte("a\nb\nc\n")
	both := []byte("a\nB\nc\n")

	res := Merge(base, both, both)
	require.False(t, res.HasConflicts)
	assert.Equal(t, string(both), string(res.Merged))
}

func TestMerge_OverlappingEditsConflict(t *testing.T) {
	base := []byte("a\nb\nc\n")
	ours := []byte("a\nours\nc\n")
	theirs := []byte("a\ntheirs\nc\n")

	res := Merge(base, ours, theirs)

	require.True(t, res.HasConflicts)
	assert.Equal(t, 1, res.Conflicts)
	want := strings.Join([]string{
		"a",
		MarkerOurs,
		"ours",
		MarkerSep,
		"theirs",
		MarkerTheirs,
		"c",
	}, "\n") + "\n"
	assert.Equal(t, want, string(res.Merged))
}

func TestMerge_ConflictMarkersWellFormed(t *testing.T) {
	base := []byte("x\n1\ny\n2\nz\n")
	ours := []byte("x\nA\ny\nB\nz\n")
	theirs := []byte("x\nC\ny\nD\nz\n")

	res := Merge(base, ours, theirs)
	require.True(t, res.HasConflicts)
	assert.Equal(t, 2, res.Conflicts)

	lines := strings.Split(strings.TrimRight(string(res.Merged), "\n"), "\n")
	depth := 0
	sawSep := false
	for _, line := range lines {
		switch line {
		case MarkerOurs:
			require.Equal(t, 0, depth, "nested conflict start")
			depth = 1
			sawSep = false
		case MarkerSep:
			require.Equal(t, 1, depth, "separator outside conflict")
			require.False(t, sawSep, "double separator")
			sawSep = true
		case MarkerTheirs:
			require.Equal(t, 1, depth, "conflict end without start")
			require.True(t, sawSep, "conflict end without separator")
			depth = 0
		}
	}
	assert.Equal(t, 0, depth, "unterminated conflict block")
}

func TestMerge_BothAddDifferentContent(t *testing.T) {
	res := Merge(nil, []byte("mine\n"), []byte("yours\n"))

	require.True(t, res.HasConflicts)
	assert.Contains(t, string(res.Merged), MarkerOurs+"\nmine\n")
	assert.Contains(t, string(res.Merged), MarkerSep+"\nyours\n")
}

func TestMerge_DeletionOnOneSide(t *testing.T) {
	base := []byte("keep\ndrop\nkeep2\n")
	ours := []byte("keep\nkeep2\n")

	res := Merge(base, ours, base)
	require.False(t, res.HasConflicts)
	assert.Equal(t, "keep\nkeep2\n", string(res.Merged))
}

func TestMerge_HunksCoverDocument(t *testing.T) {
	base := []byte("a\nb\nc\n")
	ours := []byte("a\nX\nc\n")
	theirs := []byte("a\nY\nc\n")

	res := Merge(base, ours, theirs)
	require.True(t, res.HasConflicts)

	conflicted := 0
	for _, h := range res.Hunks {
		if h.Type == HunkConflict {
			conflicted++
			assert.Equal(t, "X\n", string(h.Ours))
			assert.Equal(t, "Y\n", string(h.Theirs))
			assert.Equal(t, "b\n", string(h.Base))
		}
	}
	assert.Equal(t, res.Conflicts, conflicted)
}

func TestHasMarkers(t *testing.T) {
	assert.False(t, HasMarkers([]byte("plain\ncontent\n")))
	assert.True(t, HasMarkers([]byte("a\n"+MarkerOurs+"\nx\n"+MarkerSep+"\ny\n"+MarkerTheirs+"\n")))
	// Indented markers are content, not conflicts.
	assert.False(t, HasMarkers([]byte("  "+MarkerOurs+"\n")))
}

func TestMerge_EmptyInputs(t *testing.T) {
	res := Merge(nil, nil, nil)
	require.False(t, res.HasConflicts)
	assert.Empty(t, res.Merged)

	res = Merge(nil, []byte("new\n"), nil)
	require.False(t, res.HasConflicts)
	assert.Equal(t, "new\n", string(res.Merged))
}
