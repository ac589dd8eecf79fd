package rundir

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/beam-cloud/runwatch/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o644))
}

func newRun(t *testing.T) (string, Probe) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "20231231_foo_ABCXYZ")
	require.NoError(t, os.Mkdir(root, 0o755))
	return root, NewProbe(root, DefaultLayout())
}

func TestIsAvailable(t *testing.T) {
	root, p := newRun(t)
	assert.True(t, p.IsAvailable(), "empty directory is available")

	touch(t, filepath.Join(root, DefaultRunInfo))
	assert.True(t, p.IsAvailable())

	missing := NewProbe(filepath.Join(root, "nope"), DefaultLayout())
	assert.False(t, missing.IsAvailable())

	file := NewProbe(filepath.Join(root, DefaultRunInfo), DefaultLayout())
	assert.False(t, file.IsAvailable(), "a regular file is not a run root")
}

func TestHasMarker(t *testing.T) {
	root, p := newRun(t)

	for _, kind := range types.MarkerKinds {
		assert.False(t, p.HasMarker(kind), kind)
	}

	touch(t, filepath.Join(root, DefaultRunParameters))
	assert.True(t, p.HasMarker(types.MarkerStarted), "either started file counts")

	touch(t, filepath.Join(root, DefaultRTAComplete))
	touch(t, filepath.Join(root, DefaultCopyComplete))
	assert.True(t, p.HasMarker(types.MarkerRTAComplete))
	assert.True(t, p.HasMarker(types.MarkerCopyComplete))
	assert.False(t, p.HasMarker(types.MarkerSequenceComplete))
	assert.False(t, p.HasMarker(types.MarkerKind("unknown")))

	// A directory with a marker's name is not a marker
	require.NoError(t, os.Mkdir(filepath.Join(root, DefaultSequenceComplete), 0o755))
	assert.False(t, p.HasMarker(types.MarkerSequenceComplete))
}

func TestHasMarkerUnavailableRoot(t *testing.T) {
	p := NewProbe(filepath.Join(t.TempDir(), "missing"), DefaultLayout())
	for _, kind := range types.MarkerKinds {
		assert.False(t, p.HasMarker(kind))
	}
	_, ok := p.CompletionFilePath()
	assert.False(t, ok)
	assert.Empty(t, slices.Collect(p.Substructure(types.SubstructureLanes)))
}

func TestCompletionFilePath(t *testing.T) {
	root, p := newRun(t)

	_, ok := p.CompletionFilePath()
	assert.False(t, ok)

	touch(t, filepath.Join(root, DefaultCompletionFile))
	path, ok := p.CompletionFilePath()
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(root, DefaultCompletionFile), path)
}

func TestFile(t *testing.T) {
	root, p := newRun(t)
	touch(t, filepath.Join(root, DefaultSampleSheet))
	require.NoError(t, os.Mkdir(filepath.Join(root, DefaultRunParameters), 0o755))

	path, ok := p.File(DefaultSampleSheet)
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(root, DefaultSampleSheet), path)

	_, ok = p.File(DefaultRunInfo)
	assert.False(t, ok, "missing file")
	_, ok = p.File(DefaultRunParameters)
	assert.False(t, ok, "a directory is not a file")
	_, ok = p.File("")
	assert.False(t, ok)

	path, ok = p.SampleSheetPath()
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(root, DefaultSampleSheet), path)
}

func TestFiles(t *testing.T) {
	root, p := newRun(t)
	assert.Empty(t, p.Files())

	touch(t, filepath.Join(root, DefaultRunParameters))
	touch(t, filepath.Join(root, DefaultSampleSheet))
	touch(t, filepath.Join(root, DefaultCopyComplete))
	assert.Equal(t, map[string]string{
		DefaultRunParameters: filepath.Join(root, DefaultRunParameters),
		DefaultSampleSheet:   filepath.Join(root, DefaultSampleSheet),
	}, p.Files(), "markers that are not started markers are not listed")

	complete := NewProbe("../runstate/test_data/seq_complete", DefaultLayout())
	files := complete.Files()
	assert.Len(t, files, 3)
	assert.Contains(t, files, DefaultRunInfo)
	assert.Contains(t, files, DefaultSampleSheet)
	assert.Contains(t, files, DefaultCompletionFile)
}

func TestLayoutFromConfig(t *testing.T) {
	l := LayoutFromConfig(types.LayoutConfig{
		StartedMarkers: []string{"Started.txt"},
		CompletionFile: "Done.xml",
	})
	assert.Equal(t, []string{"Started.txt"}, l.StartedMarkers)
	assert.Equal(t, "Done.xml", l.CompletionFile)
	assert.Equal(t, DefaultCopyComplete, l.CopyCompleteMarker)
	assert.Equal(t, filepath.FromSlash(DefaultBaseCallsDirectory), filepath.FromSlash(l.BaseCallsDir))

	root, _ := newRun(t)
	p := NewProbe(root, l)
	touch(t, filepath.Join(root, DefaultRunInfo))
	assert.False(t, p.HasMarker(types.MarkerStarted))
	touch(t, filepath.Join(root, "Started.txt"))
	assert.True(t, p.HasMarker(types.MarkerStarted))
}

func buildBaseCalls(t *testing.T, root string) {
	t.Helper()
	bc := filepath.Join(root, filepath.FromSlash(DefaultBaseCallsDirectory))
	for _, lane := range []string{"L001", "L002"} {
		touch(t, filepath.Join(bc, lane, "s_1_1101.filter"))
		touch(t, filepath.Join(bc, lane, "C1.1", "L001_1.cbcl"))
		touch(t, filepath.Join(bc, lane, "C1.1", "L001_2.cbcl.gz"))
		touch(t, filepath.Join(bc, lane, "C2.1", "s_1_1101.bcl.gz"))
		touch(t, filepath.Join(bc, lane, "C2.1", "notes.txt"))
		require.NoError(t, os.MkdirAll(filepath.Join(bc, lane, "Cx.1"), 0o755))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(bc, "Matrix"), 0o755))
	touch(t, filepath.Join(bc, "L003"))
}

func TestSubstructure(t *testing.T) {
	root, p := newRun(t)
	buildBaseCalls(t, root)

	lanes := slices.Sorted(p.Substructure(types.SubstructureLanes))
	assert.Equal(t, []string{"L001", "L002"}, lanes)

	cycles := slices.Sorted(p.Substructure(types.SubstructureCycles))
	assert.Equal(t, []string{"L001/C1.1", "L001/C2.1", "L002/C1.1", "L002/C2.1"}, cycles)

	blocks := slices.Collect(p.Substructure(types.SubstructureDataBlocks))
	assert.Len(t, blocks, 6)
	assert.Contains(t, blocks, "L002/C2.1/s_1_1101.bcl.gz")

	filters := slices.Sorted(p.Substructure(types.SubstructureFilters))
	assert.Equal(t, []string{"L001/s_1_1101.filter", "L002/s_1_1101.filter"}, filters)

	assert.Empty(t, slices.Collect(p.Substructure(types.SubstructureKind("tiles"))))
}

func TestSubstructureStopsEarly(t *testing.T) {
	root, p := newRun(t)
	buildBaseCalls(t, root)

	n := 0
	for range p.Substructure(types.SubstructureDataBlocks) {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestCycleNumber(t *testing.T) {
	tests := []struct {
		name string
		want int
		ok   bool
	}{
		{"C25.1", 25, true},
		{"C1.1", 1, true},
		{"C310", 310, true},
		{"Cx.1", 0, false},
		{"L001", 0, false},
		{"C", 0, false},
	}
	for _, tt := range tests {
		got, ok := CycleNumber(tt.name)
		assert.Equal(t, tt.ok, ok, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}
}

func TestSummarize(t *testing.T) {
	root, p := newRun(t)
	buildBaseCalls(t, root)
	touch(t, filepath.Join(root, DefaultRTAComplete))

	s := Summarize(p)
	assert.Equal(t, root, s.Root)
	assert.True(t, s.Markers[types.MarkerRTAComplete])
	assert.False(t, s.Markers[types.MarkerStarted])
	assert.Empty(t, s.Files)
	require.Len(t, s.Lanes, 2)
	assert.Equal(t, LaneSummary{Lane: "L001", Cycles: 2, LastCycle: 2, DataBlocks: 3, Filters: 1}, s.Lanes[0])
	assert.Equal(t, "L002", s.Lanes[1].Lane)
}
