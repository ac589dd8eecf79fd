package rundir

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/beam-cloud/runwatch/pkg/types"
)

// Probe answers read-only questions about a run directory.
// Every failure collapses into false, absent or an empty sequence, so callers
// see transient filesystem conditions as "not yet".
type Probe struct {
	root   string
	layout Layout
}

func NewProbe(root string, layout Layout) Probe {
	return Probe{root: root, layout: layout}
}

func (p Probe) Root() string {
	return p.root
}

func (p Probe) Layout() Layout {
	return p.layout
}

// IsAvailable returns true when the root is a directory whose entries can be read.
func (p Probe) IsAvailable() bool {
	f, err := os.Open(p.root)
	if err != nil {
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.IsDir() {
		return false
	}

	// An empty directory reads as io.EOF, which still counts as listable
	_, err = f.ReadDir(1)
	return err == nil || errors.Is(err, io.EOF)
}

// HasMarker returns true when any file for the given marker kind exists under the root.
func (p Probe) HasMarker(kind types.MarkerKind) bool {
	for _, name := range p.layout.markerFiles(kind) {
		if name == "" {
			continue
		}
		if isRegular(filepath.Join(p.root, name)) {
			return true
		}
	}
	return false
}

// Markers reports the presence of every known marker
func (p Probe) Markers() map[types.MarkerKind]bool {
	out := make(map[types.MarkerKind]bool, len(types.MarkerKinds))
	for _, kind := range types.MarkerKinds {
		out[kind] = p.HasMarker(kind)
	}
	return out
}

// CompletionFilePath returns the location of the completion status file if it exists.
func (p Probe) CompletionFilePath() (string, bool) {
	return p.File(p.layout.CompletionFile)
}

// SampleSheetPath returns the location of the sample sheet if it exists.
func (p Probe) SampleSheetPath() (string, bool) {
	return p.File(p.layout.SampleSheet)
}

// Files returns the paths of the started markers, sample sheet and completion
// status file that exist, keyed by file name.
func (p Probe) Files() map[string]string {
	out := make(map[string]string)
	for _, name := range p.layout.StartedMarkers {
		if path, ok := p.File(name); ok {
			out[name] = path
		}
	}
	if path, ok := p.SampleSheetPath(); ok {
		out[p.layout.SampleSheet] = path
	}
	if path, ok := p.CompletionFilePath(); ok {
		out[p.layout.CompletionFile] = path
	}
	return out
}

// File returns the path of a regular file directly under the root.
func (p Probe) File(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	path := filepath.Join(p.root, name)
	if !isRegular(path) {
		return "", false
	}
	return path, true
}

func isRegular(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

func readDir(path string) []fs.DirEntry {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil
	}
	return entries
}
