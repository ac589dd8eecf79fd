package types

import (
	"path/filepath"
	"time"
)

// RunState is an immutable snapshot of a run directory at one poll
type RunState struct {
	Phase      Phase             `json:"phase" yaml:"phase"`
	Available  bool              `json:"available" yaml:"available"`
	Root       string            `json:"root" yaml:"root"`
	Since      time.Time         `json:"since" yaml:"since"`
	Completion *CompletionStatus `json:"completion,omitempty" yaml:"completion,omitempty"`
}

// Name is the run directory's base name, used as its identifier
func (s RunState) Name() string {
	return RunName(s.Root)
}

// Equal compares two snapshots field by field
func (s RunState) Equal(o RunState) bool {
	if s.Phase != o.Phase || s.Available != o.Available || s.Root != o.Root || !s.Since.Equal(o.Since) {
		return false
	}
	if s.Completion == nil || o.Completion == nil {
		return s.Completion == o.Completion
	}
	return *s.Completion == *o.Completion
}

// RunName derives the identifier of a run from its root path
func RunName(root string) string {
	return filepath.Base(filepath.Clean(root))
}

// MarkerKind identifies a lifecycle marker an instrument drops into a run directory
type MarkerKind string

const (
	MarkerStarted          MarkerKind = "started"
	MarkerRTAComplete      MarkerKind = "rta_complete"
	MarkerSequenceComplete MarkerKind = "sequence_complete"
	MarkerCopyComplete     MarkerKind = "copy_complete"
)

// MarkerKinds lists every marker in lifecycle order
var MarkerKinds = []MarkerKind{
	MarkerStarted,
	MarkerRTAComplete,
	MarkerSequenceComplete,
	MarkerCopyComplete,
}

// SubstructureKind selects which internal entries of a run to enumerate
type SubstructureKind string

const (
	SubstructureLanes      SubstructureKind = "lanes"
	SubstructureCycles     SubstructureKind = "cycles"
	SubstructureDataBlocks SubstructureKind = "blocks"
	SubstructureFilters    SubstructureKind = "filters"
)

func ParseSubstructureKind(s string) (SubstructureKind, bool) {
	switch k := SubstructureKind(s); k {
	case SubstructureLanes, SubstructureCycles, SubstructureDataBlocks, SubstructureFilters:
		return k, true
	}
	return "", false
}
