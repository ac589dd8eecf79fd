package rundir

import (
	"path/filepath"

	"github.com/beam-cloud/runwatch/pkg/types"
)

const (
	DefaultRunInfo            = "RunInfo.xml"
	DefaultRunParameters      = "RunParameters.xml"
	DefaultRTAComplete        = "RTAComplete.txt"
	DefaultSequenceComplete   = "SequenceComplete.txt"
	DefaultCopyComplete       = "CopyComplete.txt"
	DefaultCompletionFile     = "RunCompletionStatus.xml"
	DefaultSampleSheet        = "SampleSheet.csv"
	DefaultBaseCallsDirectory = "Data/Intensities/BaseCalls"
)

// Layout names the files an instrument writes into a run directory.
type Layout struct {
	// Any one of these marks a run as started
	StartedMarkers         []string
	RTACompleteMarker      string
	SequenceCompleteMarker string
	CopyCompleteMarker     string
	CompletionFile         string
	SampleSheet            string
	BaseCallsDir           string
}

// DefaultLayout is the Illumina run folder layout
func DefaultLayout() Layout {
	return Layout{
		StartedMarkers:         []string{DefaultRunInfo, DefaultRunParameters},
		RTACompleteMarker:      DefaultRTAComplete,
		SequenceCompleteMarker: DefaultSequenceComplete,
		CopyCompleteMarker:     DefaultCopyComplete,
		CompletionFile:         DefaultCompletionFile,
		SampleSheet:            DefaultSampleSheet,
		BaseCallsDir:           DefaultBaseCallsDirectory,
	}
}

// LayoutFromConfig overlays configured names on the default layout. Empty values keep the default.
func LayoutFromConfig(cfg types.LayoutConfig) Layout {
	l := DefaultLayout()
	if len(cfg.StartedMarkers) > 0 {
		l.StartedMarkers = append([]string(nil), cfg.StartedMarkers...)
	}
	if cfg.RTACompleteMarker != "" {
		l.RTACompleteMarker = cfg.RTACompleteMarker
	}
	if cfg.SequenceCompleteMarker != "" {
		l.SequenceCompleteMarker = cfg.SequenceCompleteMarker
	}
	if cfg.CopyCompleteMarker != "" {
		l.CopyCompleteMarker = cfg.CopyCompleteMarker
	}
	if cfg.CompletionFile != "" {
		l.CompletionFile = cfg.CompletionFile
	}
	if cfg.SampleSheet != "" {
		l.SampleSheet = cfg.SampleSheet
	}
	if cfg.BaseCallsDir != "" {
		l.BaseCallsDir = filepath.FromSlash(cfg.BaseCallsDir)
	}
	return l
}

func (l Layout) markerFiles(kind types.MarkerKind) []string {
	switch kind {
	case types.MarkerStarted:
		return l.StartedMarkers
	case types.MarkerRTAComplete:
		return []string{l.RTACompleteMarker}
	case types.MarkerSequenceComplete:
		return []string{l.SequenceCompleteMarker}
	case types.MarkerCopyComplete:
		return []string{l.CopyCompleteMarker}
	}
	return nil
}
