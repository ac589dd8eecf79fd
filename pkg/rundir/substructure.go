package rundir

import (
	"iter"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/beam-cloud/runwatch/pkg/types"
)

var dataBlockSuffixes = []string{".bcl", ".bcl.gz", ".cbcl", ".cbcl.gz"}

const filterSuffix = ".filter"

// Substructure lazily enumerates internal entries of the run. Identifiers are
// slash-separated paths relative to the base calls directory. Any read error
// shortens the sequence instead of failing it.
func (p Probe) Substructure(kind types.SubstructureKind) iter.Seq[string] {
	switch kind {
	case types.SubstructureLanes:
		return p.lanes()
	case types.SubstructureCycles:
		return p.cycles()
	case types.SubstructureDataBlocks:
		return p.dataBlocks()
	case types.SubstructureFilters:
		return p.filters()
	}
	return func(func(string) bool) {}
}

func (p Probe) baseCalls() string {
	return filepath.Join(p.root, p.layout.BaseCallsDir)
}

func (p Probe) lanes() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, e := range readDir(p.baseCalls()) {
			if e.IsDir() && IsLaneName(e.Name()) {
				if !yield(e.Name()) {
					return
				}
			}
		}
	}
}

func (p Probe) cycles() iter.Seq[string] {
	return func(yield func(string) bool) {
		for lane := range p.lanes() {
			for _, e := range readDir(filepath.Join(p.baseCalls(), lane)) {
				if !e.IsDir() {
					continue
				}
				if _, ok := CycleNumber(e.Name()); !ok {
					continue
				}
				if !yield(path.Join(lane, e.Name())) {
					return
				}
			}
		}
	}
}

func (p Probe) dataBlocks() iter.Seq[string] {
	return func(yield func(string) bool) {
		for cycle := range p.cycles() {
			for _, e := range readDir(filepath.Join(p.baseCalls(), filepath.FromSlash(cycle))) {
				if e.IsDir() || !IsDataBlockName(e.Name()) {
					continue
				}
				if !yield(path.Join(cycle, e.Name())) {
					return
				}
			}
		}
	}
}

func (p Probe) filters() iter.Seq[string] {
	return func(yield func(string) bool) {
		for lane := range p.lanes() {
			for _, e := range readDir(filepath.Join(p.baseCalls(), lane)) {
				if e.IsDir() || !strings.HasSuffix(e.Name(), filterSuffix) {
					continue
				}
				if !yield(path.Join(lane, e.Name())) {
					return
				}
			}
		}
	}
}

// IsLaneName matches lane directories such as L001.
func IsLaneName(name string) bool {
	if len(name) != 4 || name[0] != 'L' {
		return false
	}
	_, err := strconv.ParseUint(name[1:], 10, 16)
	return err == nil
}

// CycleNumber parses a cycle directory name such as C25.1 into 25.
func CycleNumber(name string) (int, bool) {
	if !strings.HasPrefix(name, "C") {
		return 0, false
	}
	stem, _, _ := strings.Cut(name[1:], ".")
	n, err := strconv.Atoi(stem)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func IsDataBlockName(name string) bool {
	for _, suffix := range dataBlockSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// LaneSummary holds advisory counts for one lane
type LaneSummary struct {
	Lane       string `json:"lane" yaml:"lane"`
	Cycles     int    `json:"cycles" yaml:"cycles"`
	LastCycle  int    `json:"last_cycle" yaml:"last_cycle"`
	DataBlocks int    `json:"data_blocks" yaml:"data_blocks"`
	Filters    int    `json:"filters" yaml:"filters"`
}

// Summary describes a run's visible substructure. It is informational only.
type Summary struct {
	Root    string                    `json:"root" yaml:"root"`
	Markers map[types.MarkerKind]bool `json:"markers" yaml:"markers"`
	Files   map[string]string         `json:"files" yaml:"files"`
	Lanes   []LaneSummary             `json:"lanes" yaml:"lanes"`
}

// Summarize walks the substructure once and counts entries per lane.
func Summarize(p Probe) Summary {
	byLane := map[string]*LaneSummary{}
	lane := func(name string) *LaneSummary {
		ls, ok := byLane[name]
		if !ok {
			ls = &LaneSummary{Lane: name}
			byLane[name] = ls
		}
		return ls
	}

	for l := range p.Substructure(types.SubstructureLanes) {
		lane(l)
	}
	for c := range p.Substructure(types.SubstructureCycles) {
		l, dir, _ := strings.Cut(c, "/")
		ls := lane(l)
		ls.Cycles++
		if n, ok := CycleNumber(dir); ok && n > ls.LastCycle {
			ls.LastCycle = n
		}
	}
	for b := range p.Substructure(types.SubstructureDataBlocks) {
		l, _, _ := strings.Cut(b, "/")
		lane(l).DataBlocks++
	}
	for f := range p.Substructure(types.SubstructureFilters) {
		l, _, _ := strings.Cut(f, "/")
		lane(l).Filters++
	}

	out := Summary{Root: p.root, Markers: p.Markers(), Files: p.Files(), Lanes: make([]LaneSummary, 0, len(byLane))}
	for _, ls := range byLane {
		out.Lanes = append(out.Lanes, *ls)
	}
	sort.Slice(out.Lanes, func(i, j int) bool { return out.Lanes[i].Lane < out.Lanes[j].Lane })
	return out
}
