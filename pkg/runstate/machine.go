// Package runstate tracks the lifecycle phase of one run directory by polling
// its filesystem markers.
package runstate

import (
	"time"

	"github.com/beam-cloud/runwatch/pkg/completion"
	"github.com/beam-cloud/runwatch/pkg/rundir"
	"github.com/beam-cloud/runwatch/pkg/types"
	"github.com/rs/zerolog/log"
)

// Machine holds the current snapshot of a single run and advances it on Poll.
// Phases only move forward: NotStarted, InProgress, then Complete or Failed.
// A Machine is not safe for concurrent Poll calls.
type Machine struct {
	probe rundir.Probe
	now   func() time.Time
	state types.RunState
}

type Option func(*Machine)

// WithClock overrides the time source used for Since
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}

// WithLayout overrides the file names the probe looks for
func WithLayout(layout rundir.Layout) Option {
	return func(m *Machine) {
		m.probe = rundir.NewProbe(m.probe.Root(), layout)
	}
}

// NewMachine binds a machine to root. The initial phase is NotStarted and
// availability is probed once; no classification happens until the first Poll.
func NewMachine(root string, opts ...Option) *Machine {
	m := newMachine(root, opts...)
	m.state = types.RunState{
		Phase:     types.PhaseNotStarted,
		Available: m.probe.IsAvailable(),
		Root:      root,
		Since:     m.now().UTC(),
	}
	return m
}

// Resume rebuilds a machine from a stored snapshot, keeping its phase and Since.
func Resume(snapshot types.RunState, opts ...Option) *Machine {
	m := newMachine(snapshot.Root, opts...)
	m.state = snapshot
	m.state.Since = snapshot.Since.UTC()
	return m
}

func newMachine(root string, opts ...Option) *Machine {
	m := &Machine{
		probe: rundir.NewProbe(root, rundir.DefaultLayout()),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Root returns the path the machine is bound to
func (m *Machine) Root() string {
	return m.state.Root
}

// State returns the most recent snapshot without touching the filesystem
func (m *Machine) State() types.RunState {
	return m.state
}

// Probe exposes the directory queries the machine uses
func (m *Machine) Probe() rundir.Probe {
	return m.probe
}

// Poll inspects the run directory once and returns the new snapshot.
// It never fails: unreadable or half-written inputs leave the phase unchanged.
func (m *Machine) Poll() types.RunState {
	now := m.now().UTC()

	next := m.state
	next.Available = m.probe.IsAvailable()

	if !next.Phase.IsTerminal() {
		phase, status := m.classify(next.Phase)
		if phase != next.Phase && next.Phase.CanTransitionTo(phase) {
			log.Debug().
				Str("root", next.Root).
				Str("from", next.Phase.String()).
				Str("to", phase.String()).
				Msg("run phase changed")

			next.Phase = phase
			next.Since = now
			next.Completion = status
		}
	}

	m.state = next
	return next
}

// classify applies the transition rules in order, so a run that is already
// finished when first seen resolves in a single poll.
func (m *Machine) classify(phase types.Phase) (types.Phase, *types.CompletionStatus) {
	if phase == types.PhaseNotStarted {
		if !m.probe.HasMarker(types.MarkerStarted) {
			return phase, nil
		}
		phase = types.PhaseInProgress
	}

	if phase != types.PhaseInProgress {
		return phase, nil
	}

	path, ok := m.probe.CompletionFilePath()
	if !ok {
		return phase, nil
	}

	status, err := completion.ParseFile(path)
	if err != nil {
		// Usually a file still being written; try again next poll
		log.Debug().Err(err).Str("path", path).Msg("completion status not readable yet")
		return phase, nil
	}
	return status.Phase(), &status
}
