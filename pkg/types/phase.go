package types

import "fmt"

// Phase is the lifecycle phase of a run directory
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseInProgress
	PhaseComplete
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "NotStarted"
	case PhaseInProgress:
		return "InProgress"
	case PhaseComplete:
		return "Complete"
	case PhaseFailed:
		return "Failed"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// IsTerminal returns true for phases a run never leaves
func (p Phase) IsTerminal() bool {
	return p == PhaseComplete || p == PhaseFailed
}

// Rank orders phases along the lifecycle. Both terminal phases share a rank.
func (p Phase) Rank() int {
	switch p {
	case PhaseNotStarted:
		return 0
	case PhaseInProgress:
		return 1
	case PhaseComplete, PhaseFailed:
		return 2
	default:
		return -1
	}
}

// CanTransitionTo reports whether moving from p to next keeps the lifecycle monotone.
// Self-transitions are always allowed.
func (p Phase) CanTransitionTo(next Phase) bool {
	if p == next {
		return true
	}
	if p.IsTerminal() {
		return false
	}
	return next.Rank() > p.Rank()
}

func (p Phase) MarshalText() ([]byte, error) {
	switch p {
	case PhaseNotStarted, PhaseInProgress, PhaseComplete, PhaseFailed:
		return []byte(p.String()), nil
	}
	return nil, fmt.Errorf("unknown phase: %d", int(p))
}

func (p *Phase) UnmarshalText(text []byte) error {
	parsed, err := ParsePhase(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePhase parses the textual form produced by String
func ParsePhase(s string) (Phase, error) {
	switch s {
	case "NotStarted":
		return PhaseNotStarted, nil
	case "InProgress":
		return PhaseInProgress, nil
	case "Complete":
		return PhaseComplete, nil
	case "Failed":
		return PhaseFailed, nil
	}
	return PhaseNotStarted, fmt.Errorf("unknown phase: %q", s)
}
