package types

import "fmt"

// CompletionCode is the outcome code an instrument writes into its completion status file
type CompletionCode int

const (
	CompletionCompletedAsPlanned CompletionCode = iota
	CompletionExceptionEndedEarly
	CompletionUserEndedEarly
	// CompletionUnrecognized covers any code this package does not know about.
	// The verbatim text is kept in CompletionStatus.RawStatus.
	CompletionUnrecognized
)

func (c CompletionCode) String() string {
	switch c {
	case CompletionCompletedAsPlanned:
		return "CompletedAsPlanned"
	case CompletionExceptionEndedEarly:
		return "ExceptionEndedEarly"
	case CompletionUserEndedEarly:
		return "UserEndedEarly"
	case CompletionUnrecognized:
		return "Unrecognized"
	default:
		return fmt.Sprintf("CompletionCode(%d)", int(c))
	}
}

// IsSuccess is true only for a run that completed as planned
func (c CompletionCode) IsSuccess() bool {
	return c == CompletionCompletedAsPlanned
}

func (c CompletionCode) MarshalText() ([]byte, error) {
	switch c {
	case CompletionCompletedAsPlanned, CompletionExceptionEndedEarly, CompletionUserEndedEarly, CompletionUnrecognized:
		return []byte(c.String()), nil
	}
	return nil, fmt.Errorf("unknown completion code: %d", int(c))
}

func (c *CompletionCode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "CompletedAsPlanned":
		*c = CompletionCompletedAsPlanned
	case "ExceptionEndedEarly":
		*c = CompletionExceptionEndedEarly
	case "UserEndedEarly":
		*c = CompletionUserEndedEarly
	case "Unrecognized":
		*c = CompletionUnrecognized
	default:
		return fmt.Errorf("unknown completion code: %q", string(text))
	}
	return nil
}

// CompletionStatus is the parsed content of a run's completion status file
type CompletionStatus struct {
	Status    CompletionCode `json:"completion_status" yaml:"completion_status"`
	RawStatus string         `json:"raw_status,omitempty" yaml:"raw_status,omitempty"`
	RunID     string         `json:"run_id" yaml:"run_id"`
	Message   string         `json:"message,omitempty" yaml:"message,omitempty"`
}

// Code returns the status code as written in the file
func (s CompletionStatus) Code() string {
	if s.Status == CompletionUnrecognized {
		return s.RawStatus
	}
	return s.Status.String()
}

// IsSuccess reports whether the run finished as planned
func (s CompletionStatus) IsSuccess() bool {
	return s.Status.IsSuccess()
}

// Phase maps the outcome onto a terminal phase
func (s CompletionStatus) Phase() Phase {
	if s.IsSuccess() {
		return PhaseComplete
	}
	return PhaseFailed
}
