package types

import (
	"errors"
	"fmt"
)

// ErrCompletionMalformed is returned when a completion status file is not
// well-formed or lacks a required field
type ErrCompletionMalformed struct {
	Reason string
	Err    error
}

func (e *ErrCompletionMalformed) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed completion status: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed completion status: %s", e.Reason)
}

func (e *ErrCompletionMalformed) Unwrap() error {
	return e.Err
}

// From checks if the given error is an ErrCompletionMalformed
func (e *ErrCompletionMalformed) From(err error) bool {
	var malformed *ErrCompletionMalformed
	return errors.As(err, &malformed)
}

// ErrCompletionEncoding is returned when a completion status file is not valid UTF-8
type ErrCompletionEncoding struct {
	Offset int
}

func (e *ErrCompletionEncoding) Error() string {
	return fmt.Sprintf("completion status is not valid utf-8 at byte %d", e.Offset)
}

// From checks if the given error is an ErrCompletionEncoding
func (e *ErrCompletionEncoding) From(err error) bool {
	var encoding *ErrCompletionEncoding
	return errors.As(err, &encoding)
}

// ErrRunNotFound is returned when a run is not tracked or has no stored snapshot
type ErrRunNotFound struct {
	Name string
}

func (e *ErrRunNotFound) Error() string {
	return fmt.Sprintf("run not found: %s", e.Name)
}

// From checks if the given error is an ErrRunNotFound
func (e *ErrRunNotFound) From(err error) bool {
	var notFound *ErrRunNotFound
	return errors.As(err, &notFound)
}

// ErrCompletionUnencodable is returned when a status cannot be written in a
// form that parses back to the same value
type ErrCompletionUnencodable struct {
	Field  string
	Reason string
}

func (e *ErrCompletionUnencodable) Error() string {
	return fmt.Sprintf("cannot encode completion status: %s %s", e.Field, e.Reason)
}

// From checks if the given error is an ErrCompletionUnencodable
func (e *ErrCompletionUnencodable) From(err error) bool {
	var unencodable *ErrCompletionUnencodable
	return errors.As(err, &unencodable)
}

// ErrRunIncomplete is returned when a run directory is unavailable or lacks
// the file that marks it as finished
type ErrRunIncomplete struct {
	Root    string
	Missing string
}

func (e *ErrRunIncomplete) Error() string {
	return fmt.Sprintf("run %s is not complete: %s not found", e.Root, e.Missing)
}

// From checks if the given error is an ErrRunIncomplete
func (e *ErrRunIncomplete) From(err error) bool {
	var incomplete *ErrRunIncomplete
	return errors.As(err, &incomplete)
}

// ErrRunUnsuccessful is returned when a finished run's completion status is
// anything other than CompletedAsPlanned
type ErrRunUnsuccessful struct {
	Root   string
	Status CompletionStatus
}

func (e *ErrRunUnsuccessful) Error() string {
	return fmt.Sprintf("run %s ended with %s", e.Root, e.Status.Code())
}

// From checks if the given error is an ErrRunUnsuccessful
func (e *ErrRunUnsuccessful) From(err error) bool {
	var unsuccessful *ErrRunUnsuccessful
	return errors.As(err, &unsuccessful)
}
