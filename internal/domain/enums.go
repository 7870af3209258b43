package domain

import "fmt"

// FailureReason classifies why an implementation did not produce a usable report.
type FailureReason string

const (
	FailureNone               FailureReason = "none"
	FailureResourceExhaustion FailureReason = "resource_exhaustion"
	FailureGenericError       FailureReason = "generic_error"
)

func (f FailureReason) Valid() bool {
	switch f {
	case FailureNone, FailureResourceExhaustion, FailureGenericError:
		return true
	}
	return false
}

// Failed reports whether the reason marks the run as failed.
func (f FailureReason) Failed() bool {
	return f == FailureResourceExhaustion || f == FailureGenericError
}

// MatchMode selects which equivalence is reported as a case's overall match.
type MatchMode string

const (
	ModeCode MatchMode = "code"
	ModeFile MatchMode = "file"
)

func (m MatchMode) Valid() bool {
	switch m {
	case ModeCode, ModeFile:
		return true
	}
	return false
}

// ParseMatchMode parses a --match-by value. Empty selects ModeCode.
func ParseMatchMode(s string) (MatchMode, error) {
	if s == "" {
		return ModeCode, nil
	}
	m := MatchMode(s)
	if !m.Valid() {
		return "", fmt.Errorf("invalid match mode %q (must be code or file)", s)
	}
	return m, nil
}

// Implementation names one side of a parity comparison.
type Implementation string

const (
	Reference Implementation = "reference"
	Candidate Implementation = "candidate"
)
