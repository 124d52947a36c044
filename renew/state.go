package renew

import (
	"fmt"
	"io"
)

// State is a step of the renewal workflow.
type State int

const (
	StateStart State = iota
	StateDecoded
	StateNoRenewal
	StateRenewalNeeded
	StateSigned
	StateInstalled
	StateFailed
)

var stateNames = map[State]string{
	StateStart:         "start",
	StateDecoded:       "decoded",
	StateNoRenewal:     "no-renewal",
	StateRenewalNeeded: "renewal-needed",
	StateSigned:        "signed",
	StateInstalled:     "installed",
	StateFailed:        "failed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}

	return "unknown"
}

// Terminal reports whether no further transition leaves s.
func (s State) Terminal() bool {
	return s == StateNoRenewal || s == StateInstalled || s == StateFailed
}

// Reason names the step a workflow failed in.
type Reason string

const (
	ReasonDecode  Reason = "decode"
	ReasonSign    Reason = "sign"
	ReasonInstall Reason = "install"
)

// FailedError is returned by Run when the workflow ends in StateFailed.
type FailedError struct {
	Reason Reason
	Err    error
}

func (e *FailedError) Error() string {
	return string(e.Reason) + " failed: " + e.Err.Error()
}

func (e *FailedError) Unwrap() error {
	return e.Err
}

// Format prints the wrapped error with its stack trace for %+v.
func (e *FailedError) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "%s failed: %+v", e.Reason, e.Err)
		return
	}

	io.WriteString(s, e.Error())
}
