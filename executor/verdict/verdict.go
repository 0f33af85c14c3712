// Package verdict classifies a single finished run.
package verdict

import (
	"fmt"
	"strings"
)

type Kind string

const (
	KindAccepted     Kind = "accepted"
	KindWrongAnswer  Kind = "wrong_answer"
	KindRuntimeError Kind = "runtime_error"
)

// Evaluation holds normalized output; Actual and Expected are already trimmed.
type Evaluation struct {
	Passed   bool
	Kind     Kind
	Actual   string
	Expected string
	Error    *string
}

// Classify compares trimmed stdout against the trimmed expected output. A non-zero
// exit code is a runtime error regardless of what the program printed.
func Classify(actual, expected, stderr string, exitCode int) Evaluation {
	ev := Evaluation{
		Actual:   Normalize(actual),
		Expected: Normalize(expected),
	}
	if exitCode != 0 {
		msg := strings.TrimSpace(stderr)
		if msg == "" {
			msg = fmt.Sprintf("Process exited with code %d", exitCode)
		}
		ev.Kind = KindRuntimeError
		ev.Error = &msg
		return ev
	}
	if ev.Actual == ev.Expected {
		ev.Passed = true
		ev.Kind = KindAccepted
	} else {
		ev.Kind = KindWrongAnswer
	}
	return ev
}

// Normalize strips leading and trailing whitespace. Interior whitespace and line
// endings are compared byte for byte.
func Normalize(s string) string {
	return strings.TrimSpace(s)
}
