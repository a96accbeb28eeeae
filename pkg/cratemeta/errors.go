/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cratemeta

import (
	"errors"
	"fmt"
)

// Kind classifies a gateway failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindMissingEnv means a required build-script variable was absent.
	KindMissingEnv
	// KindInvalidPath means the manifest path cannot be passed as a process argument.
	KindInvalidPath
	// KindSpawn means the tool could not be launched or its output could not be read.
	KindSpawn
	// KindEncoding means the tool's stdout was not valid UTF-8.
	KindEncoding
	// KindDecode means the document did not match the metadata schema,
	// including failures of the caller's extra-metadata type.
	KindDecode
	// KindExitStatus means the tool exited non-zero while strict exit checking was on.
	KindExitStatus
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindMissingEnv:
		return "missing ambient context"
	case KindInvalidPath:
		return "invalid manifest path"
	case KindSpawn:
		return "spawn failure"
	case KindEncoding:
		return "text encoding failure"
	case KindDecode:
		return "schema decoding failure"
	case KindExitStatus:
		return "non-zero exit status"
	default:
		return "unknown"
	}
}

// Sentinels for use with errors.Is. Every *Error matches the sentinel of its Kind.
var (
	ErrMissingEnv  = errors.New("missing ambient context")
	ErrInvalidPath = errors.New("invalid input, manifest path")
	ErrSpawn       = errors.New("failed to run cargo")
	ErrEncoding    = errors.New("cargo output is not valid UTF-8")
	ErrDecode      = errors.New("cargo metadata does not match schema")
	ErrExitStatus  = errors.New("cargo exited with non-zero status")
)

var sentinels = map[Kind]error{
	KindMissingEnv:  ErrMissingEnv,
	KindInvalidPath: ErrInvalidPath,
	KindSpawn:       ErrSpawn,
	KindEncoding:    ErrEncoding,
	KindDecode:      ErrDecode,
	KindExitStatus:  ErrExitStatus,
}

// Error is the envelope returned by every operation in this package.
type Error struct {
	// Kind classifies the failure
	Kind Kind

	// Op is the operation that failed (e.g. "run", "decode")
	Op string

	// Subject is the variable name, path or program the failure concerns (may be empty)
	Subject string

	// ExitCode is set for KindExitStatus
	ExitCode int

	// Err is the underlying cause (may be nil)
	Err error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if s, ok := sentinels[e.Kind]; ok {
		msg = s.Error()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Subject != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Subject)
	}
	if e.Kind == KindExitStatus {
		msg = fmt.Sprintf("%s (exit %d)", msg, e.ExitCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind Kind, op, subject string, err error) *Error {
	return &Error{Kind: kind, Op: op, Subject: subject, Err: err}
}
