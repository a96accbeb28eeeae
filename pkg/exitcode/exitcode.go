// Package exitcode provides the process exit codes of the cratemeta CLI
package exitcode

import (
	"errors"

	"github.com/fulmenhq/cratemeta/pkg/cratemeta"
)

// Exit codes for the cratemeta CLI
const (
	Success         = 0
	GeneralError    = 1
	ConfigError     = 2
	ValidationError = 3
	FileSystemError = 4
	ToolError       = 5
	DecodeError     = 6
	ToolNotFound    = 9
)

// String returns a human-readable description of the exit code
func String(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case ConfigError:
		return "Configuration error"
	case ValidationError:
		return "Validation error"
	case FileSystemError:
		return "File system error"
	case ToolError:
		return "Build tool error"
	case DecodeError:
		return "Metadata decoding error"
	case ToolNotFound:
		return "Tool not found"
	default:
		return "Unknown error"
	}
}

// CodedError carries an explicit exit code through the error chain
type CodedError struct {
	Code int
	Err  error
}

func (e *CodedError) Error() string { return e.Err.Error() }

func (e *CodedError) Unwrap() error { return e.Err }

// WithCode attaches code to err; a nil err stays nil.
func WithCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &CodedError{Code: code, Err: err}
}

// ForError picks the exit code for err. A nil error is Success.
func ForError(err error) int {
	if err == nil {
		return Success
	}
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	switch cratemeta.KindOf(err) {
	case cratemeta.KindMissingEnv:
		return ConfigError
	case cratemeta.KindInvalidPath:
		return FileSystemError
	case cratemeta.KindSpawn:
		return ToolNotFound
	case cratemeta.KindExitStatus:
		return ToolError
	case cratemeta.KindEncoding, cratemeta.KindDecode:
		return DecodeError
	default:
		return GeneralError
	}
}
