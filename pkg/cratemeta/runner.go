/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cratemeta

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/fulmenhq/cratemeta/pkg/logger"
)

// Output is what one tool invocation produced
type Output struct {
	// Stdout contains standard output, captured in full
	Stdout []byte

	// Stderr contains standard error
	Stderr []byte

	// ExitCode from the tool
	ExitCode int
}

// Runner launches the build tool. It is the only impure collaborator of a Gateway.
type Runner interface {
	// Run executes program with args and waits for it to exit.
	// A non-zero exit is reported through Output.ExitCode, not as an error.
	Run(ctx context.Context, program string, args []string) (*Output, error)
}

// ExecRunner runs the tool as a child process that inherits the parent environment.
type ExecRunner struct{}

// Run implements Runner
func (ExecRunner) Run(ctx context.Context, program string, args []string) (*Output, error) {
	// #nosec G204 -- program comes from $CARGO or an explicit option, args are fixed
	cmd := exec.CommandContext(ctx, program, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := &Output{
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("failed to execute %s: %w", program, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			logger.Trace("cargo exited non-zero", logger.String("program", program), logger.Int("exit_code", result.ExitCode))
			return result, nil
		}
		return nil, fmt.Errorf("failed to execute %s: %w", program, err)
	}

	return result, nil
}
