// Package proc runs short-lived external programs and captures their output.
package proc

import (
	"context"
	"errors"
	"os/exec"

	"github.com/arduino/go-paths-helper"
)

var errNoCommand = errors.New("no command given")

// Output is the captured result of a finished process.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Run starts argv, waits for it and captures its output. A non-zero exit
// status is reported in Output.ExitCode, not as an error; err is only set
// when the process could not be run at all.
func Run(ctx context.Context, argv ...string) (Output, error) {
	if len(argv) == 0 {
		return Output{ExitCode: -1}, errNoCommand
	}
	p, err := paths.NewProcess(nil, argv...)
	if err != nil {
		return Output{ExitCode: -1}, err
	}
	stdout, stderr, err := p.RunAndCaptureOutput(ctx)
	out := Output{Stdout: stdout, Stderr: stderr, ExitCode: ExitCode(err)}
	if err != nil && out.ExitCode < 0 {
		return out, err
	}
	return out, nil
}

// ExitCode extracts the process exit status from err: 0 for nil, -1 when
// the process never ran to completion.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
