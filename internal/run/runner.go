package run

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jbigot/pkg-builder/internal/cancel"
	"github.com/jbigot/pkg-builder/internal/models"
)

// Cmd describes one external command invocation.
type Cmd struct {
	Argv []string
	Dir  string
	Env  []string // appended to the parent environment
}

// Runner launches external commands under the cancellation bus. In verbose
// mode children inherit stdout and stderr; otherwise both streams are
// captured into one buffer and attached to the failure.
type Runner struct {
	bus     *cancel.Bus
	verbose bool
}

// NewRunner creates a runner bound to the given bus.
func NewRunner(bus *cancel.Bus, verbose bool) *Runner {
	return &Runner{bus: bus, verbose: verbose}
}

// Run executes the command. A non-zero exit is returned as
// *models.SubprocessError carrying the captured output.
func (r *Runner) Run(cmd Cmd) error {
	_, err := r.start(cmd, false)
	return err
}

// Output executes the command and returns its standard output with standard
// error merged into it, regardless of verbose mode.
func (r *Runner) Output(cmd Cmd) (string, error) {
	return r.start(cmd, true)
}

func (r *Runner) start(spec Cmd, wantStdout bool) (string, error) {
	if err := r.bus.Check(); err != nil {
		return "", err
	}

	logrus.Debugf("running %s", strings.Join(spec.Argv, " "))
	cmd := exec.Command(spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	var buf bytes.Buffer
	switch {
	case wantStdout:
		cmd.Stdout = &buf
		cmd.Stderr = &buf
	case r.verbose:
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	default:
		cmd.Stdout = &buf
		cmd.Stderr = &buf
	}

	if err := cmd.Start(); err != nil {
		return "", &models.SubprocessError{Argv: spec.Argv, ExitCode: -1, Output: err.Error()}
	}
	r.bus.Register(cmd)
	defer r.bus.Unregister(cmd)

	waitErr := cmd.Wait()
	if err := r.bus.Check(); err != nil {
		return "", err
	}
	if waitErr != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code = exitErr.ExitCode()
		}
		return "", &models.SubprocessError{Argv: spec.Argv, ExitCode: code, Output: buf.String()}
	}
	return buf.String(), nil
}
