// Package cmdexec wraps external command execution behind a Runner
// interface. Every invocation captures exit status, stdout, and stderr;
// callers always see the outcome as a typed result instead of a discarded
// exit code.
package cmdexec

import (
	"bytes"
	"context"
	stderrors "errors"
	"os"
	"os/exec"
	"strings"

	"github.com/archstrap/archstrap/pkg/errors"
	"github.com/archstrap/archstrap/pkg/logging"
	"github.com/rs/zerolog"
)

// Command describes a single external command invocation.
type Command struct {
	Name string
	Args []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// User, when non-empty, runs the command as that user via sudo.
	// Used for steps that must not run as root (git clone, makepkg).
	User string

	// Stdin is fed to the process when non-empty.
	Stdin string

	// Env entries are appended to the current environment.
	Env []string
}

// Result holds the captured outcome of a command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes commands. The production implementation shells out;
// tests substitute a Recorder.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	logger zerolog.Logger
	dryRun bool
}

// NewRunner creates a runner. With dryRun set, commands are logged and
// skipped, reporting success.
func NewRunner(dryRun bool) *ExecRunner {
	return &ExecRunner{
		logger: logging.GetLogger("cmdexec"),
		dryRun: dryRun,
	}
}

// Run executes the command and captures its output. A non-zero exit
// status is returned as an ErrCommand error carrying the exit code and
// stderr; the Result is populated either way.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	name := cmd.Name
	args := cmd.Args
	if cmd.User != "" {
		args = append([]string{"-u", cmd.User, "--", name}, args...)
		name = "sudo"
	}

	r.logger.Debug().
		Str("command", name).
		Strs("args", args).
		Str("dir", cmd.Dir).
		Msg("Executing command")

	if r.dryRun {
		r.logger.Info().Str("command", name).Strs("args", args).Msg("Dry run, command skipped")
		return Result{}, nil
	}

	execCmd := exec.CommandContext(ctx, name, args...)
	execCmd.Dir = cmd.Dir
	if cmd.Stdin != "" {
		execCmd.Stdin = strings.NewReader(cmd.Stdin)
	}
	if len(cmd.Env) > 0 {
		execCmd.Env = append(os.Environ(), cmd.Env...)
	}

	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	err := execCmd.Run()
	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
		}

		r.logger.Debug().
			Str("command", name).
			Int("exitCode", result.ExitCode).
			Str("stderr", result.Stderr).
			Msg("Command failed")

		return result, errors.Wrapf(err, errors.ErrCommand, "%s failed", cmd.Name).
			WithDetail("exitCode", result.ExitCode).
			WithDetail("stderr", strings.TrimSpace(result.Stderr))
	}

	return result, nil
}

// Output runs the command and returns trimmed stdout, a convenience for
// probe commands like blkid and findmnt.
func Output(ctx context.Context, r Runner, name string, args ...string) (string, error) {
	res, err := r.Run(ctx, Command{Name: name, Args: args})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}
