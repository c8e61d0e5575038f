// Package git runs git operations needed to keep vault caches up to date.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// waitDelay bounds how long Run waits for output pipes after the git
// process has been killed by context cancellation.
const waitDelay = 5 * time.Second

// CommandError describes a git invocation that failed. Stderr holds the
// captured diagnostic output; ExitCode is -1 when the process did not exit
// normally (not found, killed).
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s: exit status %d", strings.Join(e.Args, " "), e.ExitCode)
	if e.ExitCode < 0 && e.Err != nil {
		msg = fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// Run executes git with args in dir and returns trimmed stdout. Prompts are
// disabled so a missing credential fails instead of blocking. When ctx is
// cancelled the process is killed and the returned error wraps ctx.Err().
func Run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		cerr := &CommandError{
			Args:     args,
			ExitCode: -1,
			Stderr:   strings.TrimSpace(stderr.String()),
			Err:      err,
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			cerr.Err = ctxErr
			return "", cerr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			cerr.ExitCode = exitErr.ExitCode()
		}
		return "", cerr
	}

	return strings.TrimSpace(stdout.String()), nil
}

// WorkTreeRoot returns the top level of the work tree containing dir, or ""
// when dir is not inside a git repository. An empty dir means the current
// working directory.
func WorkTreeRoot(ctx context.Context, dir string) string {
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return ""
		}
	}

	root, err := Run(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return ""
	}
	return filepath.Clean(root)
}
