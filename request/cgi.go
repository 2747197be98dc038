package request

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"time"

	"github.com/codetesla51/webserv/credstore"
)

// waitDelay bounds how long output is still collected once the child
// exited or was killed
const waitDelay = 500 * time.Millisecond

// CGIResult is what came back from one credential process call
type CGIResult struct {
	Output   string
	ExitCode int
	Err      error
	TimedOut bool
}

// OK reports a clean zero exit
func (c CGIResult) OK() bool {
	return c.Err == nil && c.ExitCode == 0
}

// CGIRunner invokes the credential process with the decoded form fields
type CGIRunner interface {
	Run(ctx context.Context, username, password, authType string) CGIResult
}

// RunnerFunc adapts a function to CGIRunner
type RunnerFunc func(ctx context.Context, username, password, authType string) CGIResult

func (f RunnerFunc) Run(ctx context.Context, username, password, authType string) CGIResult {
	return f(ctx, username, password, authType)
}

// ExecRunner runs an executable as
//
//	<Path> <username> <password> <authtype>
//
// and captures its whole stdout through a pipe. With Timeout zero the
// call waits as long as the child runs, which pins the worker.
type ExecRunner struct {
	Path    string
	Dir     string
	Env     []string
	Timeout time.Duration
}

// Run implements CGIRunner
func (e *ExecRunner) Run(ctx context.Context, username, password, authType string) CGIResult {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, e.Path, username, password, authType)
	cmd.Dir = e.Dir
	cmd.Env = e.Env
	cmd.Stdout = &stdout
	// a helper forked by the script can hold stdout open after the child
	// is gone; stop copying output waitDelay after that
	cmd.WaitDelay = waitDelay

	if err := cmd.Start(); err != nil {
		res := CGIResult{ExitCode: -1, Err: fmt.Errorf("start %s: %w", e.Path, err)}
		// the executable itself could not run; report it the way the
		// process would have
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			res.Output = credstore.StatusLine(credstore.StatusInvokeFailure, "cgi run error")
			res.ExitCode = 1
		}
		return res
	}
	waitErr := cmd.Wait()

	res := CGIResult{Output: stdout.String()}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.Err = fmt.Errorf("%s: %w", e.Path, ctx.Err())
		return res
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		res.Err = waitErr
	}
	return res
}
