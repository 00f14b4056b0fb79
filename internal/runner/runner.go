// Package runner executes external commands and classifies their outcome.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/naka-gawa/github-backfill/internal/domain"
)

// DefaultTimeout bounds a single external call.
const DefaultTimeout = 2 * time.Minute

// Command is one external operation.
type Command struct {
	Description string
	Name        string
	Args        []string
	// Env is overlaid on the process environment for this call only.
	Env map[string]string
	Dir string
}

// String renders the command line for logs.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Runner executes a Command and never returns a Go error: every failure is
// folded into the ExecutionResult.
type Runner interface {
	Run(ctx context.Context, cmd Command) domain.ExecutionResult
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct {
	timeout time.Duration
	baseEnv func() []string
}

// Option configures an ExecRunner.
type Option func(*ExecRunner)

// WithTimeout sets the per-call timeout. A non-positive value keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(r *ExecRunner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewExecRunner creates an ExecRunner.
func NewExecRunner(opts ...Option) *ExecRunner {
	r := &ExecRunner{
		timeout: DefaultTimeout,
		baseEnv: os.Environ,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes cmd synchronously. Cancellation of ctx does not interrupt a
// command that has already started; only the per-call timeout does.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (res domain.ExecutionResult) {
	res.Description = cmd.Description
	if res.Description == "" {
		res.Description = cmd.String()
	}
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res.Succeeded = false
			res.ExitCode = -1
			res.Err = fmt.Errorf("command panicked: %v", p)
		}
		res.Duration = time.Since(start)
	}()

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	c := exec.CommandContext(callCtx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	// Children that inherit the output pipes must not hold Run open past the timeout.
	c.WaitDelay = time.Second
	c.Env = MergeEnv(r.baseEnv(), cmd.Env)
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	switch {
	case err == nil:
		res.Succeeded = true
	case errors.Is(callCtx.Err(), context.DeadlineExceeded):
		res.ExitCode = -1
		res.Err = fmt.Errorf("%s timed out after %s", cmd.String(), r.timeout)
	default:
		res.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
		res.Err = fmt.Errorf("%s: %w", cmd.String(), err)
	}
	return res
}

// MergeEnv overlays the given keys on base. Keys already present in base are
// replaced rather than duplicated, and overlay keys are appended in sorted order.
func MergeEnv(base []string, overlay map[string]string) []string {
	if len(overlay) == 0 {
		return base
	}
	merged := make([]string, 0, len(base)+len(overlay))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, ok := overlay[key]; ok {
			continue
		}
		merged = append(merged, kv)
	}
	keys := make([]string, 0, len(overlay))
	for k := range overlay {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		merged = append(merged, k+"="+overlay[k])
	}
	return merged
}
