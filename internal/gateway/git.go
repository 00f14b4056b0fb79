package gateway

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/naka-gawa/github-backfill/internal/domain"
	"github.com/naka-gawa/github-backfill/internal/runner"
)

// Environment keys git reads to override the recorded commit dates.
const (
	EnvAuthorDate    = "GIT_AUTHOR_DATE"
	EnvCommitterDate = "GIT_COMMITTER_DATE"
)

// ForcedDate returns the environment overlay that makes git record t as both
// the author and the committer date.
func ForcedDate(t time.Time) map[string]string {
	stamp := t.Format(time.RFC3339)
	return map[string]string{
		EnvAuthorDate:    stamp,
		EnvCommitterDate: stamp,
	}
}

// PullOptions selects how a pull synchronizes with the remote.
type PullOptions struct {
	Rebase                  bool
	AllowUnrelatedHistories bool
}

// PushOptions selects push behavior.
type PushOptions struct {
	SetUpstream bool
}

// VersionControl defines the git operations the scheduler and orchestrator drive.
// Every method runs exactly one command and reports it as an ExecutionResult.
type VersionControl interface {
	SetConfig(ctx context.Context, key, value string) domain.ExecutionResult
	Status(ctx context.Context) domain.ExecutionResult
	Checkout(ctx context.Context, branch string) domain.ExecutionResult
	CreateBranch(ctx context.Context, branch string) domain.ExecutionResult
	Pull(ctx context.Context, remote, branch string, opts PullOptions) domain.ExecutionResult
	Add(ctx context.Context, paths ...string) domain.ExecutionResult
	Commit(ctx context.Context, message string, env map[string]string) domain.ExecutionResult
	Push(ctx context.Context, remote, ref string, opts PushOptions) domain.ExecutionResult
	Merge(ctx context.Context, branch, message string, env map[string]string) domain.ExecutionResult
	MergeAbort(ctx context.Context) domain.ExecutionResult
	// Reset discards the index and working tree changes and moves the current
	// branch to ref.
	Reset(ctx context.Context, ref string) domain.ExecutionResult
	DeleteBranch(ctx context.Context, branch string) domain.ExecutionResult
	DeleteRemoteBranch(ctx context.Context, remote, branch string) domain.ExecutionResult
	// AppendLine appends one line to a marker file inside the working tree.
	AppendLine(file, line string) domain.ExecutionResult
}

// GitGateway is the concrete implementation of VersionControl over the git CLI.
type GitGateway struct {
	runner  runner.Runner
	workDir string
	binary  string
}

// NewGitGateway creates a GitGateway operating on the working tree at workDir.
func NewGitGateway(r runner.Runner, workDir string) *GitGateway {
	return &GitGateway{runner: r, workDir: workDir, binary: "git"}
}

func (g *GitGateway) run(ctx context.Context, env map[string]string, args ...string) domain.ExecutionResult {
	overlay := map[string]string{"GIT_TERMINAL_PROMPT": "0"}
	for k, v := range env {
		overlay[k] = v
	}
	return g.runner.Run(ctx, runner.Command{
		Description: "git " + strings.Join(args, " "),
		Name:        g.binary,
		Args:        args,
		Env:         overlay,
		Dir:         g.workDir,
	})
}

func (g *GitGateway) SetConfig(ctx context.Context, key, value string) domain.ExecutionResult {
	return g.run(ctx, nil, "config", "--local", key, value)
}

func (g *GitGateway) Status(ctx context.Context) domain.ExecutionResult {
	return g.run(ctx, nil, "status", "--porcelain")
}

func (g *GitGateway) Checkout(ctx context.Context, branch string) domain.ExecutionResult {
	return g.run(ctx, nil, "checkout", branch)
}

func (g *GitGateway) CreateBranch(ctx context.Context, branch string) domain.ExecutionResult {
	return g.run(ctx, nil, "checkout", "-b", branch)
}

func (g *GitGateway) Pull(ctx context.Context, remote, branch string, opts PullOptions) domain.ExecutionResult {
	args := []string{"pull"}
	if opts.Rebase {
		args = append(args, "--rebase")
	} else {
		args = append(args, "--no-rebase", "--no-edit")
	}
	if opts.AllowUnrelatedHistories {
		args = append(args, "--allow-unrelated-histories")
	}
	args = append(args, remote, branch)
	return g.run(ctx, nil, args...)
}

func (g *GitGateway) Add(ctx context.Context, paths ...string) domain.ExecutionResult {
	return g.run(ctx, nil, append([]string{"add", "--"}, paths...)...)
}

func (g *GitGateway) Commit(ctx context.Context, message string, env map[string]string) domain.ExecutionResult {
	return g.run(ctx, env, "commit", "-m", message)
}

func (g *GitGateway) Push(ctx context.Context, remote, ref string, opts PushOptions) domain.ExecutionResult {
	args := []string{"push"}
	if opts.SetUpstream {
		args = append(args, "-u")
	}
	args = append(args, remote, ref)
	return g.run(ctx, nil, args...)
}

func (g *GitGateway) Merge(ctx context.Context, branch, message string, env map[string]string) domain.ExecutionResult {
	return g.run(ctx, env, "merge", "--no-ff", branch, "-m", message)
}

func (g *GitGateway) MergeAbort(ctx context.Context) domain.ExecutionResult {
	return g.run(ctx, nil, "merge", "--abort")
}

func (g *GitGateway) Reset(ctx context.Context, ref string) domain.ExecutionResult {
	return g.run(ctx, nil, "reset", "--hard", ref)
}

func (g *GitGateway) DeleteBranch(ctx context.Context, branch string) domain.ExecutionResult {
	return g.run(ctx, nil, "branch", "-D", branch)
}

func (g *GitGateway) DeleteRemoteBranch(ctx context.Context, remote, branch string) domain.ExecutionResult {
	return g.run(ctx, nil, "push", remote, "--delete", branch)
}

func (g *GitGateway) AppendLine(file, line string) domain.ExecutionResult {
	desc := fmt.Sprintf("append to %s", file)
	start := time.Now()
	path := file
	if !filepath.IsAbs(path) {
		path = filepath.Join(g.workDir, file)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return domain.FailedResult(desc, fmt.Errorf("failed to open marker file: %w", err))
	}
	_, werr := fmt.Fprintln(f, line)
	cerr := f.Close()
	if werr == nil {
		werr = cerr
	}
	if werr != nil {
		return domain.FailedResult(desc, fmt.Errorf("failed to write marker file: %w", werr))
	}
	return domain.ExecutionResult{Description: desc, Succeeded: true, Duration: time.Since(start)}
}

// HasChanges reports whether porcelain status output lists any change.
func HasChanges(status domain.ExecutionResult) bool {
	return status.Succeeded && strings.TrimSpace(status.Stdout) != ""
}
