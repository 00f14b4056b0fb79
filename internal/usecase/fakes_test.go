package usecase

import (
	"context"
	"io"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"github.com/naka-gawa/github-backfill/internal/calendar"
	"github.com/naka-gawa/github-backfill/internal/domain"
	"github.com/naka-gawa/github-backfill/internal/gateway"
)

// fakeVCS records every git operation in order. Operations listed in failNth
// fail on their n-th call (1-based); a zero value fails every call. Like git,
// a rebase pull refuses to run while staged changes are left in the index.
type fakeVCS struct {
	calls      []string
	staged     bool
	failNth    map[string]int
	counts     map[string]int
	status     string
	commitEnvs []map[string]string
	messages   []string
	lines      []string
	onCall     func(op string)
}

func newFakeVCS() *fakeVCS {
	return &fakeVCS{failNth: map[string]int{}, counts: map[string]int{}}
}

func (f *fakeVCS) failOn(op string, nth int) *fakeVCS {
	f.failNth[op] = nth
	return f
}

func (f *fakeVCS) record(op string, detail ...string) domain.ExecutionResult {
	f.counts[op]++
	call := strings.TrimSpace(op + " " + strings.Join(detail, " "))
	f.calls = append(f.calls, call)
	if f.onCall != nil {
		f.onCall(op)
	}
	if nth, ok := f.failNth[op]; ok && (nth == 0 || nth == f.counts[op]) {
		return domain.ExecutionResult{Description: call, ExitCode: 1, Stderr: "simulated failure"}
	}
	return domain.ExecutionResult{Description: call, Succeeded: true}
}

func (f *fakeVCS) count(op string) int {
	return f.counts[op]
}

func (f *fakeVCS) SetConfig(_ context.Context, key, value string) domain.ExecutionResult {
	return f.record("config", key, value)
}

func (f *fakeVCS) Status(context.Context) domain.ExecutionResult {
	res := f.record("status")
	res.Stdout = f.status
	return res
}

func (f *fakeVCS) Checkout(_ context.Context, branch string) domain.ExecutionResult {
	return f.record("checkout", branch)
}

func (f *fakeVCS) CreateBranch(_ context.Context, branch string) domain.ExecutionResult {
	return f.record("branch", branch)
}

func (f *fakeVCS) Pull(_ context.Context, remote, branch string, opts gateway.PullOptions) domain.ExecutionResult {
	mode := "merge"
	if opts.Rebase {
		mode = "rebase"
	}
	res := f.record("pull", remote, branch, mode)
	if res.Succeeded && opts.Rebase && f.staged {
		res.Succeeded = false
		res.ExitCode = 128
		res.Stderr = "error: cannot pull with rebase: Your index contains uncommitted changes."
	}
	return res
}

func (f *fakeVCS) Add(_ context.Context, paths ...string) domain.ExecutionResult {
	res := f.record("add", paths...)
	if res.Succeeded {
		f.staged = true
	}
	return res
}

func (f *fakeVCS) Commit(_ context.Context, message string, env map[string]string) domain.ExecutionResult {
	f.messages = append(f.messages, message)
	f.commitEnvs = append(f.commitEnvs, env)
	res := f.record("commit", message)
	if res.Succeeded {
		f.staged = false
	}
	return res
}

func (f *fakeVCS) Push(_ context.Context, remote, ref string, opts gateway.PushOptions) domain.ExecutionResult {
	if opts.SetUpstream {
		return f.record("push", "-u", remote, ref)
	}
	return f.record("push", remote, ref)
}

func (f *fakeVCS) Merge(_ context.Context, branch, message string, env map[string]string) domain.ExecutionResult {
	f.commitEnvs = append(f.commitEnvs, env)
	return f.record("merge", branch)
}

func (f *fakeVCS) MergeAbort(context.Context) domain.ExecutionResult {
	return f.record("merge-abort")
}

func (f *fakeVCS) Reset(_ context.Context, ref string) domain.ExecutionResult {
	res := f.record("reset", ref)
	if res.Succeeded {
		f.staged = false
	}
	return res
}

func (f *fakeVCS) DeleteBranch(_ context.Context, branch string) domain.ExecutionResult {
	return f.record("delete-branch", branch)
}

func (f *fakeVCS) DeleteRemoteBranch(_ context.Context, remote, branch string) domain.ExecutionResult {
	return f.record("delete-remote-branch", remote, branch)
}

func (f *fakeVCS) AppendLine(file, line string) domain.ExecutionResult {
	f.lines = append(f.lines, line)
	return f.record("append", file)
}

// mockTracker is a mock implementation of the gateway.Tracker interface.
type mockTracker struct {
	mock.Mock
}

func (m *mockTracker) CreateIssue(ctx context.Context, owner, repo string, req gateway.IssueRequest) (*gateway.CreatedIssue, error) {
	args := m.Called(ctx, owner, repo, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.CreatedIssue), args.Error(1)
}

func (m *mockTracker) CreatePullRequest(ctx context.Context, owner, repo string, req gateway.PullRequestRequest) (*gateway.CreatedPullRequest, error) {
	args := m.Called(ctx, owner, repo, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.CreatedPullRequest), args.Error(1)
}

func (m *mockTracker) VerifyRepository(ctx context.Context, owner, repo, branch string) (*gateway.RepositoryInfo, error) {
	args := m.Called(ctx, owner, repo, branch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.RepositoryInfo), args.Error(1)
}

func testTarget() domain.RepositoryTarget {
	return domain.RepositoryTarget{
		Owner:      "owner",
		Name:       "repo",
		BaseBranch: "main",
		Remote:     "origin",
		Token:      "token",
		Committer:  domain.Committer{Name: "owner", Email: "owner@example.com"},
	}
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testDates(hours domain.HourWindow) *calendar.Generator {
	return calendar.NewGenerator(
		calendar.WithSource(rand.NewSource(1)),
		calendar.WithLocation(time.UTC),
		calendar.WithHours(hours),
	)
}

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("invalid forced date %q: %v", s, err)
	}
	return ts
}
