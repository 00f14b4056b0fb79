package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/naka-gawa/github-backfill/internal/domain"
	"github.com/naka-gawa/github-backfill/internal/gateway"
)

// Defaults of the commit scheduler.
const (
	DefaultCommitMarkerFile = "commits.log"
	FillerCommitMessage     = "chore: snapshot pending changes"
)

// DateSource supplies the synthetic timestamps of a month.
type DateSource interface {
	GenerateSortedDates(month, year, count int) ([]time.Time, error)
	RandomDateInMonth(month, year int) (time.Time, error)
}

// CommitScheduler backfills forced-date commits on the base branch.
type CommitScheduler struct {
	vcs        gateway.VersionControl
	dates      DateSource
	target     domain.RepositoryTarget
	logger     *logrus.Logger
	markerFile string
	failFast   bool
}

// CommitOption configures a CommitScheduler.
type CommitOption func(*CommitScheduler)

// WithCommitMarkerFile sets the append-only file that gives each commit a diff.
func WithCommitMarkerFile(name string) CommitOption {
	return func(s *CommitScheduler) {
		if name != "" {
			s.markerFile = name
		}
	}
}

// WithFailFast aborts the batch on the first failed commit.
func WithFailFast(enabled bool) CommitOption {
	return func(s *CommitScheduler) { s.failFast = enabled }
}

// NewCommitScheduler creates a new CommitScheduler instance.
func NewCommitScheduler(vcs gateway.VersionControl, dates DateSource, target domain.RepositoryTarget, logger *logrus.Logger, opts ...CommitOption) *CommitScheduler {
	s := &CommitScheduler{
		vcs:        vcs,
		dates:      dates,
		target:     target,
		logger:     logger,
		markerFile: DefaultCommitMarkerFile,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunCommitBatch creates commitsPerMonth forced-date commits for every month
// of the range and pushes them to the remote base branch.
func (s *CommitScheduler) RunCommitBatch(ctx context.Context, r domain.DateRange, commitsPerMonth int) (domain.RunSummary, error) {
	var summary domain.RunSummary
	if err := r.Validate(); err != nil {
		return summary, err
	}
	if commitsPerMonth < 0 || commitsPerMonth > domain.MaxCommitsPerMonth {
		return summary, domain.NewValidationError("commits_per_month", fmt.Errorf("%d is outside 0..%d", commitsPerMonth, domain.MaxCommitsPerMonth))
	}

	log := s.logger.WithField("batch", "commits")
	total := commitsPerMonth * len(r.Months())
	log.Infof("Range %s, %d commits per month, %d commits planned", r, commitsPerMonth, total)
	if total == 0 {
		log.Info("Nothing to schedule.")
		return summary, nil
	}

	if err := s.preflight(ctx, log); err != nil {
		return summary, err
	}

	seq := 0
	for _, month := range r.Months() {
		dates, err := s.dates.GenerateSortedDates(month, r.Year, commitsPerMonth)
		if err != nil {
			return summary, err
		}
		monthLog := log.WithField("month", fmt.Sprintf("%02d/%d", month, r.Year))
		monthLog.Info("Processing month")

		for _, ts := range dates {
			if err := ctx.Err(); err != nil {
				return summary, fmt.Errorf("commit batch cancelled after %d commits: %w", summary.Attempted, err)
			}
			seq++
			event := domain.SyntheticEvent{Kind: domain.EventKindCommit, Timestamp: ts, SequenceIndex: seq, Month: month}
			ok, res := s.commit(ctx, monthLog, event, total)
			summary.Record(ok)
			if !ok && s.failFast {
				return summary, domain.NewFatalError(fmt.Sprintf("commit %d", seq), &res, nil)
			}
		}
	}

	res := s.vcs.Push(ctx, s.target.Remote, s.target.BaseBranch, gateway.PushOptions{})
	report(log, res)
	if !res.Succeeded {
		return summary, domain.NewOperationError("push "+s.target.BaseBranch, res)
	}
	log.Infof("Pushed %d commits to %s/%s", summary.Succeeded, s.target.Remote, s.target.BaseBranch)
	return summary, nil
}

// preflight configures the identity, snapshots pending changes and
// synchronizes with the remote. Any failure here aborts the run.
func (s *CommitScheduler) preflight(ctx context.Context, log *logrus.Entry) error {
	if err := configureIdentity(ctx, s.vcs, s.target, log); err != nil {
		return err
	}
	if err := snapshotPendingChanges(ctx, s.vcs, log); err != nil {
		return err
	}
	res := s.vcs.Pull(ctx, s.target.Remote, s.target.BaseBranch, gateway.PullOptions{Rebase: true, AllowUnrelatedHistories: true})
	report(log, res)
	if !res.Succeeded {
		return domain.NewFatalError("pre-flight pull", &res, nil)
	}
	return nil
}

func (s *CommitScheduler) commit(ctx context.Context, log *logrus.Entry, event domain.SyntheticEvent, total int) (bool, domain.ExecutionResult) {
	message := fmt.Sprintf("Commit %d", event.SequenceIndex)
	log = log.WithField("event", event.SequenceIndex)
	log.Infof("[%d/%d] Creating commit for %s", event.SequenceIndex, total, event.Timestamp.Format("02/01/2006 15:04"))

	steps := []func() domain.ExecutionResult{
		func() domain.ExecutionResult {
			return s.vcs.AppendLine(s.markerFile, fmt.Sprintf("%s - %s", message, event.Timestamp.Format(time.RFC3339)))
		},
		func() domain.ExecutionResult { return s.vcs.Add(ctx, s.markerFile) },
		func() domain.ExecutionResult { return s.vcs.Commit(ctx, message, gateway.ForcedDate(event.Timestamp)) },
	}
	var res domain.ExecutionResult
	for _, step := range steps {
		res = step()
		report(log, res)
		if !res.Succeeded {
			return false, res
		}
	}
	return true, res
}

// configureIdentity sets the committer identity of the working tree.
func configureIdentity(ctx context.Context, vcs gateway.VersionControl, target domain.RepositoryTarget, log *logrus.Entry) error {
	for _, kv := range [][2]string{
		{"user.name", target.Committer.Name},
		{"user.email", target.Committer.Email},
	} {
		res := vcs.SetConfig(ctx, kv[0], kv[1])
		report(log, res)
		if !res.Succeeded {
			return domain.NewFatalError("configure "+kv[0], &res, nil)
		}
	}
	log.Infof("Git identity: %s <%s>", target.Committer.Name, target.Committer.Email)
	return nil
}

// snapshotPendingChanges commits uncommitted work so it cannot block the
// forced-date sequence.
func snapshotPendingChanges(ctx context.Context, vcs gateway.VersionControl, log *logrus.Entry) error {
	status := vcs.Status(ctx)
	report(log, status)
	if !status.Succeeded {
		return domain.NewFatalError("inspect working tree", &status, nil)
	}
	if !gateway.HasChanges(status) {
		return nil
	}
	log.Warn("Uncommitted changes found, committing them before scheduling")
	for _, step := range []func() domain.ExecutionResult{
		func() domain.ExecutionResult { return vcs.Add(ctx, ".") },
		func() domain.ExecutionResult { return vcs.Commit(ctx, FillerCommitMessage, nil) },
	} {
		res := step()
		report(log, res)
		if !res.Succeeded {
			return domain.NewFatalError("snapshot pending changes", &res, nil)
		}
	}
	return nil
}
