package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/naka-gawa/github-backfill/internal/domain"
	"github.com/naka-gawa/github-backfill/internal/gateway"
)

// DefaultPRMarkerFile is the file each pull request commit appends a line to.
const DefaultPRMarkerFile = "historial.txt"

// BranchName encodes the synthetic date and the index within the month.
func BranchName(ts time.Time, index int) string {
	return fmt.Sprintf("pr/%s-%03d", ts.Format("20060102"), index)
}

// PROrchestrator drives the create, commit, open, merge and cleanup
// lifecycle of synthetic pull requests, strictly one at a time.
type PROrchestrator struct {
	vcs        gateway.VersionControl
	tracker    gateway.Tracker
	dates      DateSource
	target     domain.RepositoryTarget
	logger     *logrus.Logger
	markerFile string
}

// PROption configures a PROrchestrator.
type PROption func(*PROrchestrator)

// WithPRMarkerFile sets the append-only file each pull request commit touches.
func WithPRMarkerFile(name string) PROption {
	return func(o *PROrchestrator) {
		if name != "" {
			o.markerFile = name
		}
	}
}

// NewPROrchestrator creates a new PROrchestrator instance.
func NewPROrchestrator(vcs gateway.VersionControl, tracker gateway.Tracker, dates DateSource, target domain.RepositoryTarget, logger *logrus.Logger, opts ...PROption) *PROrchestrator {
	o := &PROrchestrator{
		vcs:        vcs,
		tracker:    tracker,
		dates:      dates,
		target:     target,
		logger:     logger,
		markerFile: DefaultPRMarkerFile,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunPRBatch runs prsPerMonth lifecycles for every month of the range, in
// month then index order. A failed lifecycle is counted and the batch moves on;
// validation, identity and working tree failures abort before any lifecycle.
func (o *PROrchestrator) RunPRBatch(ctx context.Context, r domain.DateRange, prsPerMonth int) (domain.RunSummary, error) {
	var summary domain.RunSummary
	if err := r.Validate(); err != nil {
		return summary, err
	}
	if prsPerMonth < 0 || prsPerMonth > domain.MaxPRsPerMonth {
		return summary, domain.NewValidationError("prs_per_month", fmt.Errorf("%d is outside 0..%d", prsPerMonth, domain.MaxPRsPerMonth))
	}

	log := o.logger.WithField("batch", "pull_requests")
	total := prsPerMonth * len(r.Months())
	log.Infof("Range %s, %d pull requests per month, %d lifecycles planned", r, prsPerMonth, total)
	if total == 0 {
		return summary, nil
	}

	if err := configureIdentity(ctx, o.vcs, o.target, log); err != nil {
		return summary, err
	}
	if err := snapshotPendingChanges(ctx, o.vcs, log); err != nil {
		return summary, err
	}

	seq := 0
	for _, month := range r.Months() {
		dates, err := o.dates.GenerateSortedDates(month, r.Year, prsPerMonth)
		if err != nil {
			return summary, err
		}
		log.WithField("month", fmt.Sprintf("%02d/%d", month, r.Year)).Info("Processing month")

		for i, ts := range dates {
			if err := ctx.Err(); err != nil {
				return summary, fmt.Errorf("pull request batch cancelled after %d lifecycles: %w", summary.Attempted, err)
			}
			seq++
			index := i + 1
			event := domain.SyntheticEvent{
				Kind:          domain.EventKindPullRequest,
				Timestamp:     ts,
				SequenceIndex: seq,
				Month:         month,
				MonthIndex:    index,
				BranchName:    BranchName(ts, index),
			}
			rep := o.RunLifecycle(ctx, event)
			summary.Record(rep.Succeeded())
		}
	}

	log.WithFields(logrus.Fields{
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
	}).Info("Pull request batch finished")
	return summary, nil
}

// RunLifecycle runs a single pull request lifecycle. Cleanup of the feature
// branch runs exactly once whatever the outcome, including cancellation.
func (o *PROrchestrator) RunLifecycle(ctx context.Context, event domain.SyntheticEvent) (rep LifecycleReport) {
	lc := newLifecycle()
	log := o.logger.WithFields(logrus.Fields{
		"event":  event.SequenceIndex,
		"branch": event.BranchName,
	})
	log.Infof("Processing PR %d of %02d/%d at %s", event.MonthIndex, event.Month, event.Timestamp.Year(), event.Timestamp.Format("2006-01-02 15:04"))

	var merge mergeOutcome
	defer func() {
		rep.CleanupErrors = o.cleanup(context.WithoutCancel(ctx), log, event.BranchName, lc.failedFrom, merge)
		_ = lc.advance(StateCleaned)
		rep.Event = event
		rep.States = lc.history
		if rep.Err != nil {
			rep.FailedAt = lc.failedFrom
		}
	}()

	dateEnv := gateway.ForcedDate(event.Timestamp)
	steps := []struct {
		to  State
		run func() error
	}{
		{StateBranchCreated, func() error {
			return o.runAll(log, "create branch",
				func() domain.ExecutionResult { return o.vcs.Checkout(ctx, o.target.BaseBranch) },
				func() domain.ExecutionResult {
					return o.vcs.Pull(ctx, o.target.Remote, o.target.BaseBranch, gateway.PullOptions{Rebase: true})
				},
				func() domain.ExecutionResult { return o.vcs.CreateBranch(ctx, event.BranchName) },
			)
		}},
		{StateCommitted, func() error {
			line := fmt.Sprintf("PR %d - %s", event.MonthIndex, event.Timestamp.Format(time.RFC3339))
			message := fmt.Sprintf("PR %d - %s", event.MonthIndex, event.Timestamp.Format("2006-01-02 15:04"))
			return o.runAll(log, "commit",
				func() domain.ExecutionResult { return o.vcs.AppendLine(o.markerFile, line) },
				func() domain.ExecutionResult { return o.vcs.Add(ctx, o.markerFile) },
				func() domain.ExecutionResult { return o.vcs.Commit(ctx, message, dateEnv) },
			)
		}},
		{StatePushed, func() error {
			return o.runAll(log, "push branch", func() domain.ExecutionResult {
				return o.vcs.Push(ctx, o.target.Remote, event.BranchName, gateway.PushOptions{SetUpstream: true})
			})
		}},
		{StatePROpened, func() error {
			number, url, err := o.openPullRequest(ctx, log, event)
			if err != nil {
				return err
			}
			event.PRNumber = &number
			rep.PullURL = url
			return nil
		}},
		{StateMerged, func() error {
			message := fmt.Sprintf("Merge PR #%d (%s)", *event.PRNumber, event.Timestamp.Format("2006-01-02"))
			return o.runAll(log, "merge",
				func() domain.ExecutionResult { return o.vcs.Checkout(ctx, o.target.BaseBranch) },
				func() domain.ExecutionResult {
					res := o.vcs.Merge(ctx, event.BranchName, message, dateEnv)
					merge.failed = !res.Succeeded
					return res
				},
				func() domain.ExecutionResult {
					res := o.vcs.Push(ctx, o.target.Remote, o.target.BaseBranch, gateway.PushOptions{})
					merge.unpushed = !res.Succeeded
					return res
				},
			)
		}},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			lc.fail()
			rep.Err = fmt.Errorf("lifecycle cancelled before %s: %w", step.to, err)
			log.WithField("state", lc.failedFrom).Warn(rep.Err.Error())
			return rep
		}
		if err := step.run(); err != nil {
			lc.fail()
			rep.Err = err
			log.WithField("state", lc.failedFrom).WithError(err).Error("Lifecycle failed, cleaning up")
			return rep
		}
		if err := lc.advance(step.to); err != nil {
			lc.fail()
			rep.Err = err
			return rep
		}
		log.WithField("state", step.to).Debug("Lifecycle advanced")
	}
	log.WithField("pr", *event.PRNumber).Info("Pull request merged")
	return rep
}

// runAll runs steps in order and stops at the first failure.
func (o *PROrchestrator) runAll(log *logrus.Entry, op string, steps ...func() domain.ExecutionResult) error {
	for _, step := range steps {
		res := step()
		report(log, res)
		if !res.Succeeded {
			return domain.NewOperationError(op, res)
		}
	}
	return nil
}

func (o *PROrchestrator) openPullRequest(ctx context.Context, log *logrus.Entry, event domain.SyntheticEvent) (int, string, error) {
	req := gateway.PullRequestRequest{
		Title: fmt.Sprintf("PR %d - %s", event.MonthIndex, event.Timestamp.Format("2006-01")),
		Head:  event.BranchName,
		Base:  o.target.BaseBranch,
		Body:  fmt.Sprintf("Automatically generated pull request\nDate: %s", event.Timestamp.Format("2006-01-02 15:04:05 -0700")),
	}
	desc := "POST /repos/" + o.target.FullName() + "/pulls"
	start := time.Now()
	created, err := o.tracker.CreatePullRequest(ctx, o.target.Owner, o.target.Name, req)
	if err == nil && (created == nil || created.Number == 0) {
		err = fmt.Errorf("pull request response carried no number")
	}
	if err != nil {
		res := domain.FailedResult(desc, err)
		res.Duration = time.Since(start)
		report(log, res)
		return 0, "", domain.NewOperationError("open pull request", res)
	}
	log.WithField("url", created.HTMLURL).Infof("Opened pull request #%d", created.Number)
	return created.Number, created.HTMLURL, nil
}

// mergeOutcome records how far the merge step got before failing.
type mergeOutcome struct {
	// failed means the merge itself stopped, possibly mid-conflict.
	failed bool
	// unpushed means the merge commit exists only on the local base branch.
	unpushed bool
}

// cleanup returns the working tree to the base branch and deletes the
// feature branch locally and on the remote. Failures are logged and
// returned, never escalated. When the branch could not be created the
// branch name is not ours, so nothing is deleted.
//
// The next lifecycle starts from what cleanup leaves behind: a commit that
// failed after staging leaves its edit in the index, and a merge that could
// not be pushed leaves a local merge commit a later rebase pull would
// flatten. Both are discarded here.
func (o *PROrchestrator) cleanup(ctx context.Context, log *logrus.Entry, branch string, failedFrom State, merge mergeOutcome) []error {
	var errs []error
	run := func(op string, res domain.ExecutionResult) {
		report(log, res)
		if !res.Succeeded {
			err := domain.NewCleanupError(op, res)
			log.WithError(err).Warn("Cleanup step failed, continuing")
			errs = append(errs, err)
		}
	}

	if merge.failed {
		run("abort merge", o.vcs.MergeAbort(ctx))
	}
	if failedFrom == StateBranchCreated {
		run("discard uncommitted changes", o.vcs.Reset(ctx, "HEAD"))
	}
	run("checkout base branch", o.vcs.Checkout(ctx, o.target.BaseBranch))
	if merge.unpushed {
		run("realign base branch", o.vcs.Reset(ctx, o.target.Remote+"/"+o.target.BaseBranch))
	}
	if failedFrom == StateInit {
		return errs
	}
	run("delete local branch", o.vcs.DeleteBranch(ctx, branch))
	run("delete remote branch", o.vcs.DeleteRemoteBranch(ctx, o.target.Remote, branch))
	return errs
}
