package usecase

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/naka-gawa/github-backfill/internal/domain"
	"github.com/naka-gawa/github-backfill/internal/gateway"
)

const issueBodyTemplate = `## Description of issue %d

This issue was generated automatically on %s

**Details:**
- Priority: High
- Type: Enhancement
- Assignee: Development team`

// IssueCreator submits a batch of structured issues.
type IssueCreator struct {
	tracker gateway.Tracker
	logger  *logrus.Logger
	now     func() time.Time
}

// IssueOption configures an IssueCreator.
type IssueOption func(*IssueCreator)

// WithClock replaces the clock used for titles and bodies.
func WithClock(now func() time.Time) IssueOption {
	return func(c *IssueCreator) { c.now = now }
}

// NewIssueCreator creates a new IssueCreator instance.
func NewIssueCreator(tracker gateway.Tracker, logger *logrus.Logger, opts ...IssueOption) *IssueCreator {
	c := &IssueCreator{tracker: tracker, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BuildIssue returns the deterministic payload of the i-th issue.
func BuildIssue(i int, now time.Time) gateway.IssueRequest {
	return gateway.IssueRequest{
		Title: fmt.Sprintf("Issue %d - %s", i, now.Format("2006-01-02")),
		Body:  fmt.Sprintf(issueBodyTemplate, i, now.Format("2006-01-02 15:04:05")),
	}
}

// CreateIssues submits count issues. A failed issue never aborts the batch;
// only cancellation of ctx stops it early. Each call is independent.
func (c *IssueCreator) CreateIssues(ctx context.Context, target domain.RepositoryTarget, count int) domain.RunSummary {
	var summary domain.RunSummary
	log := c.logger.WithFields(logrus.Fields{"batch": "issues", "repository": target.FullName()})
	log.Infof("Creating %d issues", count)

	for i := 1; i <= count; i++ {
		if err := ctx.Err(); err != nil {
			log.WithError(err).Warnf("Issue batch cancelled, %d of %d not attempted", count-i+1, count)
			break
		}
		req := BuildIssue(i, c.now())
		summary.Record(c.createOne(ctx, log.WithField("event", i), target, req, i, count))
	}

	log.WithFields(logrus.Fields{
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
	}).Infof("Issue batch finished, %d processed", summary.Attempted)
	return summary
}

func (c *IssueCreator) createOne(ctx context.Context, log *logrus.Entry, target domain.RepositoryTarget, req gateway.IssueRequest, i, count int) bool {
	progress := fmt.Sprintf("[%d/%d]", i, count)
	log.Infof("%s Creating issue: %s", progress, truncate(req.Title, 30))

	start := time.Now()
	created, err := c.tracker.CreateIssue(ctx, target.Owner, target.Name, req)
	desc := "POST /repos/" + target.FullName() + "/issues"
	if err != nil {
		res := domain.FailedResult(desc, err)
		res.Duration = time.Since(start)
		report(log, res)
		return false
	}
	if created == nil || created.StatusCode != http.StatusCreated {
		status := 0
		if created != nil {
			status = created.StatusCode
		}
		res := domain.FailedResult(desc, fmt.Errorf("unexpected status %d", status))
		report(log, res)
		return false
	}
	log.WithField("url", created.HTMLURL).Infof("%s Issue created in %.2fs", progress, time.Since(start).Seconds())
	return true
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}
