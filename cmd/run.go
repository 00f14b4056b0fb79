package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/naka-gawa/github-backfill/internal/calendar"
	"github.com/naka-gawa/github-backfill/internal/domain"
	"github.com/naka-gawa/github-backfill/internal/gateway"
	"github.com/naka-gawa/github-backfill/internal/runner"
)

func (s *session) gitGateway() *gateway.GitGateway {
	return gateway.NewGitGateway(runner.NewExecRunner(runner.WithTimeout(s.cfg.CommandTimeout)), s.cfg.WorkDir)
}

func (s *session) githubGateway() (*gateway.GitHubGateway, error) {
	limit := rate.Inf
	if s.cfg.WriteRate > 0 {
		limit = rate.Limit(s.cfg.WriteRate)
	}
	gh, err := gateway.NewGitHubGateway(s.cfg.GitHubToken, s.logger,
		gateway.WithWriteRate(limit, 1),
		gateway.WithAPITimeout(s.cfg.APITimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub gateway: %w", err)
	}
	return gh, nil
}

func (s *session) dates(fallback domain.HourWindow, opts ...calendar.Option) (*calendar.Generator, error) {
	loc, err := s.cfg.Location()
	if err != nil {
		return nil, err
	}
	base := []calendar.Option{calendar.WithLocation(loc), calendar.WithHours(s.cfg.Hours(fallback))}
	return calendar.NewGenerator(append(base, opts...)...), nil
}

// verify checks that the repository exists, that the token may write to it
// and that the base branch exists. Any failure aborts the run.
func (s *session) verify(ctx context.Context, tracker gateway.Tracker) error {
	target := s.cfg.Target()
	info, err := tracker.VerifyRepository(ctx, target.Owner, target.Name, target.BaseBranch)
	if err != nil {
		return domain.NewFatalError("verify repository", nil, err)
	}
	s.logger.WithField("permission", info.Permission).Infof("Repository %s verified", info.NameWithOwner)
	return nil
}

// execute runs a batch while draining the log sink, then renders its summary.
// It fails when the batch returned an error, any unit failed or the logs could
// not be written. The summary is rendered in every case.
func (s *session) execute(cmd *cobra.Command, batch, scope string, run func(ctx context.Context) (domain.RunSummary, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	drainCtx, stopDrain := context.WithCancel(context.WithoutCancel(ctx))

	var (
		summary domain.RunSummary
		runErr  error
	)
	start := time.Now()
	var g errgroup.Group
	g.Go(func() error {
		return s.sink.Drain(drainCtx)
	})
	g.Go(func() error {
		defer stopDrain()
		summary, runErr = run(ctx)
		return nil
	})
	var drainErr error
	if err := g.Wait(); err != nil {
		drainErr = fmt.Errorf("failed to write logs: %w", err)
	}

	renderSummary(cmd.OutOrStdout(), runReport{
		RunID:      s.runID,
		Batch:      batch,
		Repository: s.cfg.Target().FullName(),
		Scope:      scope,
		Summary:    summary,
		Elapsed:    time.Since(start),
	})

	if runErr == nil && summary.Failed > 0 {
		runErr = fmt.Errorf("%d of %d %s failed", summary.Failed, summary.Attempted, batch)
	}
	return errors.Join(runErr, drainErr)
}
