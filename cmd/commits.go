package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/github-backfill/internal/domain"
	"github.com/naka-gawa/github-backfill/internal/usecase"
)

var commitsCmd = &cobra.Command{
	Use:   "commits",
	Short: "Creates backdated commits on the base branch and pushes them",
	Long: `Creates a number of commits per month of the range. Each commit appends a
line to a marker file and carries a forced author and committer date drawn
inside its month. The base branch is pushed once at the end.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		if err := s.cfg.ValidateCommits(); err != nil {
			return err
		}
		dates, err := s.dates(domain.FullDay)
		if err != nil {
			return err
		}

		scheduler := usecase.NewCommitScheduler(s.gitGateway(), dates, s.cfg.Target(), s.logger,
			usecase.WithCommitMarkerFile(s.cfg.MarkerFile),
			usecase.WithFailFast(s.cfg.FailFast),
		)
		scope := fmt.Sprintf("%s, %d per month", s.cfg.Range(), s.cfg.CommitsPerMonth)

		return s.execute(cmd, "commits", scope, func(ctx context.Context) (domain.RunSummary, error) {
			if s.cfg.Verify {
				gh, err := s.githubGateway()
				if err != nil {
					return domain.RunSummary{}, err
				}
				if err := s.verify(ctx, gh); err != nil {
					return domain.RunSummary{}, err
				}
			}
			return scheduler.RunCommitBatch(ctx, s.cfg.Range(), s.cfg.CommitsPerMonth)
		})
	},
}

func init() {
	rootCmd.AddCommand(commitsCmd)
	addScheduleFlags(commitsCmd)
	commitsCmd.Flags().IntP("commits", "n", 1, "Commits per month (0-1000)")
	commitsCmd.Flags().String("marker-file", usecase.DefaultCommitMarkerFile, "File each commit appends a line to")
	commitsCmd.Flags().Bool("fail-fast", false, "Abort on the first failed commit")
	commitsCmd.Flags().Bool("verify", false, "Verify repository access with the GitHub API before committing")
}
