package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/github-backfill/internal/domain"
	"github.com/naka-gawa/github-backfill/internal/usecase"
)

var issuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "Opens a batch of templated issues on the repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		if err := s.cfg.ValidateIssues(); err != nil {
			return err
		}
		gh, err := s.githubGateway()
		if err != nil {
			return err
		}

		creator := usecase.NewIssueCreator(gh, s.logger)
		scope := fmt.Sprintf("%d issues", s.cfg.IssueCount)

		return s.execute(cmd, "issues", scope, func(ctx context.Context) (domain.RunSummary, error) {
			if s.cfg.Verify {
				if err := s.verify(ctx, gh); err != nil {
					return domain.RunSummary{}, err
				}
			}
			return creator.CreateIssues(ctx, s.cfg.Target(), s.cfg.IssueCount), nil
		})
	},
}

func init() {
	rootCmd.AddCommand(issuesCmd)
	issuesCmd.Flags().IntP("count", "n", 1, "Number of issues to open (0-100)")
	issuesCmd.Flags().Float64("write-rate", 1, "Maximum issue creations per second")
	issuesCmd.Flags().Bool("verify", false, "Verify repository access before opening issues")
}
