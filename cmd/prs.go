package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/github-backfill/internal/domain"
	"github.com/naka-gawa/github-backfill/internal/usecase"
)

var prsCmd = &cobra.Command{
	Use:   "prs",
	Short: "Creates, merges and cleans up backdated pull requests",
	Long: `Runs one pull request lifecycle per synthetic timestamp: branch, forced-date
commit, push, open, forced-date merge into the base branch and push. The
feature branch is always deleted locally and on the remote afterwards.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		if err := s.cfg.ValidatePRs(); err != nil {
			return err
		}
		dates, err := s.dates(domain.BusinessHours)
		if err != nil {
			return err
		}
		gh, err := s.githubGateway()
		if err != nil {
			return err
		}

		orchestrator := usecase.NewPROrchestrator(s.gitGateway(), gh, dates, s.cfg.Target(), s.logger,
			usecase.WithPRMarkerFile(s.cfg.MarkerFile),
		)
		scope := fmt.Sprintf("%s, %d per month", s.cfg.Range(), s.cfg.PRsPerMonth)

		return s.execute(cmd, "pull requests", scope, func(ctx context.Context) (domain.RunSummary, error) {
			if s.cfg.Verify {
				if err := s.verify(ctx, gh); err != nil {
					return domain.RunSummary{}, err
				}
			}
			return orchestrator.RunPRBatch(ctx, s.cfg.Range(), s.cfg.PRsPerMonth)
		})
	},
}

func init() {
	rootCmd.AddCommand(prsCmd)
	addScheduleFlags(prsCmd)
	prsCmd.Flags().IntP("prs", "n", 1, "Pull requests per month (0-10)")
	prsCmd.Flags().String("marker-file", usecase.DefaultPRMarkerFile, "File each pull request commit appends a line to")
	prsCmd.Flags().Float64("write-rate", 1, "Maximum pull request creations per second")
	prsCmd.Flags().Bool("verify", false, "Verify repository access before the first lifecycle")
}
