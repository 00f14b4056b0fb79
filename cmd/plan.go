package cmd

import (
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/github-backfill/internal/calendar"
	"github.com/naka-gawa/github-backfill/internal/domain"
	"github.com/naka-gawa/github-backfill/internal/usecase"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Prints the schedule a batch would follow, without side effects",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		kindFlag, _ := cmd.Flags().GetString("kind")
		perMonth, _ := cmd.Flags().GetInt("per-month")
		seed, _ := cmd.Flags().GetInt64("seed")

		var (
			kind     domain.EventKind
			fallback domain.HourWindow
		)
		switch kindFlag {
		case "commit", "commits":
			kind, fallback = domain.EventKindCommit, domain.FullDay
		case "pr", "prs", "pull_request":
			kind, fallback = domain.EventKindPullRequest, domain.BusinessHours
		default:
			return domain.NewValidationError("kind", fmt.Errorf("unknown event kind %q", kindFlag))
		}
		if err := s.cfg.Hours(fallback).Validate(); err != nil {
			return err
		}

		var opts []calendar.Option
		if seed != 0 {
			opts = append(opts, calendar.WithSource(rand.NewSource(seed)))
		}
		dates, err := s.dates(fallback, opts...)
		if err != nil {
			return err
		}

		events, err := usecase.Plan(dates, kind, s.cfg.Range(), perMonth)
		if err != nil {
			return err
		}
		ps, err := usecase.Summarize(events)
		if err != nil {
			return err
		}
		if err := s.sink.Flush(); err != nil {
			return err
		}
		renderPlan(cmd.OutOrStdout(), events, ps)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
	addScheduleFlags(planCmd)
	planCmd.Flags().String("kind", "commit", "Event kind to plan: commit or pr")
	planCmd.Flags().Int("per-month", 1, "Events per month")
	planCmd.Flags().Int64("seed", 0, "Random seed for a reproducible plan (0 draws a new one)")
}
