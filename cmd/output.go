package cmd

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/naka-gawa/github-backfill/internal/domain"
	"github.com/naka-gawa/github-backfill/internal/usecase"
)

type runReport struct {
	RunID      string
	Batch      string
	Repository string
	Scope      string
	Summary    domain.RunSummary
	Elapsed    time.Duration
}

func renderSummary(w io.Writer, r runReport) {
	fmt.Fprintf(w, "\nRun %s: %s on %s\n\n", r.RunID, r.Batch, r.Repository)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})
	if r.Scope != "" {
		table.Append([]string{"Scope", r.Scope})
	}
	table.Append([]string{"Attempted", strconv.Itoa(r.Summary.Attempted)})
	table.Append([]string{"Succeeded", strconv.Itoa(r.Summary.Succeeded)})
	table.Append([]string{"Failed", strconv.Itoa(r.Summary.Failed)})
	table.Append([]string{"Elapsed", r.Elapsed.Round(time.Millisecond).String()})
	table.Render()
}

func renderPlan(w io.Writer, events []domain.SyntheticEvent, ps usecase.PlanStats) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Month", "Index", "Timestamp", "Branch"})
	for _, ev := range events {
		table.Append([]string{
			strconv.Itoa(ev.SequenceIndex),
			fmt.Sprintf("%02d", ev.Month),
			strconv.Itoa(ev.MonthIndex),
			ev.Timestamp.Format(time.RFC3339),
			ev.BranchName,
		})
	}
	table.Render()

	fmt.Fprintln(w)
	stats := tablewriter.NewWriter(w)
	stats.SetHeader([]string{"Metric", "Value"})
	stats.Append([]string{"Events", strconv.Itoa(ps.Count)})
	months := make([]int, 0, len(ps.PerMonth))
	for m := range ps.PerMonth {
		months = append(months, m)
	}
	sort.Ints(months)
	for _, m := range months {
		stats.Append([]string{fmt.Sprintf("Month %02d", m), strconv.Itoa(ps.PerMonth[m])})
	}
	stats.Append([]string{"Mean hour", fmt.Sprintf("%.2f", ps.MeanHour)})
	stats.Append([]string{"Median hour", fmt.Sprintf("%.2f", ps.MedianHour)})
	stats.Append([]string{"Min gap", ps.MinGap.String()})
	stats.Append([]string{"Median gap", ps.MedianGap.String()})
	stats.Render()
}
