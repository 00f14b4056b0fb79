package usecase

import (
	"fmt"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/naka-gawa/github-backfill/internal/domain"
)

// PlanStats describes the distribution of a planned schedule.
type PlanStats struct {
	Count      int
	PerMonth   map[int]int
	MeanHour   float64
	MedianHour float64
	// MinGap and MedianGap are measured between consecutive events.
	MinGap    time.Duration
	MedianGap time.Duration
}

// Plan generates the events a batch would execute, without side effects.
func Plan(dates DateSource, kind domain.EventKind, r domain.DateRange, perMonth int) ([]domain.SyntheticEvent, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if perMonth < 0 {
		return nil, domain.NewValidationError("per_month", fmt.Errorf("%d must not be negative", perMonth))
	}
	events := make([]domain.SyntheticEvent, 0, perMonth*len(r.Months()))
	seq := 0
	for _, month := range r.Months() {
		ts, err := dates.GenerateSortedDates(month, r.Year, perMonth)
		if err != nil {
			return nil, err
		}
		for i, t := range ts {
			seq++
			ev := domain.SyntheticEvent{
				Kind:          kind,
				Timestamp:     t,
				SequenceIndex: seq,
				Month:         month,
				MonthIndex:    i + 1,
			}
			if kind == domain.EventKindPullRequest {
				ev.BranchName = BranchName(t, i+1)
			}
			events = append(events, ev)
		}
	}
	return events, nil
}

// Summarize computes PlanStats over events in their given order.
func Summarize(events []domain.SyntheticEvent) (PlanStats, error) {
	ps := PlanStats{Count: len(events), PerMonth: make(map[int]int)}
	if len(events) == 0 {
		return ps, nil
	}

	hours := make(stats.Float64Data, 0, len(events))
	for _, ev := range events {
		ps.PerMonth[ev.Month]++
		hours = append(hours, float64(ev.Timestamp.Hour())+float64(ev.Timestamp.Minute())/60)
	}
	var err error
	if ps.MeanHour, err = hours.Mean(); err != nil {
		return ps, fmt.Errorf("failed to compute mean hour: %w", err)
	}
	if ps.MedianHour, err = hours.Median(); err != nil {
		return ps, fmt.Errorf("failed to compute median hour: %w", err)
	}

	if len(events) < 2 {
		return ps, nil
	}
	gaps := make(stats.Float64Data, 0, len(events)-1)
	for i := 1; i < len(events); i++ {
		gaps = append(gaps, events[i].Timestamp.Sub(events[i-1].Timestamp).Seconds())
	}
	minGap, err := gaps.Min()
	if err != nil {
		return ps, fmt.Errorf("failed to compute minimum gap: %w", err)
	}
	medianGap, err := gaps.Median()
	if err != nil {
		return ps, fmt.Errorf("failed to compute median gap: %w", err)
	}
	ps.MinGap = time.Duration(minGap * float64(time.Second))
	ps.MedianGap = time.Duration(medianGap * float64(time.Second))
	return ps, nil
}
