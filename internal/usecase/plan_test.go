package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/github-backfill/internal/domain"
)

func TestPlan(t *testing.T) {
	events, err := Plan(testDates(domain.BusinessHours), domain.EventKindPullRequest, domain.DateRange{Year: 2024, StartMonth: 2, EndMonth: 3}, 3)
	require.NoError(t, err)
	require.Len(t, events, 6)

	for i, ev := range events {
		assert.Equal(t, i+1, ev.SequenceIndex)
		assert.Equal(t, 2024, ev.Timestamp.Year())
		assert.Equal(t, ev.Month, int(ev.Timestamp.Month()))
		assert.Equal(t, BranchName(ev.Timestamp, ev.MonthIndex), ev.BranchName)
		assert.Nil(t, ev.PRNumber)
		if i > 0 {
			assert.False(t, ev.Timestamp.Before(events[i-1].Timestamp), "plan must be chronological")
		}
	}
	assert.Equal(t, []int{1, 2, 3, 1, 2, 3}, []int{
		events[0].MonthIndex, events[1].MonthIndex, events[2].MonthIndex,
		events[3].MonthIndex, events[4].MonthIndex, events[5].MonthIndex,
	})
}

func TestPlan_CommitsHaveNoBranch(t *testing.T) {
	events, err := Plan(testDates(domain.FullDay), domain.EventKindCommit, domain.DateRange{Year: 2024, StartMonth: 1, EndMonth: 1}, 2)
	require.NoError(t, err)
	for _, ev := range events {
		assert.Empty(t, ev.BranchName)
	}
}

func TestPlan_Invalid(t *testing.T) {
	_, err := Plan(testDates(domain.FullDay), domain.EventKindCommit, domain.DateRange{Year: 2024, StartMonth: 5, EndMonth: 4}, 1)
	assert.True(t, domain.IsValidation(err))

	_, err = Plan(testDates(domain.FullDay), domain.EventKindCommit, domain.DateRange{Year: 2024, StartMonth: 1, EndMonth: 4}, -2)
	assert.True(t, domain.IsValidation(err))
}

func TestSummarize(t *testing.T) {
	at := func(month, day, hour int) domain.SyntheticEvent {
		return domain.SyntheticEvent{Month: month, Timestamp: time.Date(2024, time.Month(month), day, hour, 0, 0, 0, time.UTC)}
	}

	testCases := []struct {
		name     string
		events   []domain.SyntheticEvent
		expected PlanStats
	}{
		{
			name:     "empty",
			expected: PlanStats{PerMonth: map[int]int{}},
		},
		{
			name:     "single event has no gaps",
			events:   []domain.SyntheticEvent{at(1, 1, 10)},
			expected: PlanStats{Count: 1, PerMonth: map[int]int{1: 1}, MeanHour: 10, MedianHour: 10},
		},
		{
			name:   "gaps and hours",
			events: []domain.SyntheticEvent{at(1, 1, 8), at(1, 1, 10), at(1, 2, 12), at(2, 1, 14)},
			expected: PlanStats{
				Count:      4,
				PerMonth:   map[int]int{1: 3, 2: 1},
				MeanHour:   11,
				MedianHour: 11,
				MinGap:     2 * time.Hour,
				MedianGap:  26 * time.Hour,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ps, err := Summarize(tc.events)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, ps)
		})
	}
}
