package domain

import (
	"fmt"
	"strings"
	"time"
)

// Accepted bounds for the year of a DateRange.
const (
	MinYear = 1970
	MaxYear = 2099
)

// Bounds of the unit counts of a single run.
const (
	MaxCommitsPerMonth = 1000
	MaxPRsPerMonth     = 10
	MaxIssues          = 100
)

// Committer is the identity recorded on every synthetic commit.
type Committer struct {
	Name  string
	Email string
}

// RepositoryTarget identifies the repository a run mutates. It is immutable
// for the duration of a run.
type RepositoryTarget struct {
	Owner      string
	Name       string
	BaseBranch string
	Remote     string
	Token      string
	Committer  Committer
}

// FullName returns "owner/name".
func (t RepositoryTarget) FullName() string {
	return t.Owner + "/" + t.Name
}

// DateRange is an inclusive month range within a single year.
type DateRange struct {
	Year       int
	StartMonth int
	EndMonth   int
}

// Validate checks the month bounds, their order and the accepted year bound.
func (r DateRange) Validate() error {
	if r.StartMonth < 1 || r.StartMonth > 12 {
		return NewValidationError("start_month", fmt.Errorf("month %d is outside 1..12", r.StartMonth))
	}
	if r.EndMonth < 1 || r.EndMonth > 12 {
		return NewValidationError("end_month", fmt.Errorf("month %d is outside 1..12", r.EndMonth))
	}
	if r.StartMonth > r.EndMonth {
		return NewValidationError("month_range", fmt.Errorf("start month %d is after end month %d", r.StartMonth, r.EndMonth))
	}
	if r.Year < MinYear || r.Year > MaxYear {
		return NewValidationError("year", fmt.Errorf("year %d is outside %d..%d", r.Year, MinYear, MaxYear))
	}
	return nil
}

// Months returns the months of the range in ascending order.
func (r DateRange) Months() []int {
	if r.StartMonth > r.EndMonth {
		return nil
	}
	months := make([]int, 0, r.EndMonth-r.StartMonth+1)
	for m := r.StartMonth; m <= r.EndMonth; m++ {
		months = append(months, m)
	}
	return months
}

func (r DateRange) String() string {
	return fmt.Sprintf("%02d-%02d/%d", r.StartMonth, r.EndMonth, r.Year)
}

// HourWindow restricts generated timestamps to hours in [Start, End].
type HourWindow struct {
	Start int
	End   int
}

var (
	FullDay       = HourWindow{Start: 0, End: 23}
	BusinessHours = HourWindow{Start: 9, End: 18}
)

// Validate checks that both bounds are valid hours and ordered.
func (w HourWindow) Validate() error {
	if w.Start < 0 || w.Start > 23 || w.End < 0 || w.End > 23 {
		return NewValidationError("hour_window", fmt.Errorf("hours %d..%d must be within 0..23", w.Start, w.End))
	}
	if w.Start > w.End {
		return NewValidationError("hour_window", fmt.Errorf("start hour %d is after end hour %d", w.Start, w.End))
	}
	return nil
}

// EventKind is the kind of synthetic history item.
type EventKind string

const (
	EventKindCommit      EventKind = "commit"
	EventKindIssue       EventKind = "issue"
	EventKindPullRequest EventKind = "pull_request"
)

// SyntheticEvent is a fabricated history item carrying a chosen timestamp.
// It is created right before use and consumed by exactly one execution pass.
type SyntheticEvent struct {
	Kind          EventKind
	Timestamp     time.Time
	SequenceIndex int // 1-based within the run
	Month         int
	// Pull request events only.
	MonthIndex int
	BranchName string
	PRNumber   *int
}

// ExecutionResult is produced by every external operation.
type ExecutionResult struct {
	Description string
	Succeeded   bool
	Stdout      string
	Stderr      string
	ExitCode    int
	Duration    time.Duration
	Err         error
}

// FailedResult builds a failed ExecutionResult for an operation that could
// not produce process output, such as an API call.
func FailedResult(description string, err error) ExecutionResult {
	return ExecutionResult{
		Description: description,
		Succeeded:   false,
		ExitCode:    -1,
		Err:         err,
	}
}

// Diagnostic returns the most useful failure detail for logs.
func (r ExecutionResult) Diagnostic() string {
	parts := make([]string, 0, 2)
	if s := strings.TrimSpace(r.Stderr); s != "" {
		parts = append(parts, s)
	}
	if r.Err != nil {
		parts = append(parts, r.Err.Error())
	}
	if len(parts) == 0 {
		if s := strings.TrimSpace(r.Stdout); s != "" {
			return s
		}
		return "no diagnostic output"
	}
	return strings.Join(parts, ": ")
}
