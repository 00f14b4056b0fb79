// Package calendar generates valid synthetic timestamps for a month of a year.
package calendar

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/naka-gawa/github-backfill/internal/domain"
)

// IsLeapYear applies the Gregorian leap year rule.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysInMonth returns the number of days of month in year.
func DaysInMonth(month, year int) (int, error) {
	if month < 1 || month > 12 {
		return 0, domain.NewValidationError("month", fmt.Errorf("month %d is outside 1..12", month))
	}
	if month == 2 && IsLeapYear(year) {
		return 29, nil
	}
	return daysPerMonth[month-1], nil
}

var daysPerMonth = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// Generator draws random timestamps. It is not safe for concurrent use.
type Generator struct {
	rnd   *rand.Rand
	loc   *time.Location
	hours domain.HourWindow
}

// Option configures a Generator.
type Option func(*Generator)

// WithSource sets the random source, mainly for deterministic tests.
func WithSource(src rand.Source) Option {
	return func(g *Generator) { g.rnd = rand.New(src) }
}

// WithLocation sets the time zone of generated timestamps.
func WithLocation(loc *time.Location) Option {
	return func(g *Generator) {
		if loc != nil {
			g.loc = loc
		}
	}
}

// WithHours restricts the hour of generated timestamps.
func WithHours(w domain.HourWindow) Option {
	return func(g *Generator) { g.hours = w }
}

// NewGenerator creates a Generator drawing over the full day in the local zone.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		loc:   time.Local,
		hours: domain.FullDay,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Hours returns the hour window the generator draws from.
func (g *Generator) Hours() domain.HourWindow {
	return g.hours
}

// RandomDateInMonth picks a uniformly random day, hour (within the window) and
// minute of the given month.
func (g *Generator) RandomDateInMonth(month, year int) (time.Time, error) {
	days, err := DaysInMonth(month, year)
	if err != nil {
		return time.Time{}, err
	}
	if err := g.hours.Validate(); err != nil {
		return time.Time{}, err
	}
	day := 1 + g.rnd.Intn(days)
	hour := g.hours.Start + g.rnd.Intn(g.hours.End-g.hours.Start+1)
	minute := g.rnd.Intn(60)
	second := g.rnd.Intn(60)
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, g.loc), nil
}

// GenerateSortedDates draws count independent timestamps in the month and
// returns them in ascending order. Duplicates are allowed.
func (g *Generator) GenerateSortedDates(month, year, count int) ([]time.Time, error) {
	if _, err := DaysInMonth(month, year); err != nil {
		return nil, err
	}
	if count <= 0 {
		return []time.Time{}, nil
	}
	dates := make([]time.Time, 0, count)
	for i := 0; i < count; i++ {
		d, err := g.RandomDateInMonth(month, year)
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool {
		return dates[i].Before(dates[j])
	})
	return dates, nil
}
