// Package domain contains the core data structures and domain logic for the application.
package domain

// RunSummary holds the outcome counts of a batch (issues, commits) or of a
// full pull request run. Succeeded + Failed always equals Attempted.
type RunSummary struct {
	Attempted int `json:"total_attempted"`
	Succeeded int `json:"total_succeeded"`
	Failed    int `json:"total_failed"`
}

// RecordSuccess counts one attempted unit that succeeded.
func (s *RunSummary) RecordSuccess() {
	s.Attempted++
	s.Succeeded++
}

// RecordFailure counts one attempted unit that failed.
func (s *RunSummary) RecordFailure() {
	s.Attempted++
	s.Failed++
}

// Record counts one attempted unit according to ok.
func (s *RunSummary) Record(ok bool) {
	if ok {
		s.RecordSuccess()
		return
	}
	s.RecordFailure()
}

// Merge adds the counts of other into s.
func (s *RunSummary) Merge(other RunSummary) {
	s.Attempted += other.Attempted
	s.Succeeded += other.Succeeded
	s.Failed += other.Failed
}

// Consistent reports whether the counts satisfy Succeeded + Failed == Attempted.
func (s RunSummary) Consistent() bool {
	return s.Succeeded+s.Failed == s.Attempted
}
