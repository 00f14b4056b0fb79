package usecase

import (
	"fmt"

	"github.com/naka-gawa/github-backfill/internal/domain"
)

// State is a step of a pull request lifecycle.
type State string

const (
	StateInit          State = "init"
	StateBranchCreated State = "branch_created"
	StateCommitted     State = "committed"
	StatePushed        State = "pushed"
	StatePROpened      State = "pr_opened"
	StateMerged        State = "merged"
	StateCleaned       State = "cleaned"
	StateFailed        State = "failed"
)

// forward lists the only non-failure transition out of each state.
var forward = map[State]State{
	StateInit:          StateBranchCreated,
	StateBranchCreated: StateCommitted,
	StateCommitted:     StatePushed,
	StatePushed:        StatePROpened,
	StatePROpened:      StateMerged,
	StateMerged:        StateCleaned,
	StateFailed:        StateCleaned,
}

// lifecycle tracks the state machine of one pull request event. Failed is
// reachable from every non-terminal state and Cleaned from every state.
type lifecycle struct {
	state      State
	failedFrom State
	history    []State
}

func newLifecycle() *lifecycle {
	return &lifecycle{state: StateInit, history: []State{StateInit}}
}

func (l *lifecycle) advance(to State) error {
	if to == StateCleaned {
		if l.state == StateCleaned {
			return fmt.Errorf("lifecycle already cleaned")
		}
	} else if forward[l.state] != to {
		return fmt.Errorf("invalid transition %s -> %s", l.state, to)
	}
	l.state = to
	l.history = append(l.history, to)
	return nil
}

func (l *lifecycle) fail() {
	if l.state == StateCleaned || l.state == StateFailed {
		return
	}
	l.failedFrom = l.state
	l.state = StateFailed
	l.history = append(l.history, StateFailed)
}

// LifecycleReport is the outcome of one pull request lifecycle.
type LifecycleReport struct {
	Event domain.SyntheticEvent
	// States is the path taken through the state machine, ending in Cleaned.
	States []State
	// FailedAt is the last state reached before failing, empty on success.
	FailedAt      State
	Err           error
	CleanupErrors []error
	PullURL       string
}

// Succeeded reports whether the pull request was merged and pushed.
func (r LifecycleReport) Succeeded() bool {
	return r.Err == nil && r.FailedAt == "" && containsState(r.States, StateMerged)
}

func containsState(states []State, s State) bool {
	for _, st := range states {
		if st == s {
			return true
		}
	}
	return false
}
