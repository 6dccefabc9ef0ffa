package engine

import (
	"fmt"
	"time"
)

// State is a crawl controller state
type State int

const (
	StateInit State = iota
	StateAwaitingLoad
	StateScrapingVisible
	StateScrollingForMore
	StateFollowingNextPage
	StateSettling
	StateTerminated
)

var stateNames = map[State]string{
	StateInit:              "init",
	StateAwaitingLoad:      "awaiting-load",
	StateScrapingVisible:   "scraping-visible",
	StateScrollingForMore:  "scrolling-for-more",
	StateFollowingNextPage: "following-next-page",
	StateSettling:          "settling",
	StateTerminated:        "terminated",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Outcome is how a terminated crawl ended
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeSuccess
	OutcomeAborted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeAborted:
		return "aborted"
	default:
		return "none"
	}
}

// PaginationState tracks progress of a single crawl. It is created when a
// Loop starts and handed by pointer to every handler of that loop.
type PaginationState struct {
	// Page counts handled page loads.
	Page int
	// Cursor is the URL of the page being processed.
	Cursor string
	// Items is the running count of accepted records.
	Items int
	// Errors counts every row-level failure; ConsecutiveErrors resets on success.
	Errors            int
	ConsecutiveErrors int
	// Deadline is when the current quiescence window closes.
	Deadline time.Time
}

// RecordItem counts an accepted record.
func (s *PaginationState) RecordItem() {
	s.Items++
	s.ConsecutiveErrors = 0
}

// RecordError counts a failure and reports whether the budget is exhausted.
// abortOnError exhausts it on the first failure; maxErrors of 0 is unlimited.
func (s *PaginationState) RecordError(abortOnError bool, maxErrors int) bool {
	s.Errors++
	s.ConsecutiveErrors++
	if abortOnError {
		return true
	}
	return maxErrors > 0 && s.Errors >= maxErrors
}
