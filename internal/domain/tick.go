package domain

import "time"

// TickStatus is the outcome of one polling cycle.
type TickStatus string

const (
	TickSuccess        TickStatus = "success"
	TickPartialFailure TickStatus = "partial_failure"
	TickSkipped        TickStatus = "skipped"
)

// TickResult summarises one polling cycle across all conversations.
type TickResult struct {
	ID         string
	Status     TickStatus
	StartedAt  time.Time
	FinishedAt time.Time

	Conversations    int // listed by the provider
	Evaluated        int // had a non-empty history
	EmptyHistories   int
	NewMessages      int // last-seen id advanced
	Replies          int // replies dispatched
	EmptyCompletions int

	// Reason is a stable snake_case code set when Status is partial_failure.
	Reason string
	Err    error
}

// Duration returns the wall time of the tick.
func (r TickResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failed reports whether the tick aborted before visiting every conversation.
func (r TickResult) Failed() bool {
	return r.Status == TickPartialFailure
}
