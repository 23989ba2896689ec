// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Event publish statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Expense commands
	IncExpenseCreated()
	IncExpenseUpdated()
	IncExpenseDeleted()

	// Queries
	ObserveListDuration(duration time.Duration)
	IncSummaryCacheHit()
	IncSummaryCacheMiss()

	// Lifecycle events; status is StatusSuccess or StatusFailed
	IncEventPublished(status string)

	// Edge
	IncRateLimited()
	IncAuthFailure()
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
