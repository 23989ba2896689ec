package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncExpenseCreated()                  {}
func (n *NoopRecorder) IncExpenseUpdated()                  {}
func (n *NoopRecorder) IncExpenseDeleted()                  {}
func (n *NoopRecorder) ObserveListDuration(_ time.Duration) {}
func (n *NoopRecorder) IncSummaryCacheHit()                 {}
func (n *NoopRecorder) IncSummaryCacheMiss()                {}
func (n *NoopRecorder) IncEventPublished(_ string)          {}
func (n *NoopRecorder) IncRateLimited()                     {}
func (n *NoopRecorder) IncAuthFailure()                     {}
