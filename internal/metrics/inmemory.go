package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	ExpensesCreated     uint64
	ExpensesUpdated     uint64
	ExpensesDeleted     uint64
	ListDurationCount   uint64
	ListDurationTotalNs int64
	SummaryCacheHits    uint64
	SummaryCacheMisses  uint64
	EventsPublished     uint64
	EventsFailed        uint64
	RateLimited         uint64
	AuthFailures        uint64
}

// InMemoryRecorder keeps counters in process memory. It backs the
// /metrics endpoint and is used directly in tests.
type InMemoryRecorder struct {
	expensesCreated     atomic.Uint64
	expensesUpdated     atomic.Uint64
	expensesDeleted     atomic.Uint64
	listDurationCount   atomic.Uint64
	listDurationTotalNs atomic.Int64
	summaryCacheHits    atomic.Uint64
	summaryCacheMisses  atomic.Uint64
	eventsPublished     atomic.Uint64
	eventsFailed        atomic.Uint64
	rateLimited         atomic.Uint64
	authFailures        atomic.Uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		ExpensesCreated:     m.expensesCreated.Load(),
		ExpensesUpdated:     m.expensesUpdated.Load(),
		ExpensesDeleted:     m.expensesDeleted.Load(),
		ListDurationCount:   m.listDurationCount.Load(),
		ListDurationTotalNs: m.listDurationTotalNs.Load(),
		SummaryCacheHits:    m.summaryCacheHits.Load(),
		SummaryCacheMisses:  m.summaryCacheMisses.Load(),
		EventsPublished:     m.eventsPublished.Load(),
		EventsFailed:        m.eventsFailed.Load(),
		RateLimited:         m.rateLimited.Load(),
		AuthFailures:        m.authFailures.Load(),
	}
}

func (m *InMemoryRecorder) IncExpenseCreated() { m.expensesCreated.Add(1) }
func (m *InMemoryRecorder) IncExpenseUpdated() { m.expensesUpdated.Add(1) }
func (m *InMemoryRecorder) IncExpenseDeleted() { m.expensesDeleted.Add(1) }

// ObserveListDuration records one list query.
func (m *InMemoryRecorder) ObserveListDuration(duration time.Duration) {
	m.listDurationCount.Add(1)
	m.listDurationTotalNs.Add(duration.Nanoseconds())
}

func (m *InMemoryRecorder) IncSummaryCacheHit()  { m.summaryCacheHits.Add(1) }
func (m *InMemoryRecorder) IncSummaryCacheMiss() { m.summaryCacheMisses.Add(1) }

// IncEventPublished counts a publish attempt by outcome.
func (m *InMemoryRecorder) IncEventPublished(status string) {
	if status == StatusSuccess {
		m.eventsPublished.Add(1)
		return
	}
	m.eventsFailed.Add(1)
}

func (m *InMemoryRecorder) IncRateLimited() { m.rateLimited.Add(1) }
func (m *InMemoryRecorder) IncAuthFailure() { m.authFailures.Add(1) }
