// Package events publishes expense lifecycle events to an external sink.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/tallyapp/tally/internal/metrics"
	"github.com/tallyapp/tally/internal/model"
)

// Type names an expense lifecycle transition.
type Type string

const (
	ExpenseCreated Type = "expense.created"
	ExpenseUpdated Type = "expense.updated"
	ExpenseDeleted Type = "expense.deleted"
)

// DefaultPublishTimeout bounds a single asynchronous publish.
const DefaultPublishTimeout = 2 * time.Second

// Event is the payload written to the sink.
type Event struct {
	ID         string     `json:"id"`
	Type       Type       `json:"type"`
	OwnerID    string     `json:"ownerId"`
	ExpenseID  string     `json:"expenseId"`
	Amount     string     `json:"amount,omitempty"`
	Category   string     `json:"category,omitempty"`
	Date       *time.Time `json:"date,omitempty"`
	OccurredAt time.Time  `json:"occurredAt"`
}

// NewExpenseEvent builds an event describing expense. For deletions only
// the identifiers are carried.
func NewExpenseEvent(id string, typ Type, expense *model.Expense, now time.Time) Event {
	event := Event{
		ID:         id,
		Type:       typ,
		OwnerID:    expense.OwnerID,
		ExpenseID:  expense.ID,
		OccurredAt: now.UTC(),
	}
	if typ != ExpenseDeleted {
		event.Amount = expense.Amount.StringFixed(2)
		event.Category = string(expense.Category)
		date := expense.Date.UTC()
		event.Date = &date
	}
	return event
}

// Marshal encodes the event as JSON.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events to one backend.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NoopPublisher discards every event.
type NoopPublisher struct{}

// NewNoop returns a Publisher that discards all events.
func NewNoop() Publisher {
	return NoopPublisher{}
}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
func (NoopPublisher) Close() error                         { return nil }

// Dispatcher publishes events off the request path. Failures are logged
// and counted, never returned.
type Dispatcher struct {
	publisher Publisher
	logger    *slog.Logger
	metrics   metrics.Recorder
	timeout   time.Duration
	wg        sync.WaitGroup
}

// NewDispatcher creates a Dispatcher around publisher.
func NewDispatcher(publisher Publisher, logger *slog.Logger, recorder metrics.Recorder) *Dispatcher {
	if publisher == nil {
		publisher = NewNoop()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		publisher: publisher,
		logger:    logger.With("component", "events.dispatcher"),
		metrics:   recorder,
		timeout:   DefaultPublishTimeout,
	}
}

// PublishAsync publishes without blocking the caller.
func (d *Dispatcher) PublishAsync(event Event) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.publisher.Publish(ctx, event); err != nil {
			d.logger.Warn("event_publish_failed",
				"event_type", event.Type,
				"expense_id", event.ExpenseID,
				"error", err,
			)
			d.metrics.IncEventPublished(metrics.StatusFailed)
			return
		}

		d.logger.Debug("event_published",
			"event_type", event.Type,
			"expense_id", event.ExpenseID,
		)
		d.metrics.IncEventPublished(metrics.StatusSuccess)
	}()
}

// Close waits for in-flight publishes and closes the publisher.
func (d *Dispatcher) Close() error {
	d.wg.Wait()
	return d.publisher.Close()
}
