package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/tallyapp/tally/internal/cache"
	"github.com/tallyapp/tally/internal/events"
	"github.com/tallyapp/tally/internal/metrics"
	"github.com/tallyapp/tally/internal/model"
	"github.com/tallyapp/tally/internal/repository"
)

// ExpenseStore is the persistence the expense service needs.
// Every method is scoped by owner.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, expense *model.Expense) error
	GetExpense(ctx context.Context, id, ownerID string) (*model.Expense, error)
	ListExpenses(ctx context.Context, filter model.ExpenseFilter, offset, limit int) ([]*model.Expense, error)
	CountExpenses(ctx context.Context, filter model.ExpenseFilter) (int64, error)
	SummarizeExpenses(ctx context.Context, ownerID string) (model.CategoryTotals, error)
	UpdateExpense(ctx context.Context, expense *model.Expense) error
	DeleteExpense(ctx context.Context, id, ownerID string) error
}

// SummaryCache caches per-owner category totals under a generation that
// InvalidateSummary advances. GetSummary reports the generation it looked
// at, even on ErrCacheMiss, and SetSummary writes under that generation.
type SummaryCache interface {
	GetSummary(ctx context.Context, ownerID string) (model.CategoryTotals, int64, error)
	SetSummary(ctx context.Context, ownerID string, gen int64, totals model.CategoryTotals) error
	InvalidateSummary(ctx context.Context, ownerID string) error
}

// EventEmitter receives lifecycle events without blocking.
type EventEmitter interface {
	PublishAsync(event events.Event)
}

// ExpenseService handles expense queries and commands.
type ExpenseService struct {
	store     ExpenseStore
	summaries SummaryCache
	emitter   EventEmitter
	metrics   metrics.Recorder
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// NewExpenseService creates a new ExpenseService. summaries and emitter
// may be nil.
func NewExpenseService(store ExpenseStore, summaries SummaryCache, emitter EventEmitter, recorder metrics.Recorder, logger *slog.Logger) *ExpenseService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpenseService{
		store:     store,
		summaries: summaries,
		emitter:   emitter,
		metrics:   recorder,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return ulid.Make().String() },
	}
}

// Pagination describes one page of a filtered result set.
type Pagination struct {
	Page       int
	Limit      int
	Total      int64
	TotalPages int
}

// ListExpensesOutput defines output for listing expenses.
type ListExpensesOutput struct {
	Expenses   []*model.Expense
	Pagination Pagination
}

// ListExpenses returns one page of the owner's expenses, newest first.
// Count and fetch run concurrently and are not mutually consistent.
func (s *ExpenseService) ListExpenses(ctx context.Context, ownerID string, criteria ListCriteria) (*ListExpensesOutput, error) {
	q, err := parseListCriteria(ownerID, criteria)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		s.metrics.ObserveListDuration(time.Since(start))
	}()

	var (
		total    int64
		expenses []*model.Expense
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.store.CountExpenses(gctx, q.filter)
		if err != nil {
			return fmt.Errorf("count expenses: %w", err)
		}
		total = n
		return nil
	})
	g.Go(func() error {
		page, err := s.store.ListExpenses(gctx, q.filter, q.offset(), q.limit)
		if err != nil {
			return fmt.Errorf("list expenses: %w", err)
		}
		expenses = page
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if expenses == nil {
		expenses = []*model.Expense{}
	}

	return &ListExpensesOutput{
		Expenses: expenses,
		Pagination: Pagination{
			Page:       q.page,
			Limit:      q.limit,
			Total:      total,
			TotalPages: totalPages(total, q.limit),
		},
	}, nil
}

// totalPages is ceil(total/limit).
func totalPages(total int64, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

// SummarizeByCategory returns the owner's spend per category. Categories
// without expenses are absent.
func (s *ExpenseService) SummarizeByCategory(ctx context.Context, ownerID string) (model.CategoryTotals, error) {
	if ownerID == "" {
		return nil, invalidField("owner", "is required")
	}

	var (
		gen       int64
		cacheable bool
	)
	if s.summaries != nil {
		cached, g, err := s.summaries.GetSummary(ctx, ownerID)
		if err == nil {
			s.metrics.IncSummaryCacheHit()
			return cached, nil
		}
		if errors.Is(err, cache.ErrCacheMiss) {
			gen, cacheable = g, true
		} else {
			s.logger.Warn("summary_cache_read_failed", "owner_id", ownerID, "error", err)
		}
		s.metrics.IncSummaryCacheMiss()
	}

	// The generation is read before the query, so totals computed before a
	// concurrent mutation land under a generation that is already retired.
	totals, err := s.store.SummarizeExpenses(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("summarize expenses: %w", err)
	}

	if cacheable {
		if err := s.summaries.SetSummary(ctx, ownerID, gen, totals); err != nil {
			s.logger.Warn("summary_cache_write_failed", "owner_id", ownerID, "error", err)
		}
	}

	return totals, nil
}

// GetExpense retrieves one of the owner's expenses.
func (s *ExpenseService) GetExpense(ctx context.Context, id, ownerID string) (*model.Expense, error) {
	if id == "" || ownerID == "" {
		return nil, ErrExpenseNotFound
	}

	expense, err := s.store.GetExpense(ctx, id, ownerID)
	if err != nil {
		return nil, mapExpenseErr(err, "get expense")
	}
	return expense, nil
}

// CreateExpense validates input and stores a new expense owned by ownerID.
func (s *ExpenseService) CreateExpense(ctx context.Context, ownerID string, input CreateExpenseInput) (*model.Expense, error) {
	if ownerID == "" {
		return nil, invalidField("owner", "is required")
	}

	now := s.now()
	expense, err := parseCreate(input, now)
	if err != nil {
		return nil, err
	}

	expense.ID = s.newID()
	expense.OwnerID = ownerID
	expense.CreatedAt = now
	expense.UpdatedAt = now

	if err := s.store.CreateExpense(ctx, &expense); err != nil {
		return nil, fmt.Errorf("create expense: %w", err)
	}

	s.metrics.IncExpenseCreated()
	s.logger.Info("expense_created",
		"expense_id", expense.ID,
		"owner_id", ownerID,
		"category", expense.Category,
	)
	s.afterMutation(ctx, events.ExpenseCreated, &expense)

	return &expense, nil
}

// UpdateExpense applies an allow-listed patch to one of the owner's
// expenses. An empty patch returns the record unchanged.
func (s *ExpenseService) UpdateExpense(ctx context.Context, input UpdateExpenseInput) (*model.Expense, error) {
	patch, err := parsePatch(input)
	if err != nil {
		return nil, err
	}
	if input.ID == "" || input.OwnerID == "" {
		return nil, ErrExpenseNotFound
	}

	expense, err := s.store.GetExpense(ctx, input.ID, input.OwnerID)
	if err != nil {
		return nil, mapExpenseErr(err, "load expense")
	}

	if patch.IsEmpty() {
		return expense, nil
	}

	expense.Apply(patch)
	expense.UpdatedAt = s.now()

	// A concurrent delete between load and write surfaces as not found.
	if err := s.store.UpdateExpense(ctx, expense); err != nil {
		return nil, mapExpenseErr(err, "update expense")
	}

	s.metrics.IncExpenseUpdated()
	s.logger.Info("expense_updated", "expense_id", expense.ID, "owner_id", expense.OwnerID)
	s.afterMutation(ctx, events.ExpenseUpdated, expense)

	return expense, nil
}

// DeleteExpense removes one of the owner's expenses.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id, ownerID string) error {
	if id == "" || ownerID == "" {
		return ErrExpenseNotFound
	}

	if err := s.store.DeleteExpense(ctx, id, ownerID); err != nil {
		return mapExpenseErr(err, "delete expense")
	}

	s.metrics.IncExpenseDeleted()
	s.logger.Info("expense_deleted", "expense_id", id, "owner_id", ownerID)
	s.afterMutation(ctx, events.ExpenseDeleted, &model.Expense{ID: id, OwnerID: ownerID})

	return nil
}

// afterMutation drops the owner's cached summary and emits an event.
// Neither step can fail the request.
func (s *ExpenseService) afterMutation(ctx context.Context, typ events.Type, expense *model.Expense) {
	if s.summaries != nil {
		if err := s.summaries.InvalidateSummary(ctx, expense.OwnerID); err != nil {
			s.logger.Warn("summary_cache_invalidate_failed", "owner_id", expense.OwnerID, "error", err)
		}
	}

	if s.emitter != nil {
		s.emitter.PublishAsync(events.NewExpenseEvent(s.newID(), typ, expense, s.now()))
	}
}

func mapExpenseErr(err error, op string) error {
	if errors.Is(err, repository.ErrExpenseNotFound) {
		return ErrExpenseNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
