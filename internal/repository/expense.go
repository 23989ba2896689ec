package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/tallyapp/tally/internal/model"
)

// ErrExpenseNotFound is returned when no expense matches both id and owner.
// A row that exists but belongs to someone else is reported the same way.
var ErrExpenseNotFound = errors.New("expense not found")

const expenseColumns = `id, owner_id, amount, category, expense_date, note, created_at, updated_at`

// CreateExpense inserts a new expense.
func (r *Repository) CreateExpense(ctx context.Context, expense *model.Expense) error {
	query := `
		INSERT INTO expenses (` + expenseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		expense.ID,
		expense.OwnerID,
		expense.Amount,
		string(expense.Category),
		expense.Date,
		expense.Note,
		expense.CreatedAt,
		expense.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}

	return nil
}

// GetExpense retrieves one expense by id, scoped to its owner.
func (r *Repository) GetExpense(ctx context.Context, id, ownerID string) (*model.Expense, error) {
	query := `
		SELECT ` + expenseColumns + `
		FROM expenses
		WHERE id = $1 AND owner_id = $2
	`

	expense, err := scanExpense(r.pool.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExpenseNotFound
		}
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	return expense, nil
}

// ListExpenses returns one page of expenses matching filter, newest first.
func (r *Repository) ListExpenses(ctx context.Context, filter model.ExpenseFilter, offset, limit int) ([]*model.Expense, error) {
	where, args := buildExpenseWhere(filter)
	argIndex := len(args) + 1

	query := `SELECT ` + expenseColumns + ` FROM expenses ` + where +
		fmt.Sprintf(" ORDER BY expense_date DESC, created_at DESC, id DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	expenses := make([]*model.Expense, 0, limit)
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expenses: %w", err)
	}

	return expenses, nil
}

// CountExpenses returns how many expenses match filter.
func (r *Repository) CountExpenses(ctx context.Context, filter model.ExpenseFilter) (int64, error) {
	where, args := buildExpenseWhere(filter)
	query := `SELECT COUNT(*) FROM expenses ` + where

	var total int64
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count expenses: %w", err)
	}

	return total, nil
}

// SummarizeExpenses sums an owner's expenses per category.
func (r *Repository) SummarizeExpenses(ctx context.Context, ownerID string) (model.CategoryTotals, error) {
	query := `
		SELECT category, SUM(amount)
		FROM expenses
		WHERE owner_id = $1
		GROUP BY category
	`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize expenses: %w", err)
	}
	defer rows.Close()

	totals := make(model.CategoryTotals)
	for rows.Next() {
		var (
			category string
			total    decimal.Decimal
		)
		if err := rows.Scan(&category, &total); err != nil {
			return nil, fmt.Errorf("failed to scan category total: %w", err)
		}
		totals[model.Category(category)] = total
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category totals: %w", err)
	}

	return totals, nil
}

// UpdateExpense writes the mutable fields of expense.
// The WHERE clause re-checks ownership so a stale read cannot cross owners.
func (r *Repository) UpdateExpense(ctx context.Context, expense *model.Expense) error {
	query := `
		UPDATE expenses
		SET amount = $3, category = $4, expense_date = $5, note = $6, updated_at = $7
		WHERE id = $1 AND owner_id = $2
	`

	result, err := r.pool.Exec(ctx, query,
		expense.ID,
		expense.OwnerID,
		expense.Amount,
		string(expense.Category),
		expense.Date,
		expense.Note,
		expense.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrExpenseNotFound
	}

	return nil
}

// DeleteExpense removes an expense owned by ownerID.
func (r *Repository) DeleteExpense(ctx context.Context, id, ownerID string) error {
	query := `DELETE FROM expenses WHERE id = $1 AND owner_id = $2`

	result, err := r.pool.Exec(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrExpenseNotFound
	}

	return nil
}

// buildExpenseWhere renders filter as a WHERE clause with positional args.
// The owner predicate is always first.
func buildExpenseWhere(filter model.ExpenseFilter) (string, []any) {
	conds := []string{"owner_id = $1"}
	args := []any{filter.OwnerID}

	if filter.Category != "" {
		args = append(args, string(filter.Category))
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}

	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		conds = append(conds, fmt.Sprintf("expense_date >= $%d", len(args)))
	}

	if filter.DateTo != nil {
		op := "<="
		if filter.DateToExclusive {
			op = "<"
		}
		args = append(args, *filter.DateTo)
		conds = append(conds, fmt.Sprintf("expense_date %s $%d", op, len(args)))
	}

	return "WHERE " + strings.Join(conds, " AND "), args
}

// scanExpense scans a single row into an Expense model.
func scanExpense(row pgx.Row) (*model.Expense, error) {
	var (
		expense  model.Expense
		category string
	)
	err := row.Scan(
		&expense.ID,
		&expense.OwnerID,
		&expense.Amount,
		&category,
		&expense.Date,
		&expense.Note,
		&expense.CreatedAt,
		&expense.UpdatedAt,
	)
	expense.Category = model.Category(category)
	return &expense, err
}
