package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/tallyapp/tally/internal/model"
)

// MemoryStore is an in-process implementation of the expense and user
// queries served by Repository. It returns the same sentinel errors and
// ordering, and is used by service and handler tests.
type MemoryStore struct {
	mu       sync.RWMutex
	expenses map[string]model.Expense
	users    map[string]model.User
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		expenses: make(map[string]model.Expense),
		users:    make(map[string]model.User),
	}
}

// CreateExpense stores a copy of expense.
func (m *MemoryStore) CreateExpense(_ context.Context, expense *model.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expenses[expense.ID] = *expense
	return nil
}

// GetExpense returns the expense with id if ownerID owns it.
func (m *MemoryStore) GetExpense(_ context.Context, id, ownerID string) (*model.Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	expense, ok := m.expenses[id]
	if !ok || expense.OwnerID != ownerID {
		return nil, ErrExpenseNotFound
	}
	return &expense, nil
}

// ListExpenses returns one page of matching expenses, newest first.
func (m *MemoryStore) ListExpenses(_ context.Context, filter model.ExpenseFilter, offset, limit int) ([]*model.Expense, error) {
	matched := m.matching(filter)

	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) || limit <= 0 {
		return []*model.Expense{}, nil
	}
	end := len(matched)
	if limit < end-offset {
		end = offset + limit
	}
	return matched[offset:end], nil
}

// CountExpenses returns how many expenses match filter.
func (m *MemoryStore) CountExpenses(_ context.Context, filter model.ExpenseFilter) (int64, error) {
	return int64(len(m.matching(filter))), nil
}

// SummarizeExpenses sums an owner's expenses per category.
func (m *MemoryStore) SummarizeExpenses(_ context.Context, ownerID string) (model.CategoryTotals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	totals := make(model.CategoryTotals)
	for _, expense := range m.expenses {
		if expense.OwnerID != ownerID {
			continue
		}
		totals[expense.Category] = totals[expense.Category].Add(expense.Amount)
	}
	return totals, nil
}

// UpdateExpense replaces the stored expense if id and owner both match.
func (m *MemoryStore) UpdateExpense(_ context.Context, expense *model.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.expenses[expense.ID]
	if !ok || existing.OwnerID != expense.OwnerID {
		return ErrExpenseNotFound
	}
	updated := *expense
	updated.CreatedAt = existing.CreatedAt
	m.expenses[expense.ID] = updated
	return nil
}

// DeleteExpense removes the expense if ownerID owns it.
func (m *MemoryStore) DeleteExpense(_ context.Context, id, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.expenses[id]
	if !ok || existing.OwnerID != ownerID {
		return ErrExpenseNotFound
	}
	delete(m.expenses, id)
	return nil
}

// CreateUser stores a copy of user. Emails are unique.
func (m *MemoryStore) CreateUser(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return ErrEmailExists
		}
	}
	m.users[user.ID] = *user
	return nil
}

// GetUserByID retrieves a user by their ID.
func (m *MemoryStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by their email address.
func (m *MemoryStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, user := range m.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

// DeleteUser removes a user and cascades to their expenses.
func (m *MemoryStore) DeleteUser(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.users, id)
	for expenseID, expense := range m.expenses {
		if expense.OwnerID == id {
			delete(m.expenses, expenseID)
		}
	}
}

// matching returns copies of every expense satisfying filter in list order.
func (m *MemoryStore) matching(filter model.ExpenseFilter) []*model.Expense {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]*model.Expense, 0)
	for _, expense := range m.expenses {
		if !filter.Matches(&expense) {
			continue
		}
		e := expense
		matched = append(matched, &e)
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})

	return matched
}
