// Package model defines domain entities for the application.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category is the closed set of spending categories an expense can belong to.
type Category string

const (
	CategoryFood          Category = "Food"
	CategoryTransport     Category = "Transport"
	CategoryEntertainment Category = "Entertainment"
	CategoryUtilities     Category = "Utilities"
	CategoryHealthcare    Category = "Healthcare"
	CategoryShopping      Category = "Shopping"
	CategoryOther         Category = "Other"
)

// DefaultCategory is applied when a new expense does not name one.
const DefaultCategory = CategoryOther

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryFood,
	CategoryTransport,
	CategoryEntertainment,
	CategoryUtilities,
	CategoryHealthcare,
	CategoryShopping,
	CategoryOther,
}

// IsValid reports whether c is one of the known categories.
// Matching is exact; "food" is not "Food".
func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Expense is a single spending record owned by one user.
type Expense struct {
	ID        string
	OwnerID   string
	Amount    decimal.Decimal
	Category  Category
	Date      time.Time
	Note      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Apply overwrites the fields present in patch. Owner, ID and timestamps
// are not part of ExpensePatch and therefore never change here.
func (e *Expense) Apply(patch ExpensePatch) {
	if patch.Amount != nil {
		e.Amount = *patch.Amount
	}
	if patch.Category != nil {
		e.Category = *patch.Category
	}
	if patch.Date != nil {
		e.Date = *patch.Date
	}
	if patch.Note != nil {
		e.Note = *patch.Note
	}
}

// ExpensePatch is the allow-list of fields a caller may change on an
// existing expense. A nil field means "leave as is".
type ExpensePatch struct {
	Amount   *decimal.Decimal
	Category *Category
	Date     *time.Time
	Note     *string
}

// IsEmpty reports whether the patch changes nothing.
func (p ExpensePatch) IsEmpty() bool {
	return p.Amount == nil && p.Category == nil && p.Date == nil && p.Note == nil
}

// ExpenseFilter is a typed query against one owner's expenses.
// OwnerID is mandatory; every store implementation must constrain on it.
type ExpenseFilter struct {
	OwnerID  string
	Category Category
	// DateFrom and DateTo are both set or both nil.
	DateFrom *time.Time
	DateTo   *time.Time
	// DateToExclusive makes DateTo an open upper bound (date < DateTo).
	DateToExclusive bool
}

// Matches reports whether e satisfies the filter.
// Stores that cannot push predicates down use this to stay consistent
// with the SQL implementation.
func (f ExpenseFilter) Matches(e *Expense) bool {
	if e.OwnerID != f.OwnerID {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.DateFrom != nil && e.Date.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil {
		if f.DateToExclusive && !e.Date.Before(*f.DateTo) {
			return false
		}
		if !f.DateToExclusive && e.Date.After(*f.DateTo) {
			return false
		}
	}
	return true
}

// CategoryTotals maps each category with at least one expense to the sum
// of its amounts. Categories without expenses are absent.
type CategoryTotals map[Category]decimal.Decimal

// Sum returns the total across all categories.
func (t CategoryTotals) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, amount := range t {
		total = total.Add(amount)
	}
	return total
}
