package service

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/tallyapp/tally/internal/model"
)

// Input limits.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	MaxNoteLength = 200
	amountScale   = 2

	// Amount text beyond these bounds is rejected before any decimal
	// arithmetic, which rescales through 10^|exponent|.
	maxAmountTextLength = 40
	minAmountExponent   = -(amountScale + 18)
	maxAmountExponent   = 12
)

// maxAmount is the exclusive upper bound of NUMERIC(14,2).
var maxAmount = decimal.New(1, 12)

const dateOnlyLayout = "2006-01-02"

// ParseAmount parses a non-negative money amount with at most two
// fractional digits.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, errors.New("is required")
	}

	if len(raw) > maxAmountTextLength {
		return decimal.Zero, fmt.Errorf("must be at most %d characters", maxAmountTextLength)
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.New("must be a number")
	}
	if exp := d.Exponent(); exp < minAmountExponent {
		return decimal.Zero, fmt.Errorf("must have at most %d decimal places", amountScale)
	} else if exp > maxAmountExponent {
		return decimal.Zero, fmt.Errorf("must be less than %s", maxAmount)
	}
	if d.IsNegative() {
		return decimal.Zero, errors.New("must be zero or greater")
	}
	if !d.Equal(d.Round(amountScale)) {
		return decimal.Zero, fmt.Errorf("must have at most %d decimal places", amountScale)
	}
	if !d.LessThan(maxAmount) {
		return decimal.Zero, fmt.Errorf("must be less than %s", maxAmount)
	}
	return d, nil
}

// parseDate accepts YYYY-MM-DD (midnight UTC) or RFC 3339. The bool
// reports whether the date-only form matched.
func parseDate(raw string) (time.Time, bool, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(dateOnlyLayout, raw); err == nil {
		return t.UTC(), true, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), false, nil
	}
	return time.Time{}, false, errors.New("must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
}

func parseCategory(raw string) (model.Category, error) {
	category := model.Category(strings.TrimSpace(raw))
	if !category.IsValid() {
		return "", fmt.Errorf("must be one of %s", categoryList())
	}
	return category, nil
}

func categoryList() string {
	names := make([]string, len(model.Categories))
	for i, c := range model.Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

func normalizeNote(raw string) (string, error) {
	note := strings.TrimSpace(raw)
	if utf8.RuneCountInString(note) > MaxNoteLength {
		return "", fmt.Errorf("must be at most %d characters", MaxNoteLength)
	}
	return note, nil
}

// parsePositive parses a page or limit query value. Empty means def.
func parsePositive(raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("must be a positive integer")
	}
	return n, nil
}

// ListCriteria holds list query parameters exactly as received.
type ListCriteria struct {
	Category  string
	StartDate string
	EndDate   string
	Page      string
	Limit     string
}

// listQuery is a validated ListCriteria.
type listQuery struct {
	filter model.ExpenseFilter
	page   int
	limit  int
}

// offset saturates at math.MaxInt, which every store treats as past the
// last row.
func (q listQuery) offset() int {
	if q.limit <= 0 || q.page <= 1 {
		return 0
	}
	if q.page-1 > (math.MaxInt-q.limit)/q.limit {
		return math.MaxInt
	}
	return (q.page - 1) * q.limit
}

// parseListCriteria validates criteria and builds the owner-scoped filter.
// A date range is applied only when both bounds are given.
func parseListCriteria(ownerID string, c ListCriteria) (listQuery, error) {
	var errs fieldErrors
	q := listQuery{filter: model.ExpenseFilter{OwnerID: ownerID}}

	if ownerID == "" {
		errs.add("owner", "is required")
	}

	var err error
	if q.page, err = parsePositive(c.Page, DefaultPage); err != nil {
		errs.add("page", err.Error())
	}
	if q.limit, err = parsePositive(c.Limit, DefaultLimit); err != nil {
		errs.add("limit", err.Error())
	} else if q.limit > MaxLimit {
		errs.add("limit", fmt.Sprintf("must be at most %d", MaxLimit))
	}

	if strings.TrimSpace(c.Category) != "" {
		if q.filter.Category, err = parseCategory(c.Category); err != nil {
			errs.add("category", err.Error())
		}
	}

	var (
		start, end       time.Time
		startOK, endOK   bool
		endIsCalendarDay bool
	)
	if strings.TrimSpace(c.StartDate) != "" {
		if start, _, err = parseDate(c.StartDate); err != nil {
			errs.add("startDate", err.Error())
		} else {
			startOK = true
		}
	}
	if strings.TrimSpace(c.EndDate) != "" {
		if end, endIsCalendarDay, err = parseDate(c.EndDate); err != nil {
			errs.add("endDate", err.Error())
		} else {
			endOK = true
		}
	}

	if startOK && endOK {
		if start.After(end) {
			errs.add("startDate", "must not be after endDate")
		} else {
			q.filter.DateFrom = &start
			if endIsCalendarDay {
				// Whole calendar day: date < next midnight.
				next := end.Add(24 * time.Hour)
				q.filter.DateTo = &next
				q.filter.DateToExclusive = true
			} else {
				q.filter.DateTo = &end
			}
		}
	}

	if err := errs.err(); err != nil {
		return listQuery{}, err
	}
	return q, nil
}

// CreateExpenseInput is a create request as received.
// Amount is the decimal text of a JSON number or string.
type CreateExpenseInput struct {
	Amount   string
	Category string
	Date     string
	Note     string
}

// UpdateExpenseInput is an allow-listed partial update. Nil fields are
// left unchanged.
type UpdateExpenseInput struct {
	ID       string
	OwnerID  string
	Amount   *string
	Category *string
	Date     *string
	Note     *string
}

// parseCreate validates a create request and applies defaults.
func parseCreate(in CreateExpenseInput, now time.Time) (model.Expense, error) {
	var errs fieldErrors
	expense := model.Expense{Category: model.DefaultCategory, Date: now}

	var err error
	if expense.Amount, err = ParseAmount(in.Amount); err != nil {
		errs.add("amount", err.Error())
	}
	if strings.TrimSpace(in.Category) != "" {
		if expense.Category, err = parseCategory(in.Category); err != nil {
			errs.add("category", err.Error())
		}
	}
	if strings.TrimSpace(in.Date) != "" {
		if expense.Date, _, err = parseDate(in.Date); err != nil {
			errs.add("date", err.Error())
		}
	}
	if expense.Note, err = normalizeNote(in.Note); err != nil {
		errs.add("note", err.Error())
	}

	return expense, errs.err()
}

// parsePatch validates each present field against the create rules.
func parsePatch(in UpdateExpenseInput) (model.ExpensePatch, error) {
	var errs fieldErrors
	var patch model.ExpensePatch

	if in.Amount != nil {
		if amount, err := ParseAmount(*in.Amount); err != nil {
			errs.add("amount", err.Error())
		} else {
			patch.Amount = &amount
		}
	}
	if in.Category != nil {
		if category, err := parseCategory(*in.Category); err != nil {
			errs.add("category", err.Error())
		} else {
			patch.Category = &category
		}
	}
	if in.Date != nil {
		if date, _, err := parseDate(*in.Date); err != nil {
			errs.add("date", err.Error())
		} else {
			patch.Date = &date
		}
	}
	if in.Note != nil {
		if note, err := normalizeNote(*in.Note); err != nil {
			errs.add("note", err.Error())
		} else {
			patch.Note = &note
		}
	}

	return patch, errs.err()
}
