package dto

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tallyapp/tally/internal/model"
	"github.com/tallyapp/tally/internal/service"
)

// CreateExpenseRequest represents the request body for creating an expense.
// Amount accepts a JSON number or a numeric string. Any owner field sent by
// the client is ignored.
type CreateExpenseRequest struct {
	Amount   json.RawMessage `json:"amount"`
	Category string          `json:"category,omitempty"`
	Date     string          `json:"date,omitempty"`
	Note     string          `json:"note,omitempty"`
}

// ToInput converts the request to service input.
func (r CreateExpenseRequest) ToInput() service.CreateExpenseInput {
	amount, _ := rawText(r.Amount)
	return service.CreateExpenseInput{
		Amount:   amount,
		Category: r.Category,
		Date:     r.Date,
		Note:     r.Note,
	}
}

// UpdateExpenseRequest represents the request body for updating an
// expense. Absent fields are left unchanged.
type UpdateExpenseRequest struct {
	Amount   json.RawMessage `json:"amount,omitempty"`
	Category *string         `json:"category,omitempty"`
	Date     *string         `json:"date,omitempty"`
	Note     *string         `json:"note,omitempty"`
}

// ToInput converts the request to service input for one owner's expense.
func (r UpdateExpenseRequest) ToInput(id, ownerID string) service.UpdateExpenseInput {
	in := service.UpdateExpenseInput{
		ID:       id,
		OwnerID:  ownerID,
		Category: r.Category,
		Date:     r.Date,
		Note:     r.Note,
	}
	if amount, ok := rawText(r.Amount); ok {
		in.Amount = &amount
	}
	return in
}

// rawText returns the text of a JSON number or string. The bool is false
// when the field was absent. null and other JSON types yield text the
// amount parser rejects.
func rawText(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	if raw[0] == '"' {
		s, err := strconv.Unquote(string(raw))
		if err != nil {
			return string(raw), true
		}
		return s, true
	}
	if bytes.Equal(raw, []byte("null")) {
		return "", true
	}
	return string(raw), true
}

// Amount renders a money value as a JSON number.
func Amount(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

// ExpenseResponse represents an expense in API responses.
type ExpenseResponse struct {
	ID        string      `json:"id"`
	Owner     string      `json:"owner"`
	Amount    json.Number `json:"amount"`
	Category  string      `json:"category"`
	Date      time.Time   `json:"date"`
	Note      string      `json:"note,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// ToExpenseResponse converts an Expense model to ExpenseResponse DTO.
func ToExpenseResponse(e *model.Expense) ExpenseResponse {
	return ExpenseResponse{
		ID:        e.ID,
		Owner:     e.OwnerID,
		Amount:    Amount(e.Amount),
		Category:  string(e.Category),
		Date:      e.Date.UTC(),
		Note:      e.Note,
		CreatedAt: e.CreatedAt.UTC(),
		UpdatedAt: e.UpdatedAt.UTC(),
	}
}

// ExpenseEnvelope wraps a single expense, with a message on mutations.
type ExpenseEnvelope struct {
	Message string          `json:"message,omitempty"`
	Expense ExpenseResponse `json:"expense"`
}

// PaginationResponse describes one page of a list.
type PaginationResponse struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// ExpenseListResponse represents a page of expenses.
type ExpenseListResponse struct {
	Expenses   []ExpenseResponse  `json:"expenses"`
	Pagination PaginationResponse `json:"pagination"`
}

// ToExpenseListResponse converts a service list output.
func ToExpenseListResponse(out *service.ListExpensesOutput) ExpenseListResponse {
	expenses := make([]ExpenseResponse, 0, len(out.Expenses))
	for _, e := range out.Expenses {
		expenses = append(expenses, ToExpenseResponse(e))
	}
	return ExpenseListResponse{
		Expenses: expenses,
		Pagination: PaginationResponse{
			Page:       out.Pagination.Page,
			Limit:      out.Pagination.Limit,
			Total:      out.Pagination.Total,
			TotalPages: out.Pagination.TotalPages,
		},
	}
}

// SummaryResponse maps category names to total spend. Categories without
// expenses are absent.
type SummaryResponse map[string]json.Number

// ToSummaryResponse converts category totals.
func ToSummaryResponse(totals model.CategoryTotals) SummaryResponse {
	out := make(SummaryResponse, len(totals))
	for category, total := range totals {
		out[string(category)] = Amount(total)
	}
	return out
}
