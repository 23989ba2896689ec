package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tallyapp/tally/internal/auth"
	"github.com/tallyapp/tally/internal/handler/dto"
	"github.com/tallyapp/tally/internal/service"
)

// ExpenseHandler handles HTTP requests for expense operations. Every route
// runs behind the auth middleware; the owner always comes from the token.
type ExpenseHandler struct {
	svc    *service.ExpenseService
	logger *slog.Logger
}

// NewExpenseHandler creates a new ExpenseHandler.
func NewExpenseHandler(svc *service.ExpenseService, logger *slog.Logger) *ExpenseHandler {
	return &ExpenseHandler{
		svc:    svc,
		logger: logger,
	}
}

// Create handles POST /api/v1/expenses.
func (h *ExpenseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateExpenseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	expense, err := h.svc.CreateExpense(r.Context(), auth.UserIDFromContext(r.Context()), req.ToInput())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ExpenseEnvelope{
		Message: "Expense created successfully",
		Expense: dto.ToExpenseResponse(expense),
	})
}

// List handles GET /api/v1/expenses.
func (h *ExpenseHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	criteria := service.ListCriteria{
		Category:  q.Get("category"),
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
		Page:      q.Get("page"),
		Limit:     q.Get("limit"),
	}

	out, err := h.svc.ListExpenses(r.Context(), auth.UserIDFromContext(r.Context()), criteria)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToExpenseListResponse(out))
}

// Summary handles GET /api/v1/expenses/summary.
func (h *ExpenseHandler) Summary(w http.ResponseWriter, r *http.Request) {
	totals, err := h.svc.SummarizeByCategory(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToSummaryResponse(totals))
}

// Get handles GET /api/v1/expenses/{id}.
func (h *ExpenseHandler) Get(w http.ResponseWriter, r *http.Request) {
	expense, err := h.svc.GetExpense(r.Context(), chi.URLParam(r, "id"), auth.UserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ExpenseEnvelope{Expense: dto.ToExpenseResponse(expense)})
}

// Update handles PUT and PATCH /api/v1/expenses/{id}. Both apply a partial
// update.
func (h *ExpenseHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateExpenseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	input := req.ToInput(chi.URLParam(r, "id"), auth.UserIDFromContext(r.Context()))
	expense, err := h.svc.UpdateExpense(r.Context(), input)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ExpenseEnvelope{
		Message: "Expense updated successfully",
		Expense: dto.ToExpenseResponse(expense),
	})
}

// Delete handles DELETE /api/v1/expenses/{id}.
func (h *ExpenseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteExpense(r.Context(), chi.URLParam(r, "id"), auth.UserIDFromContext(r.Context())); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.MessageResponse{Message: "Expense deleted successfully"})
}
