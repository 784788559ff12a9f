package handler

import (
	"net/http"

	"github.com/boddenberg/budget-tracker-go/internal/domain"
	"github.com/boddenberg/budget-tracker-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Budgets
// ============================================================

func convertBudgetHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		amount, err := parseFloatParam(r, "amount")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		q := r.URL.Query()
		from, to := domain.Frequency(q.Get("from")), domain.Frequency(q.Get("to"))
		writeJSON(w, http.StatusOK, map[string]any{
			"amount": domain.RoundCents(service.ConvertAmount(amount, from, to)),
			"from":   from,
			"to":     to,
		})
	}
}

func budgetGoalsHandler(ledger *service.Ledger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /budgets/goals")
		defer span.End()
		view := domain.Frequency(r.URL.Query().Get("view"))
		if view == domain.None {
			view = domain.Monthly
		}
		goals, err := ledger.BudgetGoals(ctx, view)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, goals)
	}
}

// ============================================================
// Categories
// ============================================================

func addCategoryHandler(ledger *service.Ledger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /categories")
		defer span.End()
		rec, err := decodeRecord(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		created, err := ledger.AddCategory(ctx, rec)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func deleteCategoryHandler(ledger *service.Ledger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /categories/{id}")
		defer span.End()
		deleted, err := ledger.DeleteCategory(ctx, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
	}
}

// ============================================================
// Maintenance
// ============================================================

func saveMaintenanceHandler(ledger *service.Ledger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /maintenance")
		defer span.End()
		rec, err := decodeRecord(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		saved, err := ledger.SaveMaintenance(ctx, rec)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	}
}

func deleteMaintenanceHandler(ledger *service.Ledger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /maintenance/{id}")
		defer span.End()
		if err := ledger.DeleteMaintenance(ctx, chi.URLParam(r, "id")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
