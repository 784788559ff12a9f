package handler

import (
	"encoding/json"
	"net/http"

	"github.com/boddenberg/budget-tracker-go/internal/domain"
	"github.com/boddenberg/budget-tracker-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Loan Handlers
// ============================================================

func loanPaymentHandler(ledger *service.Ledger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /loans/{id}/payments")
		defer span.End()
		var req service.PaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		res, err := ledger.ProcessPayment(ctx, chi.URLParam(r, "id"), req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func loanScheduleHandler(ledger *service.Ledger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /loans/{id}/schedule")
		defer span.End()
		schedule, err := ledger.LoanSchedule(ctx, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, schedule)
	}
}

func loanNextPaymentHandler(ledger *service.Ledger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /loans/{id}/next-payment")
		defer span.End()
		loanID := chi.URLParam(r, "id")
		next, err := ledger.NextPayment(ctx, loanID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		loan, err := ledger.Get(ctx, domain.CollLoans, loanID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"amount":    domain.RoundCents(next.Amount),
			"dueDate":   next.DueDate,
			"formatted": domain.FormatMoney(next.Amount, loan.String("currency")),
		})
	}
}

func loanOffsetSavingHandler(ledger *service.Ledger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /loans/{id}/offset-saving")
		defer span.End()
		saving, err := ledger.OffsetSaving(ctx, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]float64{"monthlySaving": domain.RoundCents(saving)})
	}
}
