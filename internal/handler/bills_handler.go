package handler

import (
	"net/http"

	"github.com/boddenberg/budget-tracker-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func markBillPaidHandler(ledger *service.Ledger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /bills/{id}/paid")
		defer span.End()
		res, err := ledger.MarkBillPaid(ctx, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func runJobsHandler(jobs *service.JobRunner, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /jobs/run")
		defer span.End()
		report, err := jobs.RunOnce(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}
