package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/budget-tracker-go/internal/infra/observability"
	"github.com/boddenberg/budget-tracker-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// ReadyFunc reports whether the record store is open.
type ReadyFunc func() bool

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(ledger *service.Ledger, jobs *service.JobRunner, ready ReadyFunc, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(ledger))
	r.Get("/readyz", readyzHandler(ready))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// 1. Records
		// =============================================
		r.Route("/collections/{coll}", func(r chi.Router) {
			r.Use(CollectionMiddleware(logger))
			r.Get("/", listRecordsHandler(ledger, logger))
			r.Post("/", addRecordHandler(ledger, logger))
			r.Get("/by/{field}/{value}", findRecordsHandler(ledger, logger))
			r.Get("/{id}", getRecordHandler(ledger, logger))
			r.Put("/{id}", updateRecordHandler(ledger, logger))
			r.Delete("/{id}", deleteRecordHandler(ledger, logger))
		})

		// =============================================
		// 2. Loans
		// =============================================
		r.Post("/loans/{id}/payments", loanPaymentHandler(ledger, logger))
		r.Get("/loans/{id}/schedule", loanScheduleHandler(ledger, logger))
		r.Get("/loans/{id}/next-payment", loanNextPaymentHandler(ledger, logger))
		r.Get("/loans/{id}/offset-saving", loanOffsetSavingHandler(ledger, logger))

		// =============================================
		// 3. Bills & posting jobs
		// =============================================
		r.Post("/bills/{id}/paid", markBillPaidHandler(ledger, logger))
		r.Post("/jobs/run", runJobsHandler(jobs, logger))

		// =============================================
		// 4. Budgets, categories, maintenance
		// =============================================
		r.Get("/budgets/convert", convertBudgetHandler(logger))
		r.Get("/budgets/goals", budgetGoalsHandler(ledger, logger))
		r.Post("/categories", addCategoryHandler(ledger, logger))
		r.Delete("/categories/{id}", deleteCategoryHandler(ledger, logger))
		r.Put("/maintenance", saveMaintenanceHandler(ledger, logger))
		r.Delete("/maintenance/{id}", deleteMaintenanceHandler(ledger, logger))

		// =============================================
		// 5. Backup
		// =============================================
		r.Get("/export", exportHandler(ledger, logger))
		r.Post("/import", importHandler(ledger, logger))
		r.Post("/reset", resetHandler(ledger, logger))
	})

	return r
}

func healthzHandler(ledger *service.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}
		if ledger != nil {
			body["schemaVersion"] = ledger.SchemaVersion()
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func readyzHandler(ready ReadyFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil && !ready() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "store not open"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
