package handler

import (
	"net/http"

	"github.com/boddenberg/budget-tracker-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Record Handlers
// ============================================================

func listRecordsHandler(ledger *service.Ledger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /collections/{coll}")
		defer span.End()
		coll := CollectionFromContext(ctx)
		span.SetAttributes(attribute.String("collection", string(coll)))

		recs, err := ledger.List(ctx, coll)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

func findRecordsHandler(ledger *service.Ledger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /collections/{coll}/by/{field}/{value}")
		defer span.End()
		recs, err := ledger.FindBy(ctx, CollectionFromContext(ctx), chi.URLParam(r, "field"), chi.URLParam(r, "value"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

func getRecordHandler(ledger *service.Ledger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /collections/{coll}/{id}")
		defer span.End()
		rec, err := ledger.Get(ctx, CollectionFromContext(ctx), chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func addRecordHandler(ledger *service.Ledger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /collections/{coll}")
		defer span.End()
		rec, err := decodeRecord(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		created, err := ledger.Add(ctx, CollectionFromContext(ctx), rec)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func updateRecordHandler(ledger *service.Ledger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /collections/{coll}/{id}")
		defer span.End()
		rec, err := decodeRecord(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		rec["id"] = chi.URLParam(r, "id")
		updated, err := ledger.Update(ctx, CollectionFromContext(ctx), rec)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func deleteRecordHandler(ledger *service.Ledger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /collections/{coll}/{id}")
		defer span.End()
		if err := ledger.Delete(ctx, CollectionFromContext(ctx), chi.URLParam(r, "id")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
