package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/boddenberg/budget-tracker-go/internal/service"

	"go.uber.org/zap"
)

func exportHandler(ledger *service.Ledger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /export")
		defer span.End()

		// Buffered so a failed export still gets an error status.
		var buf bytes.Buffer
		if err := ledger.ExportBackup(ctx, &buf); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		name := fmt.Sprintf("budget-backup-%s.json", time.Now().Format("2006-01-02"))
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
	}
}

func importHandler(ledger *service.Ledger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /import")
		defer span.End()
		overwrite := false
		if v := r.URL.Query().Get("overwrite"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "overwrite must be true or false")
				return
			}
			overwrite = b
		}
		if err := ledger.ImportBackup(ctx, r.Body, overwrite); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"imported": true, "overwrite": overwrite})
	}
}

func resetHandler(ledger *service.Ledger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /reset")
		defer span.End()
		if err := ledger.Reset(ctx); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
