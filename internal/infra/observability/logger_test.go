package observability_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/boddenberg/budget-tracker-go/internal/infra/observability"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newLoggedRouter(t *testing.T) (http.Handler, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)

	r := chi.NewRouter()
	r.Use(observability.RequestLogger(zap.New(core)))
	r.Use(observability.TracingMiddleware)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Route("/v1/collections/{coll}", func(r chi.Router) {
		r.Get("/{id}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) })
		r.Put("/{id}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
		r.Delete("/{id}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusInternalServerError) })
	})
	return r, logs
}

func TestRequestLogger_LevelsAndFields(t *testing.T) {
	router, logs := newLoggedRouter(t)

	tests := []struct {
		method, path string
		level        zapcore.Level
	}{
		{http.MethodGet, "/healthz", zapcore.DebugLevel},
		{http.MethodPut, "/v1/collections/loans/L1", zapcore.InfoLevel},
		{http.MethodGet, "/v1/collections/loans/L1", zapcore.WarnLevel},
		{http.MethodDelete, "/v1/collections/loans/L1", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(tt.method, tt.path, nil))
	}

	entries := logs.All()
	if len(entries) != len(tests) {
		t.Fatalf("expected %d log lines, got %d", len(tests), len(entries))
	}
	for i, tt := range tests {
		if entries[i].Level != tt.level {
			t.Errorf("%s %s: expected level %v, got %v", tt.method, tt.path, tt.level, entries[i].Level)
		}
	}

	put := entries[1].ContextMap()
	if put["route"] != "/v1/collections/{coll}/{id}" {
		t.Errorf("expected the route pattern, got %v", put["route"])
	}
	if put["collection"] != "loans" || put["record_id"] != "L1" {
		t.Errorf("expected collection and record id, got %v", put)
	}
	if _, ok := entries[0].ContextMap()["collection"]; ok {
		t.Error("non-record routes carry no collection")
	}
}
