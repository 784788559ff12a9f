package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/budget-tracker-go/internal/domain"
	"github.com/boddenberg/budget-tracker-go/internal/handler"
	"github.com/boddenberg/budget-tracker-go/internal/infra/observability"
	"github.com/boddenberg/budget-tracker-go/internal/infra/sqlitestore"
	"github.com/boddenberg/budget-tracker-go/internal/service"

	"go.uber.org/zap"
)

func newRouter(t *testing.T) (http.Handler, *sqlitestore.Store) {
	t.Helper()
	metrics := observability.NewMetrics()
	opener := sqlitestore.NewOpener(sqlitestore.Options{
		Path: filepath.Join(t.TempDir(), "budget.db"),
	}, metrics, zap.NewNop())
	t.Cleanup(func() { _ = opener.Close() })

	store, err := opener.Open(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	ledger := service.NewLedger(store, nil, nil, metrics, zap.NewNop())
	ready := func() bool { return opener.State() == sqlitestore.StateOpen }
	return handler.NewRouter(ledger, service.NewJobRunner(ledger, time.Minute, zap.NewNop()), ready, metrics, zap.NewNop()), store
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthz(t *testing.T) {
	router, _ := newRouter(t)
	rec := do(t, router, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["schemaVersion"] != float64(sqlitestore.SchemaVersion) {
		t.Errorf("expected schema version in health, got %v", body)
	}
}

func TestReadyz(t *testing.T) {
	router, _ := newRouter(t)
	if rec := do(t, router, http.MethodGet, "/readyz", ""); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	notReady := handler.NewRouter(nil, nil, func() bool { return false }, observability.NewMetrics(), zap.NewNop())
	if rec := do(t, notReady, http.MethodGet, "/readyz", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	router, _ := newRouter(t)
	rec := do(t, router, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "budget_store_opens_total") {
		t.Error("expected the private registry to be served")
	}
}

func TestCollections_CRUD(t *testing.T) {
	router, _ := newRouter(t)

	rec := do(t, router, http.MethodPost, "/v1/collections/accounts", `{"id":"A1","name":"Everyday","balance":10}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, router, http.MethodPost, "/v1/collections/accounts", `{"id":"A1"}`); rec.Code != http.StatusConflict {
		t.Errorf("expected 409 on duplicate, got %d", rec.Code)
	}

	rec = do(t, router, http.MethodPut, "/v1/collections/accounts/A1", `{"name":"Main","balance":20}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, router, http.MethodGet, "/v1/collections/accounts/A1", "")
	got := decode[domain.Record](t, rec)
	if got["name"] != "Main" || got["createdAt"] == nil {
		t.Errorf("unexpected record %v", got)
	}

	rec = do(t, router, http.MethodGet, "/v1/collections/accounts", "")
	if list := decode[[]domain.Record](t, rec); len(list) != 1 {
		t.Errorf("expected 1 account, got %d", len(list))
	}

	if rec := do(t, router, http.MethodDelete, "/v1/collections/accounts/A1", ""); rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if rec := do(t, router, http.MethodGet, "/v1/collections/accounts/A1", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestCollections_Errors(t *testing.T) {
	router, _ := newRouter(t)

	tests := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodGet, "/v1/collections/widgets", "", http.StatusNotFound},
		{http.MethodPost, "/v1/collections/accounts", `[1,2]`, http.StatusBadRequest},
		{http.MethodPost, "/v1/collections/accounts", `{bad`, http.StatusBadRequest},
		{http.MethodGet, "/v1/collections/transactions/by/description/x", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rec := do(t, router, tt.method, tt.path, tt.body); rec.Code != tt.want {
			t.Errorf("%s %s: expected %d, got %d", tt.method, tt.path, tt.want, rec.Code)
		}
	}
}

func TestLoanPayment(t *testing.T) {
	router, store := newRouter(t)
	ctx := context.Background()
	store.Add(ctx, domain.CollLoans, domain.Record{"id": "L1", "name": "Car", "currentBalance": 5000.0, "interestRate": 6.0, "originalAmount": 5000.0, "termMonths": 12.0, "startDate": "2025-01-01"})
	store.Add(ctx, domain.CollAccounts, domain.Record{"id": "A1", "balance": 1000.0})

	rec := do(t, router, http.MethodPost, "/v1/loans/L1/payments", `{"amount":100,"fromAccountId":"A1","paymentDate":"2025-02-01"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	res := decode[service.PaymentResult](t, rec)
	if res.NewBalance != 4925 {
		t.Errorf("expected new balance 4925, got %v", res.NewBalance)
	}

	if rec := do(t, router, http.MethodPost, "/v1/loans/L1/payments", `{"amount":-1,"fromAccountId":"A1"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if rec := do(t, router, http.MethodPost, "/v1/loans/nope/payments", `{"amount":1,"fromAccountId":"A1"}`); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}

	rec = do(t, router, http.MethodGet, "/v1/loans/L1/schedule", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if s := decode[service.LoanSchedule](t, rec); len(s.Periods) != 12 {
		t.Errorf("expected 12 periods, got %d", len(s.Periods))
	}

	rec = do(t, router, http.MethodGet, "/v1/loans/L1/next-payment", "")
	if next := decode[map[string]any](t, rec); next["dueDate"] != "1 Jan 2025" {
		t.Errorf("unexpected next payment %v", next)
	}
}

func TestBudgetConvert(t *testing.T) {
	router, _ := newRouter(t)
	rec := do(t, router, http.MethodGet, "/v1/budgets/convert?amount=100&from=weekly&to=monthly", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := decode[map[string]any](t, rec); body["amount"] != 433.0 {
		t.Errorf("expected 433, got %v", body["amount"])
	}
	if rec := do(t, router, http.MethodGet, "/v1/budgets/convert?amount=lots", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestExportImport(t *testing.T) {
	router, store := newRouter(t)
	store.Add(context.Background(), domain.CollBudgets, domain.Record{"id": "b1", "amount": 10.0})

	rec := do(t, router, http.MethodGet, "/v1/export", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "budget-backup-") {
		t.Errorf("expected attachment header, got %q", cd)
	}
	backup := rec.Body.String()

	if rec := do(t, router, http.MethodPost, "/v1/reset", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec := do(t, router, http.MethodPost, "/v1/import?overwrite=true", backup); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, router, http.MethodGet, "/v1/collections/budgets/b1", ""); rec.Code != http.StatusOK {
		t.Errorf("expected restored budget, got %d", rec.Code)
	}

	if rec := do(t, router, http.MethodPost, "/v1/import", `{"nope":1}`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad snapshot, got %d", rec.Code)
	}
	if rec := do(t, router, http.MethodPost, "/v1/import?overwrite=maybe", backup); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad flag, got %d", rec.Code)
	}
}

func TestRunJobs(t *testing.T) {
	router, _ := newRouter(t)
	rec := do(t, router, http.MethodPost, "/v1/jobs/run", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	report := decode[service.JobsReport](t, rec)
	if report.Recurring == nil || report.Bills == nil {
		t.Errorf("expected both job reports, got %+v", report)
	}
}

func TestCollections_CategoryRules(t *testing.T) {
	router, _ := newRouter(t)

	for _, body := range []string{
		`{"id":"P","name":"Pets","type":"expense"}`,
		`{"id":"C","name":"Vet","type":"expense","parentId":"P"}`,
	} {
		if rec := do(t, router, http.MethodPost, "/v1/collections/categories", body); rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
	}
	if rec := do(t, router, http.MethodPost, "/v1/collections/categories", `{"id":"G","name":"Shots","type":"expense","parentId":"C"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a grandchild, got %d", rec.Code)
	}
	if rec := do(t, router, http.MethodPut, "/v1/collections/categories/P", `{"name":"Pets","type":"expense","parentId":"C"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a parent under its child, got %d", rec.Code)
	}

	if rec := do(t, router, http.MethodDelete, "/v1/collections/categories/P", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec := do(t, router, http.MethodGet, "/v1/collections/categories/C", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected subcategory deleted with its parent, got %d", rec.Code)
	}
}

func TestCollections_MaintenanceMirror(t *testing.T) {
	router, _ := newRouter(t)

	if rec := do(t, router, http.MethodPost, "/v1/collections/maintenance", `{"id":"m1","propertyId":"p1","cost":50}`); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, router, http.MethodPut, "/v1/collections/maintenance/m1", `{"propertyId":"p1","cost":75}`); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec := do(t, router, http.MethodGet, "/v1/collections/transactions/by/maintenanceId/m1", "")
	mirrors := decode[[]domain.Record](t, rec)
	if len(mirrors) != 1 || mirrors[0]["amount"] != 75.0 {
		t.Fatalf("expected one mirror of 75, got %v", mirrors)
	}

	if rec := do(t, router, http.MethodDelete, "/v1/collections/maintenance/m1", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	rec = do(t, router, http.MethodGet, "/v1/collections/transactions", "")
	if txs := decode[[]domain.Record](t, rec); len(txs) != 0 {
		t.Errorf("expected mirror removed, got %v", txs)
	}
}
