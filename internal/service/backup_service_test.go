package service_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/boddenberg/budget-tracker-go/internal/domain"
)

func TestBackup_RoundTrip(t *testing.T) {
	src := newFixture(t)
	ctx := context.Background()
	src.add(t, domain.CollAccounts, domain.Record{"id": "A1", "name": "Everyday", "balance": 12.5, "nickname": "main"})
	src.add(t, domain.CollLoans, domain.Record{"id": "L1", "name": "Car"})

	var buf bytes.Buffer
	if err := src.ledger.ExportBackup(ctx, &buf); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	dst := newFixture(t)
	dst.add(t, domain.CollAccounts, domain.Record{"id": "stale"})
	if err := dst.ledger.ImportBackup(ctx, &buf, true); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	accounts := dst.all(t, domain.CollAccounts)
	if len(accounts) != 1 || accounts[0].ID() != "A1" {
		t.Fatalf("expected overwrite to replace accounts, got %v", accounts)
	}
	orig := src.get(t, domain.CollAccounts, "A1")
	if accounts[0]["nickname"] != "main" || accounts[0]["createdAt"] != orig["createdAt"] {
		t.Errorf("expected record restored verbatim, got %v", accounts[0])
	}
	dst.get(t, domain.CollLoans, "L1")
}

func TestImportBackup_Invalid(t *testing.T) {
	f := newFixture(t)
	f.add(t, domain.CollAccounts, domain.Record{"id": "A1"})

	for _, body := range []string{`{not json`, `{"timestamp":"x"}`, `{"data":{"accounts":{"id":"x"}}}`} {
		err := f.ledger.ImportBackup(context.Background(), strings.NewReader(body), true)
		var invalid *domain.ErrInvalidSnapshot
		if !errors.As(err, &invalid) {
			t.Errorf("%s: expected ErrInvalidSnapshot, got %v", body, err)
		}
	}
	if n := len(f.all(t, domain.CollAccounts)); n != 1 {
		t.Errorf("a rejected import must not clear data, got %d accounts", n)
	}
}
