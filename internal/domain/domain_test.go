package domain_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/boddenberg/budget-tracker-go/internal/date"
	"github.com/boddenberg/budget-tracker-go/internal/domain"
)

func TestRecordMerge_KeepsUnknownFields(t *testing.T) {
	rec := domain.Record{"id": "a1", "name": "Bank", "type": "bank", "balance": 10.0, "color": "blue"}

	acc, err := domain.Decode[domain.Account](rec)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	acc.Balance = 4.5

	merged, err := rec.Merge(acc)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if merged["balance"] != 4.5 {
		t.Errorf("expected balance 4.5, got %v", merged["balance"])
	}
	if merged["color"] != "blue" {
		t.Errorf("expected unknown field to survive, got %v", merged["color"])
	}
	if rec["balance"] != 10.0 {
		t.Error("merge must not mutate the source record")
	}
}

func TestRecordString(t *testing.T) {
	rec := domain.Record{"id": 42.0, "name": "x"}
	if rec.ID() != "42" {
		t.Errorf("expected 42, got %q", rec.ID())
	}
	if rec.String("missing") != "" {
		t.Error("expected empty string for missing key")
	}
}

func TestMaintenanceCost_AcceptsStrings(t *testing.T) {
	m, err := domain.Decode[domain.Maintenance](domain.Record{"id": "m1", "cost": "120.5"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if m.Cost != 120.5 {
		t.Errorf("expected 120.5, got %v", m.Cost)
	}
}

func TestParseCollection(t *testing.T) {
	if _, err := domain.ParseCollection("loans"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	_, err := domain.ParseCollection("widgets")
	var unknown *domain.ErrUnknownCollection
	if !errors.As(err, &unknown) {
		t.Fatalf("expected ErrUnknownCollection, got %v", err)
	}
}

func TestParseSnapshot(t *testing.T) {
	snap, err := domain.ParseSnapshot(strings.NewReader(`{"timestamp":"2025-01-01T00:00:00.000Z","data":{"accounts":[{"id":"a"}],"widgets":[]}}`))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(snap.Data[domain.CollAccounts]) != 1 {
		t.Errorf("expected 1 account, got %d", len(snap.Data[domain.CollAccounts]))
	}

	bad := []string{
		`not json`,
		`{"timestamp":"x"}`,
		`{"data":{"accounts":"nope"}}`,
	}
	for _, in := range bad {
		_, err := domain.ParseSnapshot(strings.NewReader(in))
		var invalid *domain.ErrInvalidSnapshot
		if !errors.As(err, &invalid) {
			t.Errorf("%s: expected ErrInvalidSnapshot, got %v", in, err)
		}
	}
}

func TestFrequencyNext(t *testing.T) {
	start := date.MustParse("2025-01-15")
	tests := []struct {
		freq domain.Frequency
		want string
	}{
		{domain.Weekly, "2025-01-22"},
		{domain.Fortnightly, "2025-01-29"},
		{domain.Monthly, "2025-02-15"},
		{domain.Quarterly, "2025-04-15"},
		{domain.Annually, "2026-01-15"},
		{domain.Yearly, "2026-01-15"},
		{domain.Frequency("daily-ish"), "2025-02-15"},
	}
	for _, tt := range tests {
		t.Run(string(tt.freq), func(t *testing.T) {
			if got := tt.freq.Next(start).String(); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestFormatMoney(t *testing.T) {
	if got := domain.FormatMoney(1234.5, "USD"); got != "$1,234.50" {
		t.Errorf("unexpected format %q", got)
	}
	if got := domain.FormatMoney(0.125, ""); got != "$0.13" {
		t.Errorf("unexpected format %q", got)
	}
	if got := domain.RoundCents(10.006); got != 10.01 {
		t.Errorf("expected 10.01, got %v", got)
	}
}
