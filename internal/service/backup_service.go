package service

import (
	"context"
	"io"

	"github.com/boddenberg/budget-tracker-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ExportBackup writes every collection as an indented JSON snapshot.
func (l *Ledger) ExportBackup(ctx context.Context, w io.Writer) error {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.ExportBackup")
	defer span.End()

	snap, err := l.store.ExportAll(ctx)
	if err != nil {
		return err
	}
	if err := snap.Encode(w); err != nil {
		return err
	}

	total := 0
	for _, recs := range snap.Data {
		total += len(recs)
	}
	l.logger.Info("backup exported", zap.Int("records", total))
	return nil
}

// ImportBackup reads a snapshot and writes it to the store. With overwrite
// every collection is emptied first.
func (l *Ledger) ImportBackup(ctx context.Context, r io.Reader, overwrite bool) error {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.ImportBackup")
	defer span.End()
	span.SetAttributes(attribute.Bool("overwrite", overwrite))

	snap, err := domain.ParseSnapshot(r)
	if err != nil {
		return err
	}
	return l.store.ImportAll(ctx, snap, overwrite)
}

// Reset empties every collection.
func (l *Ledger) Reset(ctx context.Context) error {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.Reset")
	defer span.End()

	return l.store.ClearAll(ctx)
}
