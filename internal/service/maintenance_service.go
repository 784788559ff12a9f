package service

import (
	"context"

	"github.com/boddenberg/budget-tracker-go/internal/domain"
	"github.com/boddenberg/budget-tracker-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const defaultMaintenanceTitle = "Maintenance Expense"

// SaveMaintenance stores a maintenance record and keeps exactly one expense
// transaction mirroring it, linked by maintenanceId.
func (l *Ledger) SaveMaintenance(ctx context.Context, rec domain.Record) (domain.Record, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.SaveMaintenance")
	defer span.End()

	return l.writeMaintenance(ctx, rec, upsert)
}

func (l *Ledger) writeMaintenance(ctx context.Context, rec domain.Record, write recordWrite) (domain.Record, error) {
	span := trace.SpanFromContext(ctx)
	m, err := domain.Decode[domain.Maintenance](rec)
	if err != nil {
		return nil, &domain.ErrValidation{Field: "maintenance", Message: err.Error()}
	}
	if m.PropertyID == "" {
		return nil, &domain.ErrValidation{Field: "propertyId", Message: "required"}
	}

	var saved domain.Record
	var mirrorID string
	err = l.store.InTx(ctx, func(tx port.RecordTx) error {
		var err error
		saved, err = write(ctx, tx, domain.CollMaintenance, rec)
		if err != nil {
			return err
		}
		mirrorID, err = l.syncMaintenanceTransaction(ctx, tx, saved.ID(), m)
		return err
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("maintenance.id", saved.ID()))
	l.metrics.IncrPosting("maintenance")
	l.logger.Info("maintenance saved",
		zap.String("maintenance_id", saved.ID()),
		zap.String("property_id", m.PropertyID),
		zap.String("transaction_id", mirrorID),
	)
	return saved, nil
}

// upsert adds rec, or updates it when its id is already stored.
func upsert(ctx context.Context, tx port.RecordTx, coll domain.Collection, rec domain.Record) (domain.Record, error) {
	if id := rec.ID(); id != "" {
		if _, err := tx.Get(ctx, coll, id); err == nil {
			return tx.Update(ctx, coll, rec)
		} else if !isNotFound(err) {
			return nil, err
		}
	}
	return tx.Add(ctx, coll, rec)
}

func (l *Ledger) syncMaintenanceTransaction(ctx context.Context, tx port.RecordTx, maintenanceID string, m domain.Maintenance) (string, error) {
	title := m.Title
	if title == "" {
		title = defaultMaintenanceTitle
	}
	mirror := domain.Transaction{
		Type:          domain.TypeExpense,
		Amount:        float64(m.Cost),
		Date:          m.Date,
		CategoryID:    m.Category,
		Description:   title,
		PropertyID:    m.PropertyID,
		MaintenanceID: maintenanceID,
	}

	linked, err := tx.FindBy(ctx, domain.CollTransactions, "maintenanceId", maintenanceID)
	if err != nil {
		return "", err
	}
	if len(linked) == 0 {
		rec, err := insert(ctx, tx, domain.CollTransactions, mirror)
		if err != nil {
			return "", err
		}
		return rec.ID(), nil
	}

	rec, err := save(ctx, tx, domain.CollTransactions, linked[0], mirror)
	if err != nil {
		return "", err
	}
	// Older data may carry duplicates; one mirror is kept.
	for _, extra := range linked[1:] {
		if err := tx.Delete(ctx, domain.CollTransactions, extra.ID()); err != nil {
			return "", err
		}
	}
	return rec.ID(), nil
}

// DeleteMaintenance removes a maintenance record and its mirror transaction.
func (l *Ledger) DeleteMaintenance(ctx context.Context, id string) error {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.DeleteMaintenance")
	defer span.End()
	span.SetAttributes(attribute.String("maintenance.id", id))

	removed := 0
	err := l.store.InTx(ctx, func(tx port.RecordTx) error {
		removed = 0
		if err := tx.Delete(ctx, domain.CollMaintenance, id); err != nil {
			return err
		}
		linked, err := tx.FindBy(ctx, domain.CollTransactions, "maintenanceId", id)
		if err != nil {
			return err
		}
		for _, t := range linked {
			if err := tx.Delete(ctx, domain.CollTransactions, t.ID()); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return err
	}

	l.logger.Info("maintenance deleted", zap.String("maintenance_id", id), zap.Int("transactions_removed", removed))
	return nil
}
