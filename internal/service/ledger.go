// Package service provides the business logic layer of the budget tracker.
// Ledger owns every multi-record operation: loan payments, the recurring and
// due-bill posting job, category trees, the maintenance mirror and backups.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/boddenberg/budget-tracker-go/internal/amortization"
	"github.com/boddenberg/budget-tracker-go/internal/date"
	"github.com/boddenberg/budget-tracker-go/internal/domain"
	"github.com/boddenberg/budget-tracker-go/internal/infra/observability"
	"github.com/boddenberg/budget-tracker-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var ledgerTracer = otel.Tracer("service/ledger")

// Ledger orchestrates the bookkeeping operations on top of the record store.
type Ledger struct {
	store     port.RecordStore
	schedules port.Cache[[]amortization.Period]
	now       port.Clock
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewLedger creates a ledger. schedules may be nil to disable schedule
// caching; clock defaults to time.Now.
func NewLedger(store port.RecordStore, schedules port.Cache[[]amortization.Period], clock port.Clock, metrics *observability.Metrics, logger *zap.Logger) *Ledger {
	if clock == nil {
		clock = time.Now
	}
	return &Ledger{store: store, schedules: schedules, now: clock, metrics: metrics, logger: logger}
}

func (l *Ledger) today() date.Date { return date.Of(l.now()) }

func (l *Ledger) observe(operation string, start time.Time) {
	l.metrics.RecordRequestDuration(operation, time.Since(start))
}

// ============================================================
// Record CRUD
// ============================================================

func (l *Ledger) Get(ctx context.Context, coll domain.Collection, id string) (domain.Record, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.Get")
	defer span.End()
	span.SetAttributes(attribute.String("collection", string(coll)), attribute.String("record.id", id))

	return l.store.Get(ctx, coll, id)
}

func (l *Ledger) List(ctx context.Context, coll domain.Collection) ([]domain.Record, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.List")
	defer span.End()
	span.SetAttributes(attribute.String("collection", string(coll)))

	return l.store.GetAll(ctx, coll)
}

func (l *Ledger) FindBy(ctx context.Context, coll domain.Collection, field, value string) ([]domain.Record, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.FindBy")
	defer span.End()
	span.SetAttributes(attribute.String("collection", string(coll)), attribute.String("field", field))

	return l.store.FindBy(ctx, coll, field, value)
}

// Add stores a new record. Categories and maintenance records go through
// AddCategory and the maintenance mirror.
func (l *Ledger) Add(ctx context.Context, coll domain.Collection, rec domain.Record) (domain.Record, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.Add")
	defer span.End()
	span.SetAttributes(attribute.String("collection", string(coll)))

	switch coll {
	case domain.CollCategories:
		return l.AddCategory(ctx, rec)
	case domain.CollMaintenance:
		return l.writeMaintenance(ctx, rec, addRecord)
	}

	out, err := l.store.Add(ctx, coll, rec)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("record added", zap.String("collection", string(coll)), zap.String("id", out.ID()))
	return out, nil
}

// Update replaces a record, keeping the category nesting rule and the
// maintenance mirror.
func (l *Ledger) Update(ctx context.Context, coll domain.Collection, rec domain.Record) (domain.Record, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.Update")
	defer span.End()
	span.SetAttributes(attribute.String("collection", string(coll)), attribute.String("record.id", rec.ID()))

	switch coll {
	case domain.CollCategories:
		return l.UpdateCategory(ctx, rec)
	case domain.CollMaintenance:
		return l.writeMaintenance(ctx, rec, updateRecord)
	}
	return l.store.Update(ctx, coll, rec)
}

// Delete removes one record. Properties cascade to their tenants and
// maintenance rows and categories to their subcategories inside the store.
// Maintenance records take their mirror transaction with them.
func (l *Ledger) Delete(ctx context.Context, coll domain.Collection, id string) error {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("collection", string(coll)), attribute.String("record.id", id))

	if coll == domain.CollMaintenance {
		return l.DeleteMaintenance(ctx, id)
	}

	if err := l.store.Delete(ctx, coll, id); err != nil {
		return err
	}
	l.logger.Debug("record deleted", zap.String("collection", string(coll)), zap.String("id", id))
	return nil
}

// DeleteProperty removes a property together with its tenants and
// maintenance records.
func (l *Ledger) DeleteProperty(ctx context.Context, id string) error {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.DeleteProperty")
	defer span.End()

	if err := l.store.Delete(ctx, domain.CollProperties, id); err != nil {
		return err
	}
	l.logger.Info("property deleted", zap.String("property_id", id))
	return nil
}

// SchemaVersion reports the version the store was opened at.
func (l *Ledger) SchemaVersion() int { return l.store.Version() }

// ============================================================
// Typed helpers
// ============================================================

// load reads one record and decodes it. The raw record is returned too so
// that writes can be merged back without losing unknown fields.
func load[T any](ctx context.Context, r port.RecordReader, coll domain.Collection, id string) (T, domain.Record, error) {
	var zero T
	rec, err := r.Get(ctx, coll, id)
	if err != nil {
		return zero, nil, err
	}
	v, err := domain.Decode[T](rec)
	if err != nil {
		return zero, nil, err
	}
	return v, rec, nil
}

func loadAll[T any](ctx context.Context, r port.RecordReader, coll domain.Collection) ([]T, error) {
	recs, err := r.GetAll(ctx, coll)
	if err != nil {
		return nil, err
	}
	return domain.DecodeAll[T](recs)
}

// save merges v over the stored record and writes it back.
func save(ctx context.Context, w port.RecordWriter, coll domain.Collection, orig domain.Record, v any) (domain.Record, error) {
	rec, err := orig.Merge(v)
	if err != nil {
		return nil, err
	}
	return w.Update(ctx, coll, rec)
}

func insert(ctx context.Context, w port.RecordWriter, coll domain.Collection, v any) (domain.Record, error) {
	rec, err := domain.ToRecord(v)
	if err != nil {
		return nil, err
	}
	return w.Add(ctx, coll, rec)
}

// recordWrite stores rec in coll inside tx.
type recordWrite func(ctx context.Context, tx port.RecordTx, coll domain.Collection, rec domain.Record) (domain.Record, error)

func addRecord(ctx context.Context, tx port.RecordTx, coll domain.Collection, rec domain.Record) (domain.Record, error) {
	return tx.Add(ctx, coll, rec)
}

func updateRecord(ctx context.Context, tx port.RecordTx, coll domain.Collection, rec domain.Record) (domain.Record, error) {
	return tx.Update(ctx, coll, rec)
}

func isNotFound(err error) bool {
	var nf *domain.ErrNotFound
	return errors.As(err, &nf)
}
