// Package sqlitestore is the versioned record store on top of SQLite (via
// gorm). Each collection is a table of JSON documents keyed by id, with
// secondary indexes over JSON fields.
package sqlitestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/budget-tracker-go/internal/domain"
	"github.com/boddenberg/budget-tracker-go/internal/infra/observability"
	"github.com/boddenberg/budget-tracker-go/internal/port"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// row is the physical layout shared by every collection table.
type row struct {
	ID      string `gorm:"column:id;primaryKey"`
	Data    string `gorm:"column:data"`
	Created string `gorm:"column:created_at"`
	Updated string `gorm:"column:updated_at"`
}

func newRow(rec domain.Record) (row, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return row{}, fmt.Errorf("encode %s: %w", rec.ID(), err)
	}
	return row{ID: rec.ID(), Data: string(b), Created: rec.String("createdAt"), Updated: rec.String("updatedAt")}, nil
}

func (r row) record() (domain.Record, error) {
	var rec domain.Record
	if err := json.Unmarshal([]byte(r.Data), &rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.ID, err)
	}
	if rec == nil {
		rec = domain.Record{}
	}
	rec["id"] = r.ID
	return rec, nil
}

// Store is an open record store. Obtain one from Opener.Open.
type Store struct {
	db      *gorm.DB
	path    string
	version int
	now     func() time.Time
	metrics *observability.Metrics
	logger  *zap.Logger
}

var _ port.RecordStore = (*Store)(nil)

// Path returns the database file.
func (s *Store) Path() string { return s.path }

// Version returns the schema version the store was opened at.
func (s *Store) Version() int { return s.version }

func (s *Store) close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) session(db *gorm.DB) *session {
	return &session{db: db, now: s.now, logger: s.logger}
}

func (s *Store) observe(op string, coll domain.Collection, start time.Time) {
	s.metrics.RecordStoreOp(op, string(coll), time.Since(start))
}

// InTx runs fn in one SQLite transaction spanning every collection.
func (s *Store) InTx(ctx context.Context, fn func(tx port.RecordTx) error) error {
	defer s.observe("tx", "", time.Now())
	return s.transaction(ctx, fn)
}

// transaction is InTx without the "tx" observation, for single writes that
// are observed under their own operation.
func (s *Store) transaction(ctx context.Context, fn func(tx port.RecordTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(s.session(tx))
	})
}

func (s *Store) Get(ctx context.Context, coll domain.Collection, id string) (domain.Record, error) {
	defer s.observe("get", coll, time.Now())
	return s.session(s.db).Get(ctx, coll, id)
}

func (s *Store) GetAll(ctx context.Context, coll domain.Collection) ([]domain.Record, error) {
	defer s.observe("get_all", coll, time.Now())
	return s.session(s.db).GetAll(ctx, coll)
}

func (s *Store) FindBy(ctx context.Context, coll domain.Collection, field, value string) ([]domain.Record, error) {
	defer s.observe("find_by", coll, time.Now())
	return s.session(s.db).FindBy(ctx, coll, field, value)
}

func (s *Store) Add(ctx context.Context, coll domain.Collection, rec domain.Record) (out domain.Record, err error) {
	defer s.observe("add", coll, time.Now())
	err = s.transaction(ctx, func(tx port.RecordTx) error {
		out, err = tx.Add(ctx, coll, rec)
		return err
	})
	return out, err
}

func (s *Store) Update(ctx context.Context, coll domain.Collection, rec domain.Record) (out domain.Record, err error) {
	defer s.observe("update", coll, time.Now())
	err = s.transaction(ctx, func(tx port.RecordTx) error {
		out, err = tx.Update(ctx, coll, rec)
		return err
	})
	return out, err
}

// Delete removes a record. Deleting a property also removes its tenants and
// maintenance rows, and deleting a category its subcategories, in the same
// transaction.
func (s *Store) Delete(ctx context.Context, coll domain.Collection, id string) error {
	defer s.observe("delete", coll, time.Now())
	return s.transaction(ctx, func(tx port.RecordTx) error {
		return tx.Delete(ctx, coll, id)
	})
}

// ============================================================
// session: one connection or transaction
// ============================================================

type session struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
}

func checkCollection(coll domain.Collection) error {
	_, err := domain.ParseCollection(string(coll))
	return err
}

func (s *session) table(ctx context.Context, coll domain.Collection) *gorm.DB {
	return s.db.WithContext(ctx).Table(string(coll))
}

func (s *session) Get(ctx context.Context, coll domain.Collection, id string) (domain.Record, error) {
	if err := checkCollection(coll); err != nil {
		return nil, err
	}
	var r row
	err := s.table(ctx, coll).Where("id = ?", id).Take(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &domain.ErrNotFound{Resource: string(coll), ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", coll, id, err)
	}
	return r.record()
}

func (s *session) GetAll(ctx context.Context, coll domain.Collection) ([]domain.Record, error) {
	if err := checkCollection(coll); err != nil {
		return nil, err
	}
	var rows []row
	if err := s.table(ctx, coll).Order("rowid").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list %s: %w", coll, err)
	}
	return records(rows)
}

func (s *session) FindBy(ctx context.Context, coll domain.Collection, field, value string) ([]domain.Record, error) {
	if err := checkCollection(coll); err != nil {
		return nil, err
	}
	if !isIndexed(coll, field) {
		return nil, &domain.ErrValidation{Field: field, Message: fmt.Sprintf("not an indexed field of %s", coll)}
	}
	var rows []row
	if err := s.table(ctx, coll).Where(jsonExpr(field)+" = ?", value).Order("rowid").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find %s by %s: %w", coll, field, err)
	}
	return records(rows)
}

func records(rows []row) ([]domain.Record, error) {
	out := make([]domain.Record, 0, len(rows))
	for _, r := range rows {
		rec, err := r.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *session) exists(ctx context.Context, coll domain.Collection, id string) (row, bool, error) {
	var r row
	err := s.table(ctx, coll).Select("id", "created_at").Where("id = ?", id).Take(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return row{}, false, nil
	}
	if err != nil {
		return row{}, false, fmt.Errorf("lookup %s/%s: %w", coll, id, err)
	}
	return r, true, nil
}

// Add inserts a new record, assigning an id when absent.
func (s *session) Add(ctx context.Context, coll domain.Collection, rec domain.Record) (domain.Record, error) {
	if err := checkCollection(coll); err != nil {
		return nil, err
	}
	rec = rec.Clone()
	id := rec.ID()
	if id == "" {
		id = domain.NewID()
	}
	rec["id"] = id

	_, found, err := s.exists(ctx, coll, id)
	if err != nil {
		return nil, err
	}
	if found {
		return nil, &domain.ErrDuplicateKey{Collection: coll, ID: id}
	}

	now := domain.Timestamp(s.now())
	if rec.String("createdAt") == "" {
		rec["createdAt"] = now
	}
	rec["updatedAt"] = now

	r, err := newRow(rec)
	if err != nil {
		return nil, err
	}
	if err := s.table(ctx, coll).Create(&r).Error; err != nil {
		return nil, fmt.Errorf("add %s/%s: %w", coll, id, err)
	}
	return rec, nil
}

// Update writes a record by id with a fresh updatedAt. Unknown ids are
// inserted.
func (s *session) Update(ctx context.Context, coll domain.Collection, rec domain.Record) (domain.Record, error) {
	return s.put(ctx, coll, rec, false)
}

// put upserts rec. keepUpdated preserves a caller-supplied updatedAt, which
// is how imports restore a backup verbatim.
func (s *session) put(ctx context.Context, coll domain.Collection, rec domain.Record, keepUpdated bool) (domain.Record, error) {
	if err := checkCollection(coll); err != nil {
		return nil, err
	}
	rec = rec.Clone()
	id := rec.ID()
	if id == "" {
		if !keepUpdated {
			return nil, &domain.ErrValidation{Field: "id", Message: "required for update"}
		}
		id = domain.NewID()
	}
	rec["id"] = id

	now := domain.Timestamp(s.now())
	if rec.String("createdAt") == "" {
		prev, found, err := s.exists(ctx, coll, id)
		if err != nil {
			return nil, err
		}
		if found && prev.Created != "" {
			rec["createdAt"] = prev.Created
		} else {
			rec["createdAt"] = now
		}
	}
	if !keepUpdated || rec.String("updatedAt") == "" {
		rec["updatedAt"] = now
	}

	r, err := newRow(rec)
	if err != nil {
		return nil, err
	}
	err = s.table(ctx, coll).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "created_at", "updated_at"}),
	}).Create(&r).Error
	if err != nil {
		return nil, fmt.Errorf("put %s/%s: %w", coll, id, err)
	}
	return rec, nil
}

func (s *session) Delete(ctx context.Context, coll domain.Collection, id string) error {
	if err := checkCollection(coll); err != nil {
		return err
	}
	if err := s.table(ctx, coll).Where("id = ?", id).Delete(&row{}).Error; err != nil {
		return fmt.Errorf("delete %s/%s: %w", coll, id, err)
	}

	for _, c := range cascades[coll] {
		res := s.table(ctx, c.child).Where(jsonExpr(c.field)+" = ?", id).Delete(&row{})
		if res.Error != nil {
			return fmt.Errorf("cascade %s -> %s: %w", coll, c.child, res.Error)
		}
		if res.RowsAffected > 0 {
			s.logger.Debug("cascade delete",
				zap.String("parent", string(coll)),
				zap.String("parent_id", id),
				zap.String("collection", string(c.child)),
				zap.Int64("deleted", res.RowsAffected),
			)
		}
	}
	return nil
}

func (s *session) clear(ctx context.Context) error {
	for _, coll := range domain.Collections {
		if err := s.db.WithContext(ctx).Exec("DELETE FROM " + quote(string(coll))).Error; err != nil {
			return fmt.Errorf("clear %s: %w", coll, err)
		}
	}
	return nil
}
