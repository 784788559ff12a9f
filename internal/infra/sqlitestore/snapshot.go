package sqlitestore

import (
	"context"
	"sort"
	"time"

	"github.com/boddenberg/budget-tracker-go/internal/domain"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ClearAll empties every collection. The schema and version are kept.
func (s *Store) ClearAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer s.observe("clear_all", "", time.Now())

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.session(tx).clear(ctx)
	})
	if err != nil {
		return err
	}
	s.logger.Warn("all collections cleared", zap.String("path", s.path))
	return nil
}

// ExportAll reads every collection in one transaction.
func (s *Store) ExportAll(ctx context.Context) (*domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer s.observe("export_all", "", time.Now())

	snap := &domain.Snapshot{
		Timestamp: domain.Timestamp(s.now()),
		Data:      make(map[domain.Collection][]domain.Record, len(domain.Collections)),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sess := s.session(tx)
		for _, coll := range domain.Collections {
			recs, err := sess.GetAll(ctx, coll)
			if err != nil {
				return err
			}
			snap.Data[coll] = recs
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// ImportAll writes a snapshot. With overwrite every collection is cleared
// first; otherwise records are upserted on top of existing data. Collections
// outside the schema are skipped. The whole import is one transaction.
func (s *Store) ImportAll(ctx context.Context, snap *domain.Snapshot, overwrite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if snap == nil || snap.Data == nil {
		return &domain.ErrInvalidSnapshot{Reason: "missing data object"}
	}
	defer s.observe("import_all", "", time.Now())

	var unknown []string
	for name := range snap.Data {
		if _, err := domain.ParseCollection(string(name)); err != nil {
			unknown = append(unknown, string(name))
		}
	}
	sort.Strings(unknown)

	imported := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sess := s.session(tx)
		if overwrite {
			if err := sess.clear(ctx); err != nil {
				return err
			}
		}
		for _, coll := range domain.Collections {
			for _, rec := range snap.Data[coll] {
				if rec == nil {
					continue
				}
				if _, err := sess.put(ctx, coll, rec, true); err != nil {
					return err
				}
				imported++
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, name := range unknown {
		s.logger.Warn("import skipped unknown collection", zap.String("collection", name))
	}
	s.logger.Info("snapshot imported",
		zap.Int("records", imported),
		zap.Bool("overwrite", overwrite),
		zap.String("snapshot_timestamp", snap.Timestamp),
	)
	return nil
}
