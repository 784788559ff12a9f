package sqlitestore

import (
	"fmt"
	"time"

	"github.com/boddenberg/budget-tracker-go/internal/domain"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SchemaVersion is the version every opened store is upgraded to.
const SchemaVersion = 12

// indexSpec declares a secondary index over a JSON field of a collection.
type indexSpec struct {
	coll  domain.Collection
	field string
	since int
}

// Every collection also gets an updatedAt index on its updated_at column.
var indexes = []indexSpec{
	{domain.CollLoans, "type", 11},
	{domain.CollLoanTransactions, "loanId", 11},
	{domain.CollLoanTransactions, "date", 11},
	{domain.CollProperties, "name", 11},
	{domain.CollTenants, "propertyId", 11},
	{domain.CollMaintenance, "propertyId", 11},
	{domain.CollMaintenance, "date", 11},
	{domain.CollCostBase, "propertyId", 11},
	{domain.CollCostBase, "date", 11},
	{domain.CollCostBase, "type", 11},

	{domain.CollTransactions, "date", 12},
	{domain.CollTransactions, "accountId", 12},
	{domain.CollTransactions, "maintenanceId", 12},
	{domain.CollTransactions, "billId", 12},
	{domain.CollCategories, "parentId", 12},
	{domain.CollBills, "dueDate", 12},
	{domain.CollExpenses, "propertyId", 12},
}

// cascades lists the child collections removed with a parent record, keyed
// by the parent collection, with the foreign key field.
var cascades = map[domain.Collection][]struct {
	child domain.Collection
	field string
}{
	domain.CollProperties: {
		{domain.CollTenants, "propertyId"},
		{domain.CollMaintenance, "propertyId"},
	},
	domain.CollCategories: {
		{domain.CollCategories, "parentId"},
	},
}

// isIndexed reports whether FindBy may query field on coll.
func isIndexed(coll domain.Collection, field string) bool {
	if field == "updatedAt" {
		return true
	}
	for _, ix := range indexes {
		if ix.coll == coll && ix.field == field {
			return true
		}
	}
	return false
}

// migration is one additive schema step. Steps never drop or rename.
type migration struct {
	version int
	name    string
	apply   func(tx *gorm.DB, logger *zap.Logger) error
}

var migrations = []migration{
	{version: 11, name: "collections and property manager indexes", apply: func(tx *gorm.DB, logger *zap.Logger) error {
		for _, coll := range domain.Collections {
			if err := ensureCollection(tx, coll, logger); err != nil {
				return err
			}
		}
		return ensureIndexes(tx, 11)
	}},
	{version: 12, name: "ledger lookup indexes", apply: func(tx *gorm.DB, _ *zap.Logger) error {
		return ensureIndexes(tx, 12)
	}},
}

func quote(name string) string { return `"` + name + `"` }

// jsonExpr is shared by index DDL and queries so SQLite can use the index.
func jsonExpr(field string) string {
	if field == "updatedAt" {
		return "updated_at"
	}
	return fmt.Sprintf("json_extract(data, '$.%s')", field)
}

func ensureCollection(tx *gorm.DB, coll domain.Collection, logger *zap.Logger) error {
	var existing int64
	if err := tx.Raw("SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?", string(coll)).Scan(&existing).Error; err != nil {
		return fmt.Errorf("inspect %s: %w", coll, err)
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY NOT NULL,
		data TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL DEFAULT ''
	)`, quote(string(coll)))
	if err := tx.Exec(ddl).Error; err != nil {
		return fmt.Errorf("create collection %s: %w", coll, err)
	}
	ix := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(updated_at)",
		quote(fmt.Sprintf("idx_%s_updatedAt", coll)), quote(string(coll)))
	if err := tx.Exec(ix).Error; err != nil {
		return fmt.Errorf("create updatedAt index on %s: %w", coll, err)
	}

	if existing == 0 {
		logger.Info("collection created", zap.String("collection", string(coll)))
	}
	return nil
}

func ensureIndexes(tx *gorm.DB, version int) error {
	for _, ix := range indexes {
		if ix.since != version {
			continue
		}
		ddl := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s)",
			quote(fmt.Sprintf("idx_%s_%s", ix.coll, ix.field)), quote(string(ix.coll)), jsonExpr(ix.field))
		if err := tx.Exec(ddl).Error; err != nil {
			return fmt.Errorf("create index %s.%s: %w", ix.coll, ix.field, err)
		}
	}
	return nil
}

func readVersion(db *gorm.DB) (int, error) {
	var v int
	if err := db.Raw("PRAGMA user_version").Scan(&v).Error; err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// upgrade runs every step between old and target, then seeds a brand new
// store. The caller wraps it in one transaction with the version bump.
func upgrade(tx *gorm.DB, old, target int, seed bool, now time.Time, logger *zap.Logger) error {
	logger.Info("upgrading store schema", zap.Int("from", old), zap.Int("to", target))

	for _, m := range migrations {
		if m.version <= old || m.version > target {
			continue
		}
		if err := m.apply(tx, logger); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		logger.Debug("migration applied", zap.Int("version", m.version), zap.String("name", m.name))
	}

	if old == 0 && seed {
		if err := seedDemoData(tx, now); err != nil {
			return err
		}
		logger.Info("demo data seeded")
	}

	if err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", target)).Error; err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}
	return nil
}

func seedDemoData(tx *gorm.DB, now time.Time) error {
	ts := domain.Timestamp(now)
	seed := map[domain.Collection][]domain.Record{
		domain.CollAccounts: {
			{"name": "Bank Account", "type": domain.AccountBank, "balance": 1000.0, "currency": "USD"},
			{"name": "Wallet", "type": domain.AccountCash, "balance": 200.0, "currency": "USD"},
		},
		domain.CollCategories: {
			{"name": "Salary", "type": domain.TypeIncome},
			{"name": "Freelance", "type": domain.TypeIncome},
			{"name": "Groceries", "type": domain.TypeExpense},
			{"name": "Rent", "type": domain.TypeExpense},
			{"name": "Utilities", "type": domain.TypeExpense},
		},
	}
	for _, coll := range []domain.Collection{domain.CollAccounts, domain.CollCategories} {
		for _, rec := range seed[coll] {
			rec["id"] = domain.NewID()
			rec["createdAt"] = ts
			rec["updatedAt"] = ts
			r, err := newRow(rec)
			if err != nil {
				return err
			}
			if err := tx.Table(string(coll)).Create(&r).Error; err != nil {
				return fmt.Errorf("seed %s: %w", coll, err)
			}
		}
	}
	return nil
}
