package service

import (
	"context"

	"github.com/boddenberg/budget-tracker-go/internal/domain"
	"github.com/boddenberg/budget-tracker-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

func cat(id, name, typ, icon, parent string) domain.Category {
	return domain.Category{Meta: domain.Meta{ID: id}, Name: name, Type: typ, Icon: icon, ParentID: parent}
}

// defaultCategories is the starter category tree. Parents come before their
// children.
var defaultCategories = []domain.Category{
	cat("inc_salary", "Salary", domain.TypeIncome, "💵", ""),
	cat("inc_freelance", "Freelance", domain.TypeIncome, "💻", ""),
	cat("inc_investments", "Investments", domain.TypeIncome, "📈", ""),
	cat("inc_other", "Other Income", domain.TypeIncome, "💰", ""),

	cat("exp_housing", "Housing", domain.TypeExpense, "🏠", ""),
	cat("exp_transport", "Transportation", domain.TypeExpense, "🚗", ""),
	cat("exp_food", "Food & Dining", domain.TypeExpense, "🍽️", ""),
	cat("exp_utilities", "Utilities", domain.TypeExpense, "💡", ""),
	cat("exp_health", "Health & Medical", domain.TypeExpense, "⚕️", ""),
	cat("exp_entertainment", "Entertainment", domain.TypeExpense, "🎬", ""),
	cat("exp_shopping", "Shopping", domain.TypeExpense, "🛍️", ""),
	cat("exp_other", "Other Expenses", domain.TypeExpense, "💼", ""),

	cat("exp_housing_rent", "Rent", domain.TypeExpense, "🏠", "exp_housing"),
	cat("exp_housing_mortgage", "Mortgage", domain.TypeExpense, "🏦", "exp_housing"),
	cat("exp_transport_fuel", "Fuel", domain.TypeExpense, "⛽", "exp_transport"),
	cat("exp_transport_insurance", "Car Insurance", domain.TypeExpense, "🚗", "exp_transport"),
	cat("exp_food_groceries", "Groceries", domain.TypeExpense, "🛒", "exp_food"),
	cat("exp_food_restaurants", "Restaurants", domain.TypeExpense, "🍕", "exp_food"),
}

// AddCategory stores a new category. Categories nest one level deep: a
// parent must exist and must not have a parent itself.
func (l *Ledger) AddCategory(ctx context.Context, rec domain.Record) (domain.Record, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.AddCategory")
	defer span.End()

	return l.writeCategory(ctx, rec, addRecord)
}

// UpdateCategory replaces a category under the same nesting rule. A category
// with subcategories cannot be moved under another one.
func (l *Ledger) UpdateCategory(ctx context.Context, rec domain.Record) (domain.Record, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.UpdateCategory")
	defer span.End()
	span.SetAttributes(attribute.String("category.id", rec.ID()))

	return l.writeCategory(ctx, rec, updateRecord)
}

func (l *Ledger) writeCategory(ctx context.Context, rec domain.Record, write recordWrite) (domain.Record, error) {
	c, err := domain.Decode[domain.Category](rec)
	if err != nil {
		return nil, &domain.ErrValidation{Field: "category", Message: err.Error()}
	}
	if c.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "required"}
	}
	if c.Type != domain.TypeIncome && c.Type != domain.TypeExpense {
		return nil, &domain.ErrValidation{Field: "type", Message: "must be income or expense"}
	}

	var out domain.Record
	err = l.store.InTx(ctx, func(tx port.RecordTx) error {
		if err := checkNesting(ctx, tx, rec.ID(), c.ParentID); err != nil {
			return err
		}
		var err error
		out, err = write(ctx, tx, domain.CollCategories, rec)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("category saved",
		zap.String("category_id", out.ID()),
		zap.String("parent_id", c.ParentID),
	)
	return out, nil
}

// checkNesting rejects a parent that is missing, is the category itself, or
// is a subcategory, and rejects nesting a category that has subcategories.
func checkNesting(ctx context.Context, tx port.RecordTx, id, parentID string) error {
	if parentID == "" {
		return nil
	}
	if parentID == id {
		return &domain.ErrValidation{Field: "parentId", Message: "category cannot be its own parent"}
	}
	parent, _, err := load[domain.Category](ctx, tx, domain.CollCategories, parentID)
	if isNotFound(err) {
		return &domain.ErrValidation{Field: "parentId", Message: "parent category does not exist"}
	}
	if err != nil {
		return err
	}
	if parent.ParentID != "" {
		return &domain.ErrValidation{Field: "parentId", Message: "categories nest one level deep"}
	}
	if id == "" {
		return nil
	}
	children, err := tx.FindBy(ctx, domain.CollCategories, "parentId", id)
	if err != nil {
		return err
	}
	if len(children) > 0 {
		return &domain.ErrValidation{Field: "parentId", Message: "a category with subcategories cannot be nested"}
	}
	return nil
}

// DeleteCategory removes a category and its subcategories and returns how
// many records were deleted.
func (l *Ledger) DeleteCategory(ctx context.Context, id string) (int, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.DeleteCategory")
	defer span.End()
	span.SetAttributes(attribute.String("category.id", id))

	deleted := 0
	err := l.store.InTx(ctx, func(tx port.RecordTx) error {
		deleted = 0
		if _, err := tx.Get(ctx, domain.CollCategories, id); err != nil {
			return err
		}
		children, err := tx.FindBy(ctx, domain.CollCategories, "parentId", id)
		if err != nil {
			return err
		}
		for _, child := range children {
			if err := tx.Delete(ctx, domain.CollCategories, child.ID()); err != nil {
				return err
			}
			deleted++
		}
		if err := tx.Delete(ctx, domain.CollCategories, id); err != nil {
			return err
		}
		deleted++
		return nil
	})
	if err != nil {
		return 0, err
	}

	l.logger.Info("category deleted", zap.String("category_id", id), zap.Int("deleted", deleted))
	return deleted, nil
}

// SeedDefaultCategories adds the default categories whose ids are missing
// and returns how many were added.
func (l *Ledger) SeedDefaultCategories(ctx context.Context) (int, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.SeedDefaultCategories")
	defer span.End()

	added := 0
	err := l.store.InTx(ctx, func(tx port.RecordTx) error {
		added = 0
		for _, c := range defaultCategories {
			_, err := tx.Get(ctx, domain.CollCategories, c.ID)
			if err == nil {
				continue
			}
			if !isNotFound(err) {
				return err
			}
			if _, err := insert(ctx, tx, domain.CollCategories, c); err != nil {
				return err
			}
			added++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	l.logger.Info("default categories seeded", zap.Int("added", added))
	return added, nil
}
