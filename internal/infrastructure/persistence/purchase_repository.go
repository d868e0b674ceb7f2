package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/govcon/backend/internal/domain/catalog"
	"github.com/govcon/backend/internal/domain/entitlement"
	"github.com/govcon/backend/internal/domain/shared"
	"github.com/govcon/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPurchaseRepository implements entitlement.PurchaseRepository using GORM
type GormPurchaseRepository struct {
	db *gorm.DB
}

// NewGormPurchaseRepository creates a new GormPurchaseRepository
func NewGormPurchaseRepository(db *gorm.DB) *GormPurchaseRepository {
	return &GormPurchaseRepository{db: db}
}

// Insert records a purchase. The order_id unique index is the durable
// idempotency guard; a conflicting insert affects zero rows and surfaces as
// shared.ErrDuplicateOrder.
func (r *GormPurchaseRepository) Insert(ctx context.Context, p *entitlement.Purchase) error {
	model := models.PurchaseModelFromDomain(p)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			DoNothing: true,
		}).
		Create(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrDuplicateOrder
	}
	return nil
}

// FindByOrderID returns the purchase for an order ID, or shared.ErrNotFound
func (r *GormPurchaseRepository) FindByOrderID(ctx context.Context, orderID string) (*entitlement.Purchase, error) {
	var model models.PurchaseModel
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByEmail returns purchases for a normalized email, optionally filtered
// by status
func (r *GormPurchaseRepository) FindByEmail(ctx context.Context, email string, status entitlement.PurchaseStatus) ([]entitlement.Purchase, error) {
	query := r.db.WithContext(ctx).
		Where("user_email = ?", entitlement.NormalizeEmail(email))
	if status != "" {
		query = query.Where("status = ?", string(status))
	}

	var rows []models.PurchaseModel
	if err := query.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainPurchases(rows), nil
}

// MarkRefunded flips status to refunded on the row matching both order ID
// and email. Profile flags and cache entries are not touched.
func (r *GormPurchaseRepository) MarkRefunded(ctx context.Context, orderID, email string) error {
	result := r.db.WithContext(ctx).
		Model(&models.PurchaseModel{}).
		Where("order_id = ? AND user_email = ?", orderID, entitlement.NormalizeEmail(email)).
		Updates(map[string]any{
			"status":     string(entitlement.PurchaseRefunded),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindAll enumerates the whole ledger
func (r *GormPurchaseRepository) FindAll(ctx context.Context) ([]entitlement.Purchase, error) {
	var rows []models.PurchaseModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainPurchases(rows), nil
}

// FindSince returns rows created at or after since, newest first
func (r *GormPurchaseRepository) FindSince(ctx context.Context, since time.Time) ([]entitlement.Purchase, error) {
	var rows []models.PurchaseModel
	err := r.db.WithContext(ctx).
		Where("created_at >= ?", since).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomainPurchases(rows), nil
}

// FindByProductID returns rows recorded under the given raw product id
func (r *GormPurchaseRepository) FindByProductID(ctx context.Context, productID string) ([]entitlement.Purchase, error) {
	var rows []models.PurchaseModel
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomainPurchases(rows), nil
}

// ReassignProduct rewrites a row's product id and denormalized name
func (r *GormPurchaseRepository) ReassignProduct(ctx context.Context, id uuid.UUID, productID catalog.ProductID, productName string) error {
	result := r.db.WithContext(ctx).
		Model(&models.PurchaseModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"product_id":   string(productID),
			"product_name": productName,
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteByIDs removes rows by primary key and returns the count deleted
func (r *GormPurchaseRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&models.PurchaseModel{})
	return result.RowsAffected, result.Error
}

func toDomainPurchases(rows []models.PurchaseModel) []entitlement.Purchase {
	purchases := make([]entitlement.Purchase, len(rows))
	for i := range rows {
		purchases[i] = *rows[i].ToDomain()
	}
	return purchases
}

// Ensure GormPurchaseRepository implements the repository port
var _ entitlement.PurchaseRepository = (*GormPurchaseRepository)(nil)
