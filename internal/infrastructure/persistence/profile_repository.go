package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/govcon/backend/internal/domain/entitlement"
	"github.com/govcon/backend/internal/domain/shared"
	"github.com/govcon/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProfileRepository implements entitlement.ProfileRepository using GORM
type GormProfileRepository struct {
	db *gorm.DB
}

// NewGormProfileRepository creates a new GormProfileRepository
func NewGormProfileRepository(db *gorm.DB) *GormProfileRepository {
	return &GormProfileRepository{db: db}
}

// GetOrCreate returns the profile for email, creating it with a fresh
// license key and all flags false if absent. Concurrent creation races are
// resolved by the unique email index: a losing insert affects zero rows and
// falls back to a re-fetch.
func (r *GormProfileRepository) GetOrCreate(ctx context.Context, email, name string) (*entitlement.UserProfile, error) {
	normalized := entitlement.NormalizeEmail(email)

	profile, err := r.GetByEmail(ctx, normalized)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	model := &models.UserProfileModel{
		ID:         uuid.New(),
		Email:      normalized,
		Name:       name,
		LicenseKey: entitlement.NewLicenseKey(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoNothing: true,
		}).
		Create(model)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		// Lost the race: another request created the profile first
		return r.GetByEmail(ctx, normalized)
	}
	return model.ToDomain(), nil
}

// GetByEmail returns the profile for email, or shared.ErrNotFound
func (r *GormProfileRepository) GetByEmail(ctx context.Context, email string) (*entitlement.UserProfile, error) {
	var model models.UserProfileModel
	err := r.db.WithContext(ctx).
		Where("email = ?", entitlement.NormalizeEmail(email)).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// SetFlags merges flags into the profile row. Only true values are written,
// so flags monotonically move from false to true and concurrent grants for
// the same email are safe in any order.
func (r *GormProfileRepository) SetFlags(ctx context.Context, email string, flags entitlement.FlagSet) (entitlement.FlagSet, error) {
	updates := map[string]any{}
	applied := entitlement.FlagSet{}
	for flag, set := range flags {
		if !set {
			continue
		}
		column, ok := models.FlagColumn[flag]
		if !ok {
			continue
		}
		updates[column] = true
		applied[flag] = true
	}
	if len(updates) == 0 {
		return applied, nil
	}
	updates["updated_at"] = time.Now()

	result := r.db.WithContext(ctx).
		Model(&models.UserProfileModel{}).
		Where("email = ?", entitlement.NormalizeEmail(email)).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, shared.ErrNotFound
	}
	return applied, nil
}

// Ensure GormProfileRepository implements the repository port
var _ entitlement.ProfileRepository = (*GormProfileRepository)(nil)
