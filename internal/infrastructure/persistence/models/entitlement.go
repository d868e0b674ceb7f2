package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/govcon/backend/internal/domain/catalog"
	"github.com/govcon/backend/internal/domain/entitlement"
)

// PurchaseModel is the persistence model for the Purchase ledger row.
type PurchaseModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key"`
	UserEmail   string    `gorm:"type:varchar(255);not null;index"`
	ProductID   string    `gorm:"type:varchar(100);not null;index"`
	ProductName string    `gorm:"type:varchar(200);not null"`
	OrderID     string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_purchases_order_id"`
	AmountPaid  int64     `gorm:"not null;default:0"`
	Status      string    `gorm:"type:varchar(20);not null;default:'completed'"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PurchaseModel) TableName() string {
	return "purchases"
}

// ToDomain converts the persistence model to a domain Purchase
func (m *PurchaseModel) ToDomain() *entitlement.Purchase {
	return &entitlement.Purchase{
		ID:          m.ID,
		UserEmail:   m.UserEmail,
		ProductID:   catalog.ProductID(m.ProductID),
		ProductName: m.ProductName,
		OrderID:     m.OrderID,
		AmountPaid:  m.AmountPaid,
		Status:      entitlement.PurchaseStatus(m.Status),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// PurchaseModelFromDomain creates a persistence model from a domain Purchase
func PurchaseModelFromDomain(p *entitlement.Purchase) *PurchaseModel {
	return &PurchaseModel{
		ID:          p.ID,
		UserEmail:   p.UserEmail,
		ProductID:   string(p.ProductID),
		ProductName: p.ProductName,
		OrderID:     p.OrderID,
		AmountPaid:  p.AmountPaid,
		Status:      string(p.Status),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// UserProfileModel is the persistence model for the user profile flags row.
// The seven access columns are the only place the flag enumeration maps to
// storage; conversion goes through FlagColumns/SetFlagColumns so the mapping
// is not duplicated elsewhere.
type UserProfileModel struct {
	ID                     uuid.UUID `gorm:"type:uuid;primary_key"`
	Email                  string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_user_profiles_email"`
	Name                   string    `gorm:"type:varchar(200)"`
	LicenseKey             string    `gorm:"type:varchar(19);not null"`
	AccessHunterPro        bool      `gorm:"not null;default:false"`
	AccessContentStandard  bool      `gorm:"not null;default:false"`
	AccessContentFullFix   bool      `gorm:"not null;default:false"`
	AccessAssassinStandard bool      `gorm:"not null;default:false"`
	AccessAssassinPremium  bool      `gorm:"not null;default:false"`
	AccessRecompete        bool      `gorm:"not null;default:false"`
	AccessContractorDB     bool      `gorm:"not null;default:false"`
	CreatedAt              time.Time `gorm:"not null"`
	UpdatedAt              time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (UserProfileModel) TableName() string {
	return "user_profiles"
}

// FlagColumn maps each access flag to its column name.
var FlagColumn = map[entitlement.AccessFlag]string{
	entitlement.FlagHunterPro:        "access_hunter_pro",
	entitlement.FlagContentStandard:  "access_content_standard",
	entitlement.FlagContentFullFix:   "access_content_full_fix",
	entitlement.FlagAssassinStandard: "access_assassin_standard",
	entitlement.FlagAssassinPremium:  "access_assassin_premium",
	entitlement.FlagRecompete:        "access_recompete",
	entitlement.FlagContractorDB:     "access_contractor_db",
}

// Flags returns the model's set flags as a domain FlagSet
func (m *UserProfileModel) Flags() entitlement.FlagSet {
	flags := entitlement.FlagSet{}
	for flag, set := range map[entitlement.AccessFlag]bool{
		entitlement.FlagHunterPro:        m.AccessHunterPro,
		entitlement.FlagContentStandard:  m.AccessContentStandard,
		entitlement.FlagContentFullFix:   m.AccessContentFullFix,
		entitlement.FlagAssassinStandard: m.AccessAssassinStandard,
		entitlement.FlagAssassinPremium:  m.AccessAssassinPremium,
		entitlement.FlagRecompete:        m.AccessRecompete,
		entitlement.FlagContractorDB:     m.AccessContractorDB,
	} {
		if set {
			flags[flag] = true
		}
	}
	return flags
}

// ToDomain converts the persistence model to a domain UserProfile
func (m *UserProfileModel) ToDomain() *entitlement.UserProfile {
	return &entitlement.UserProfile{
		ID:         m.ID,
		Email:      m.Email,
		Name:       m.Name,
		LicenseKey: m.LicenseKey,
		Flags:      m.Flags(),
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

// UserProfileModelFromDomain creates a persistence model from a domain UserProfile
func UserProfileModelFromDomain(p *entitlement.UserProfile) *UserProfileModel {
	m := &UserProfileModel{
		ID:         p.ID,
		Email:      p.Email,
		Name:       p.Name,
		LicenseKey: p.LicenseKey,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
	m.AccessHunterPro = p.Flags[entitlement.FlagHunterPro]
	m.AccessContentStandard = p.Flags[entitlement.FlagContentStandard]
	m.AccessContentFullFix = p.Flags[entitlement.FlagContentFullFix]
	m.AccessAssassinStandard = p.Flags[entitlement.FlagAssassinStandard]
	m.AccessAssassinPremium = p.Flags[entitlement.FlagAssassinPremium]
	m.AccessRecompete = p.Flags[entitlement.FlagRecompete]
	m.AccessContractorDB = p.Flags[entitlement.FlagContractorDB]
	return m
}
