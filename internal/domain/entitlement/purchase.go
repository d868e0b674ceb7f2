package entitlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/govcon/backend/internal/domain/catalog"
)

// PurchaseStatus is the lifecycle state of a ledger row.
type PurchaseStatus string

const (
	PurchaseCompleted PurchaseStatus = "completed"
	PurchaseRefunded  PurchaseStatus = "refunded"
)

// Purchase is one completed transaction in the relational ledger. OrderID is
// the provider transaction/session identifier and serves as the idempotency
// key for this store. ProductName is denormalized at write time and may
// drift from the catalog.
type Purchase struct {
	ID          uuid.UUID
	UserEmail   string
	ProductID   catalog.ProductID
	ProductName string
	OrderID     string
	AmountPaid  int64 // minor currency units
	Status      PurchaseStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewPurchase builds a completed ledger row with a normalized email.
func NewPurchase(email string, productID catalog.ProductID, productName, orderID string, amountPaid int64) *Purchase {
	now := time.Now()
	return &Purchase{
		ID:          uuid.New(),
		UserEmail:   NormalizeEmail(email),
		ProductID:   productID,
		ProductName: productName,
		OrderID:     orderID,
		AmountPaid:  amountPaid,
		Status:      PurchaseCompleted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// PurchaseRepository is the relational purchase ledger port.
type PurchaseRepository interface {
	// Insert records a purchase, returning shared.ErrDuplicateOrder if a row
	// with the same order ID already exists.
	Insert(ctx context.Context, p *Purchase) error

	// FindByOrderID returns the row for an order, or shared.ErrNotFound.
	FindByOrderID(ctx context.Context, orderID string) (*Purchase, error)

	// FindByEmail returns all rows for a normalized email, optionally
	// filtered by status (empty status means all).
	FindByEmail(ctx context.Context, email string, status PurchaseStatus) ([]Purchase, error)

	// MarkRefunded flips status on the row matching both orderID and email.
	MarkRefunded(ctx context.Context, orderID, email string) error

	// FindAll enumerates the whole ledger (admin tooling).
	FindAll(ctx context.Context) ([]Purchase, error)

	// FindSince returns rows created at or after since, newest first.
	FindSince(ctx context.Context, since time.Time) ([]Purchase, error)

	// FindByProductID returns rows recorded under the given raw product id,
	// including unresolved provider identifiers (legacy cleanup).
	FindByProductID(ctx context.Context, productID string) ([]Purchase, error)

	// ReassignProduct rewrites a row's product id and name (legacy fixes).
	ReassignProduct(ctx context.Context, id uuid.UUID, productID catalog.ProductID, productName string) error

	// DeleteByIDs removes rows by primary key and returns the count deleted.
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)
}
