package entitlement

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/govcon/backend/internal/domain/catalog"
	"github.com/govcon/backend/internal/domain/entitlement"
	"github.com/govcon/backend/internal/domain/shared"
)

// fakePurchaseRepo is an in-memory ledger keyed by order ID
type fakePurchaseRepo struct {
	mu   sync.Mutex
	rows map[string]*entitlement.Purchase
}

func newFakePurchaseRepo() *fakePurchaseRepo {
	return &fakePurchaseRepo{rows: map[string]*entitlement.Purchase{}}
}

func (r *fakePurchaseRepo) Insert(_ context.Context, p *entitlement.Purchase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[p.OrderID]; ok {
		return shared.ErrDuplicateOrder
	}
	cp := *p
	r.rows[p.OrderID] = &cp
	return nil
}

func (r *fakePurchaseRepo) FindByOrderID(_ context.Context, orderID string) (*entitlement.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.rows[orderID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, shared.ErrNotFound
}

func (r *fakePurchaseRepo) FindByEmail(_ context.Context, email string, status entitlement.PurchaseStatus) ([]entitlement.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entitlement.Purchase
	for _, p := range r.rows {
		if p.UserEmail != entitlement.NormalizeEmail(email) {
			continue
		}
		if status != "" && p.Status != status {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (r *fakePurchaseRepo) MarkRefunded(_ context.Context, orderID, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[orderID]
	if !ok || p.UserEmail != entitlement.NormalizeEmail(email) {
		return shared.ErrNotFound
	}
	p.Status = entitlement.PurchaseRefunded
	p.UpdatedAt = time.Now()
	return nil
}

func (r *fakePurchaseRepo) FindAll(_ context.Context) ([]entitlement.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entitlement.Purchase, 0, len(r.rows))
	for _, p := range r.rows {
		out = append(out, *p)
	}
	return out, nil
}

func (r *fakePurchaseRepo) FindSince(_ context.Context, since time.Time) ([]entitlement.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entitlement.Purchase
	for _, p := range r.rows {
		if !p.CreatedAt.Before(since) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakePurchaseRepo) FindByProductID(_ context.Context, productID string) ([]entitlement.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entitlement.Purchase
	for _, p := range r.rows {
		if string(p.ProductID) == productID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakePurchaseRepo) ReassignProduct(_ context.Context, id uuid.UUID, productID catalog.ProductID, productName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.rows {
		if p.ID == id {
			p.ProductID = productID
			p.ProductName = productName
			return nil
		}
	}
	return shared.ErrNotFound
}

func (r *fakePurchaseRepo) DeleteByIDs(_ context.Context, ids []uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range ids {
		for key, p := range r.rows {
			if p.ID == id {
				delete(r.rows, key)
				n++
			}
		}
	}
	return n, nil
}

// fakeProfileRepo is an in-memory profile store keyed by normalized email
type fakeProfileRepo struct {
	mu       sync.Mutex
	profiles map[string]*entitlement.UserProfile
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{profiles: map[string]*entitlement.UserProfile{}}
}

func (r *fakeProfileRepo) GetOrCreate(_ context.Context, email, name string) (*entitlement.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := entitlement.NormalizeEmail(email)
	if p, ok := r.profiles[key]; ok {
		cp := *p
		return &cp, nil
	}
	p := &entitlement.UserProfile{
		ID:         uuid.New(),
		Email:      key,
		Name:       name,
		LicenseKey: entitlement.NewLicenseKey(),
		Flags:      entitlement.FlagSet{},
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	r.profiles[key] = p
	cp := *p
	return &cp, nil
}

func (r *fakeProfileRepo) GetByEmail(_ context.Context, email string) (*entitlement.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.profiles[entitlement.NormalizeEmail(email)]; ok {
		cp := *p
		cp.Flags = entitlement.FlagSet{}
		cp.Flags.Add(p.Flags)
		return &cp, nil
	}
	return nil, shared.ErrNotFound
}

func (r *fakeProfileRepo) SetFlags(_ context.Context, email string, flags entitlement.FlagSet) (entitlement.FlagSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[entitlement.NormalizeEmail(email)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	p.Flags.Add(flags)
	p.UpdatedAt = time.Now()
	return flags, nil
}

var (
	_ entitlement.PurchaseRepository = (*fakePurchaseRepo)(nil)
	_ entitlement.ProfileRepository  = (*fakeProfileRepo)(nil)
)
