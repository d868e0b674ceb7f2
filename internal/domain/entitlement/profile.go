package entitlement

import (
	"context"
	"crypto/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserProfile is the single merged view of one customer's access, keyed by
// unique normalized email. Created lazily on first grant; flags only ever
// move from false to true.
type UserProfile struct {
	ID         uuid.UUID
	Email      string
	Name       string
	LicenseKey string
	Flags      FlagSet
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HasFlag reports whether the profile carries the given access flag.
func (p *UserProfile) HasFlag(f AccessFlag) bool {
	return p.Flags[f]
}

// HasAnyFlag reports whether any access flag is set.
func (p *UserProfile) HasAnyFlag() bool {
	for _, f := range AllFlags {
		if p.Flags[f] {
			return true
		}
	}
	return false
}

const licenseKeyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewLicenseKey generates a license key of four 4-character uppercase
// alphanumeric segments, e.g. "AB12-CD34-EF56-GH78".
func NewLicenseKey() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is unrecoverable for key generation
		panic(err)
	}

	var b strings.Builder
	for i, c := range buf {
		if i > 0 && i%4 == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(licenseKeyAlphabet[int(c)%len(licenseKeyAlphabet)])
	}
	return b.String()
}

// ProfileRepository is the user profile flags store port.
type ProfileRepository interface {
	// GetOrCreate returns the profile for email, creating it with a fresh
	// license key and all flags false if absent.
	GetOrCreate(ctx context.Context, email, name string) (*UserProfile, error)

	// GetByEmail returns the profile, or shared.ErrNotFound.
	GetByEmail(ctx context.Context, email string) (*UserProfile, error)

	// SetFlags merges flags into the profile (only ever setting flags to
	// true) and returns the set actually applied.
	SetFlags(ctx context.Context, email string, flags FlagSet) (FlagSet, error)
}
