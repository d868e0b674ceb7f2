// Package entitlement holds the core domain model for product access:
// the purchase ledger, per-user profile flags, the fast-access cache port,
// and the authoritative product-to-flag and product-to-cache-key tables.
//
// One real-world entitlement is represented redundantly in up to three
// stores. There is no referential enforcement between them; the grant flow
// writes all three and the admin reconciliation tools repair drift.
package entitlement

import "strings"

// NormalizeEmail lowercases and trims an email address. Every read or write
// against any of the three stores goes through this first.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
