package shared

// EventGuard suppresses reprocessing of provider events that were already
// handled by this process. It is a best-effort fast path: the store loses its
// memory on restart, so callers must still rely on the purchase ledger's
// order-ID check as the authoritative duplicate detector.
type EventGuard interface {
	// MarkSeen records the event ID and reports whether it was newly seen.
	// A false return means the event was already processed.
	MarkSeen(eventID string) bool

	// Forget drops the event ID so a retried delivery is processed again.
	// Called when handling failed after the ID was marked.
	Forget(eventID string)
}
