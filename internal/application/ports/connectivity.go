package ports

// ConnectivityPort tracks online/offline state and notifies on transitions.
//
// Callbacks fire on transition only; there is no event for "still online".
// An online transition must trigger the sync engine's replay exactly once
// per transition, with near-simultaneous signals coalesced, and replay runs
// serialized (never overlapping).
type ConnectivityPort interface {
	// IsOnline returns the current connectivity state.
	IsOnline() bool

	// OnOnline registers a callback invoked after each offline-to-online
	// transition. Callbacks run serialized in registration order.
	OnOnline(fn func())

	// OnOffline registers a callback invoked after each online-to-offline
	// transition.
	OnOffline(fn func())
}
