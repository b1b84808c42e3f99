package core

import "errors"

// Sentinel errors shared across packages. Typed wrappers carrying more
// context live next to the component that produces them (capability.Error,
// provider.Error); they all unwrap to one of these so callers can classify
// failures with errors.Is at decision points.
var (
	// ErrStoreUnavailable indicates the backing persistence cannot be
	// reached. Fatal to the request: the loop cannot safely continue
	// without durable history.
	ErrStoreUnavailable = errors.New("conversation store unavailable")

	// ErrUnknownCapability indicates a dispatch for a name that was never
	// registered.
	ErrUnknownCapability = errors.New("unknown capability")

	// ErrLoopBudgetExceeded indicates the agent loop hit its round budget
	// and forcibly finalized. Never shown to the user as an error.
	ErrLoopBudgetExceeded = errors.New("tool-call round budget exceeded")
)
