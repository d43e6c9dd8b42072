package core

import "errors"

var (
	// ErrStopped unwinds a bot's run loop after a stop request. It is the only
	// clean way for Run to end and is never a fault.
	ErrStopped = errors.New("bot stopped")
	// ErrUpdateRequiresID is returned when an update is issued without an id.
	ErrUpdateRequiresID = errors.New("core: update requires an id variable")
	// ErrImplicitUser is returned when a caller supplies the user variable
	// that the runtime injects (create/delete) or forbids (update).
	ErrImplicitUser = errors.New("core: user variable is implicit")
	// ErrUnknownResource is returned when a bot asks for a resource it was not
	// wired with.
	ErrUnknownResource = errors.New("core: unknown resource")
	// ErrUnknownClass is returned when no bot class is registered under a name.
	ErrUnknownClass = errors.New("core: unknown bot class")
)
