package sessionmap

import "errors"

var (
	// ErrStoreUnavailable marks a store that exists but cannot be read.
	// Callers degrade to their last successfully loaded map.
	ErrStoreUnavailable = errors.New("session map unavailable")

	// ErrStoreCorrupt marks a store whose contents do not parse. Callers
	// treat the map as empty; the condition is logged loudly, never fatal.
	ErrStoreCorrupt = errors.New("session map corrupt")
)
