package services

import "errors"

// Lifecycle failures. All of them are terminal for the caller: a link that
// returns one of these never becomes usable again for the failed operation.
var (
	// ErrLinkNotFound: no link exists for the given ID.
	ErrLinkNotFound = errors.New("link not found")
	// ErrNotReady: download attempted before any upload happened.
	ErrNotReady = errors.New("file not uploaded yet")
	// ErrAlreadyFulfilled: the single upload or download slot is spent.
	ErrAlreadyFulfilled = errors.New("link already used")
	// ErrLinkExpired: TTL elapsed, or the backing blob is gone.
	ErrLinkExpired = errors.New("link expired")
	// ErrInvalidState: operation attempted out of lifecycle order.
	ErrInvalidState = errors.New("link not available")
)
