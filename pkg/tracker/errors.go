package tracker

import "errors"

var (
	// ErrInvalidArgument covers a malformed token or config, a blank page
	// name and a blank explicit session id
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotInitialized is returned by every operation outside the
	// Initialized state
	ErrNotInitialized = errors.New("tracker is not initialized")
	// ErrAlreadyInitialized is returned by a second Initialize without an
	// intervening Destroy
	ErrAlreadyInitialized = errors.New("tracker is already initialized")
	// ErrDeliveryFailed wraps collector failures. TrackPage never returns it;
	// only Flush does.
	ErrDeliveryFailed = errors.New("delivery failed")
)
