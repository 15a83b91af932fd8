package ohci

import "errors"

// Errors for controller operations
var (
	ErrNotInitialized     = errors.New("controller is not initialized")
	ErrAlreadyInitialized = errors.New("controller initialization already attempted")
	ErrClosed             = errors.New("controller is closed")
)
