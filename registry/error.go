package registry

import "errors"

// Error definitions for the registry package.
var (
	ErrNotFound = errors.New("registry: model not found")
	ErrNotReady = errors.New("registry: model is not ready")
)
