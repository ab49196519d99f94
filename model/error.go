package model

import "errors"

// Error definitions for the model package.
var (
	ErrNoAttention = errors.New("model: adapter does not expose attention weights")
	ErrNoGradients = errors.New("model: adapter does not expose gradient norms")
)
