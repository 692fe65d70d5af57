package store

import "errors"

var (
	// ErrNotFound is returned when the referenced user identifier does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrConnection wraps every failure to establish the store connection.
	ErrConnection = errors.New("store connection failed")
	// ErrAlreadyConnecting is returned when Connect is called more than once on a Connector.
	ErrAlreadyConnecting = errors.New("store connection already attempted")
	// ErrInvalidUser is wrapped by *ValidationError.
	ErrInvalidUser = errors.New("invalid user")
)
