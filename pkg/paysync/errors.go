package paysync

import "errors"

var (
	// ErrCustomerNotFound is returned when a customer row does not exist
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrSubscriptionNotFound is returned when a subscription row does not exist
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrTransactionNotFound is returned when a transaction row does not exist
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrInvalidEntity is returned when an entity is missing its provider ID
	ErrInvalidEntity = errors.New("invalid entity")
)
