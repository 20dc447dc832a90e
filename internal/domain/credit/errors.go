package credit

import "errors"

var (
	// ErrTransactionNotFound is returned when no transaction matches a lookup
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrDuplicateSettlementKey is returned when the (session, payment intent)
	// pair is already recorded
	ErrDuplicateSettlementKey = errors.New("settlement key already recorded")

	// ErrAmbiguousPaymentIntent is returned when a payment intent matches more
	// than one transaction
	ErrAmbiguousPaymentIntent = errors.New("payment intent matches more than one transaction")

	// ErrInvalidStatus is returned for a status outside the internal vocabulary
	ErrInvalidStatus = errors.New("invalid payment status")

	ErrInternal = errors.New("internal error")
)
