package credit

import "strings"

// Status is the internal payment status of a transaction.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRefunded   Status = "refunded"
	StatusExpired    Status = "expired"
)

// Statuses lists every internal status. No transition table is enforced:
// the reconciler may move any status to any other.
var Statuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusRefunded,
	StatusExpired,
}

// MapPaymentStatus maps the payment processor's checkout vocabulary onto the
// internal status. Unknown codes stay pending; a transaction is never marked
// completed on a code we do not recognise.
func MapPaymentStatus(external string) Status {
	switch strings.ToLower(strings.TrimSpace(external)) {
	case "paid", "no_payment_required":
		return StatusCompleted
	case "unpaid":
		return StatusPending
	default:
		return StatusPending
	}
}

// ParseStatus accepts only internal status names.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if s.Valid() {
		return s, nil
	}
	return "", ErrInvalidStatus
}

// Valid reports whether s is one of the internal statuses.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Reverses reports whether moving into s undoes the settlement's inventory
// and wallet effects.
func (s Status) Reverses() bool {
	return s == StatusRefunded || s == StatusExpired
}
