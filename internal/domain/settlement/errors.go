package settlement

import (
	"errors"
	"sort"
	"strings"

	"github.com/greenledger/credit-ledger/internal/domain/credit"
	"github.com/greenledger/credit-ledger/internal/domain/project"
	"github.com/greenledger/credit-ledger/internal/domain/user"
)

var (
	// ErrMissingSettlementData is returned when credits, amount or the
	// settlement key are absent or unparseable
	ErrMissingSettlementData = errors.New("missing settlement data")

	ErrBuyerNotFound         = user.ErrUserNotFound
	ErrProjectNotFound       = project.ErrProjectNotFound
	ErrInsufficientInventory = project.ErrInsufficientInventory
	ErrTransactionNotFound   = credit.ErrTransactionNotFound
	ErrInvalidStatus         = credit.ErrInvalidStatus

	// ErrDuplicateSettlement marks the idempotency short-circuit. Settle
	// reports it as Result.Duplicate, never as an error.
	ErrDuplicateSettlement = errors.New("settlement already recorded")

	// ErrReversalExceedsBalance is returned when the buyer has already used
	// credits a refund would take back
	ErrReversalExceedsBalance = errors.New("reversal exceeds wallet balance")
)

// FieldError lists the settlement fields that failed validation.
type FieldError struct {
	Fields map[string]string
}

func (e *FieldError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return ErrMissingSettlementData.Error() + ": " + strings.Join(names, ", ")
}

func (e *FieldError) Unwrap() error {
	return ErrMissingSettlementData
}
