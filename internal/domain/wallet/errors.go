package wallet

import "errors"

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
)
