package project

import "errors"

var (
	ErrProjectNotFound       = errors.New("project not found")
	ErrInsufficientInventory = errors.New("insufficient project inventory")
	ErrInventoryUnderflow    = errors.New("project sold counter below restore amount")
	ErrInvalidCredits        = errors.New("credits must be greater than zero")
)
