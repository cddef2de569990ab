package accessory

import "errors"

var (
	ErrNotFound          = errors.New("accessory not found")
	ErrAlreadyOwned      = errors.New("accessory already owned")
	ErrNotOwned          = errors.New("accessory not owned")
	ErrInsufficientFunds = errors.New("insufficient points")
	ErrAuthRequired      = errors.New("authentication required")
)
