package store

import "errors"

var (
	ErrItemNotFound        = errors.New("item not found")
	ErrAccountNotResolved  = errors.New("provider account not resolved")
	ErrTransactionNotFound = errors.New("transaction not found")
)
