package models

import "errors"

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrBalanceConflict     = errors.New("balance changed concurrently")
	ErrNegativeBalance     = errors.New("balance cannot be negative")
	ErrDuplicateUsername   = errors.New("username already taken")
	ErrDuplicateCNIC       = errors.New("CNIC already registered")
	ErrDuplicateAccount    = errors.New("account number already exists")
	ErrDuplicateRequest    = errors.New("request id already recorded")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrUnknownCategory     = errors.New("unknown category")
)
