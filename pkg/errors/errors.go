package errors

import (
	"errors"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrDuplicateEmail       = errors.New("email already registered")
	ErrUserNotFound         = errors.New("user not found")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrLoginSuperseded      = errors.New("login superseded by a newer attempt")
	ErrStorage              = errors.New("storage failure")
	ErrInvalidSnapshot      = errors.New("invalid snapshot")
	ErrRateUnavailable      = errors.New("exchange rate unavailable")
	ErrClosed               = errors.New("state container closed")
	ErrKeyNotFound          = errors.New("key not found")
	ErrSnapshotNotFound     = errors.New("snapshot not found")
)
