package core

import "errors"

// Common errors.
var (
	ErrNotFound          = errors.New("entity not found")
	ErrArgumentNull      = errors.New("required argument is nil")
	ErrDuplicateTracking = errors.New("another instance with the same key is already tracked")
	ErrAlreadyTracked    = errors.New("entity is already tracked")
	ErrConcurrency       = errors.New("no rows affected")
	ErrDuplicateKey      = errors.New("duplicate key")
	ErrMissingKey        = errors.New("entity has no key")
	ErrNotDisableable    = errors.New("entity does not support disabling")
	ErrUnknownColumn     = errors.New("unknown column")
	ErrNotRegistered     = errors.New("no repository registered")
	ErrReadOnly          = errors.New("repository is in read-only mode")
	ErrClosed            = errors.New("persistence context is closed")
	ErrTransactionOpen   = errors.New("transaction already open")
)
