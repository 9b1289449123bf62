package domain

import "errors"

var (
	ErrEmptyKey        = errors.New("key must not be empty")
	ErrKeyTooLong      = errors.New("key is too long")
	ErrKeyReservedChar = errors.New("key contains a reserved character")
)
