package errors

import "errors"

var (
	ErrNotFound = errors.New("passcode record not found")

	ErrAlreadyConsumed = errors.New("passcode already consumed")

	ErrNotVerified = errors.New("identity has no verified passcode")
)
