// internal/service/errors.go
package service

import "errors"

var (
	// ErrValidation covers bad caller input: non-positive amount,
	// disallowed currency, missing fields.
	ErrValidation = errors.New("validation failed")

	// ErrPaymentNotFound is returned for unknown or foreign payment ids.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrInvalidSignature means a webhook carried a signature that does
	// not verify against the owning bot's secret.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrBotExists means a bot with the same name or token is already
	// registered.
	ErrBotExists = errors.New("bot already exists")

	// ErrBotNotFound is returned for unknown bot ids.
	ErrBotNotFound = errors.New("bot not found")
)
