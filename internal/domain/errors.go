package domain

import (
	"errors"
)

// Application errors
var (
	// ErrInvalidInput неверные входные данные
	ErrInvalidInput = errors.New("invalid input data")

	// ErrWebhookSecretMissing секрет вебхука не настроен
	ErrWebhookSecretMissing = errors.New("webhook secret not configured")

	// ErrSignatureInvalid подпись вебхука отсутствует или неверна
	ErrSignatureInvalid = errors.New("invalid webhook signature")
)
