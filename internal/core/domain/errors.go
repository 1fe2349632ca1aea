package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrInvalidProvider indicates an unknown AI provider was specified
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrProviderNotConfigured indicates provider credentials or model are missing.
	// Operations fail synchronously with this error and are never retried.
	ErrProviderNotConfigured = errors.New("provider not configured")

	// ErrServiceUnavailable indicates the AI service could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrUnknownEvent indicates a lifecycle event name this service does not handle
	ErrUnknownEvent = errors.New("unknown lifecycle event")

	// ErrStreamAborted indicates a chat stream ended before the provider finished
	ErrStreamAborted = errors.New("stream aborted")
)
