// Package common defines shared constants and sentinel errors used across
// the service layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Generic service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// User state.
	ErrUserDisabled = errors.New("user disabled")

	// Challenge ledger lifecycle.
	ErrChallengeNotFound    = errors.New("challenge not found")
	ErrChallengeExpired     = errors.New("challenge expired")
	ErrChallengeAlreadyUsed = errors.New("challenge already used")

	// Ceremony verification. ErrVerificationFailed is deliberately generic:
	// the caller must not be able to distinguish a wrong credential from a
	// bad signature.
	ErrVerificationFailed    = errors.New("verification failed")
	ErrCredentialNotFound    = errors.New("credential not found")
	ErrPossibleCloneDetected = errors.New("possible cloned authenticator detected")

	// Session lifecycle.
	ErrSessionExpired = errors.New("session expired")
	ErrSessionRevoked = errors.New("session revoked")
	ErrNoSession      = errors.New("no session")

	// Enrollment tokens.
	ErrEnrollmentTokenInvalid = errors.New("enrollment token invalid")
)
