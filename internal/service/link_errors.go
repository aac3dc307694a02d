package service

import "errors"

// Flow specific errors used by handlers for stable error_type mapping.
// Conflict, unknown-account and invalid-token conditions stay distinct here
// for observability; handlers collapse them where a distinct response would
// let a caller enumerate registered emails.
var (
	ErrExchangeFailed        = errors.New("exchange_failed")
	ErrInconsistentSession   = errors.New("inconsistent_session")
	ErrMalformedToken        = errors.New("malformed_token")
	ErrInvalidOrExpiredToken = errors.New("invalid_or_expired_token")
	ErrUnknownAccount        = errors.New("unknown_account")
	ErrTokenExpired          = errors.New("token_expired")
)
