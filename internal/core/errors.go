package core

import (
	"errors"
	"fmt"
)

// ErrInvalidToken is the sentinel matched by errors.Is for every InvalidTokenError.
var ErrInvalidToken = errors.New("invalid token")

// InvalidTokenError is returned for malformed input such as an empty token
// or a negative expires_in.
type InvalidTokenError struct {
	Reason string
}

func (e *InvalidTokenError) Error() string {
	return "invalid token: " + e.Reason
}

func (e *InvalidTokenError) Is(target error) bool {
	return target == ErrInvalidToken
}

// ExchangeError reports a failed upstream exchange (Mode A or Mode B).
type ExchangeError struct {
	Platform     Platform
	HTTPStatus   int
	UpstreamBody string
	Err          error
}

func (e *ExchangeError) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("%s token exchange failed (status %d): %v", e.Platform, e.HTTPStatus, e.Err)
	}
	return fmt.Sprintf("%s token exchange failed: %v", e.Platform, e.Err)
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// IntrospectionError reports that the introspection endpoint itself could not be used.
// An invalid token is not an IntrospectionError.
type IntrospectionError struct {
	Platform     Platform
	HTTPStatus   int
	UpstreamBody string
	Err          error
}

func (e *IntrospectionError) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("%s token introspection failed (status %d): %v", e.Platform, e.HTTPStatus, e.Err)
	}
	return fmt.Sprintf("%s token introspection failed: %v", e.Platform, e.Err)
}

func (e *IntrospectionError) Unwrap() error {
	return e.Err
}

// TokenNotRenewableError is returned when renewal is requested for a token the
// platform reports as invalid. No renewal call is made in that case.
type TokenNotRenewableError struct {
	Platform Platform
	Reason   string
}

func (e *TokenNotRenewableError) Error() string {
	return fmt.Sprintf("token cannot be renewed on %s: %s", e.Platform, e.Reason)
}

// UnsupportedOperationError is returned when a platform lacks a capability.
type UnsupportedOperationError struct {
	Platform  Platform
	Operation string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("platform %s does not support %s", e.Platform, e.Operation)
}

// NotFoundError is returned by the TokenStore when no record matches.
type NotFoundError struct {
	Source Source
}

func (e *NotFoundError) Error() string {
	if e.Source == "" {
		return "token not found"
	}
	return fmt.Sprintf("no token stored for source '%s'", e.Source)
}

// UnknownPlatformError is returned when a request names a platform that is
// not configured.
type UnknownPlatformError struct {
	Platform string
}

func (e *UnknownPlatformError) Error() string {
	return fmt.Sprintf("platform '%s' is not configured", e.Platform)
}
