package domain

import "errors"

var (
	ErrMissingField       = errors.New("missing required field")
	ErrUnsafeIdentifier   = errors.New("identifier contains control characters")
	ErrAuthFailed         = errors.New("authentication failed")
	ErrMalformedResponse  = errors.New("malformed vendor response")
	ErrUnsupportedRequest = errors.New("action has no vendor request")
)
