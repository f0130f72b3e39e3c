package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCode        = errors.New("invalid or expired code")
	ErrEmailTaken         = errors.New("email address already taken")
	ErrPasswordMismatch   = errors.New("password does not match")
	ErrInvalidCredentials = errors.New("unable to login with provided credentials")
	ErrNotVerified        = errors.New("user account not verified")
	ErrNotActive          = errors.New("user account not active")
	ErrNotAllowed         = errors.New("not allowed")
	ErrUserNotFound       = errors.New("user not found")
)

// The two failure modes of code validation stay distinct for logging but
// both unwrap to ErrInvalidCode, so callers cannot tell a wrong code from a
// right-but-expired one.
var (
	errCodeNotFound = fmt.Errorf("%w: no matching code", ErrInvalidCode)
	errCodeExpired  = fmt.Errorf("%w: code expired", ErrInvalidCode)
)
