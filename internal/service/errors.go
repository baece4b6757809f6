package service

import (
	"errors"
	"fmt"
)

// The closed error set of the authentication service. Handlers map these to
// responses; anything else escaping the package is a bug.
var (
	ErrInvalidCredential = errors.New("invalid credential")
	ErrAccountLocked     = errors.New("account locked")
	ErrUserDisabled      = errors.New("user disabled")
	ErrInvalidToken      = errors.New("invalid token")
	ErrSessionExpired    = errors.New("session expired")
	ErrRefreshTokenReuse = errors.New("refresh token reuse")

	// ErrInfrastructure marks store or backend failures. It must never be
	// collapsed into a credential or permission outcome: callers retry or
	// surface "try again", not "access denied".
	ErrInfrastructure = errors.New("infrastructure failure")
)

func infraErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrInfrastructure, err))
}
