package usecase

import (
	"errors"

	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/repository"
	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/token"
	"github.com/vasapolrittideah/identity-service/shared/security"
)

var (
	ErrDuplicateEmail    = repository.ErrDuplicateEmail
	ErrDuplicateUsername = repository.ErrDuplicateUsername
	ErrUserNotFound      = repository.ErrUserNotFound
	ErrWeakPassword      = security.ErrWeakPassword

	// ErrInvalidCredentials covers both a wrong password and an unknown email.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account is temporarily locked")
	ErrAccountInactive    = errors.New("account is inactive")

	ErrInvalidToken = token.ErrInvalidToken
	ErrExpiredToken = token.ErrExpiredToken

	// ErrInvalidOrExpiredToken is the single failure of email verification and password
	// reset tokens.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
)
