package security

import "errors"

var (
	// ErrConfiguration indicates the hasher was asked to do something the deployment
	// should never allow, such as hashing an empty or too short password.
	ErrConfiguration = errors.New("security configuration error")

	// ErrCorruptHash indicates a stored password hash that cannot be decoded.
	ErrCorruptHash = errors.New("corrupt password hash")

	// ErrWeakPassword indicates a password that does not satisfy the password policy.
	ErrWeakPassword = errors.New("password does not meet policy requirements")

	// ErrMissingKey indicates that no master encryption key is configured.
	ErrMissingKey = errors.New("encryption key is not configured")

	// ErrAuthenticationFailed indicates a ciphertext that failed authentication or is truncated.
	ErrAuthenticationFailed = errors.New("ciphertext authentication failed")
)
