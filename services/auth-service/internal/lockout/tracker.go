// Package lockout tracks failed login attempts and the temporary lock they trigger.
//
// All state lives on the user record (login_attempts, lock_until), so the tracker is a
// set of pure transitions that the store applies atomically.
package lockout

import (
	"time"

	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/model"
)

// Policy configures when an account locks and for how long.
type Policy struct {
	MaxAttempts  int
	LockDuration time.Duration
}

// DefaultPolicy locks after five failures for two hours.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  5,
		LockDuration: 2 * time.Hour,
	}
}

// State is the lockout state of an account at one instant.
type State struct {
	Locked   bool
	Until    time.Time
	Attempts int
}

// Transition is the new attempt counter and lock of an account after a failed attempt.
// A nil LockUntil clears the lock.
type Transition struct {
	Attempts  int
	LockUntil *time.Time
}

// IsLocked reports whether lockUntil is still in the future.
func IsLocked(lockUntil *time.Time, now time.Time) bool {
	return lockUntil != nil && lockUntil.After(now)
}

// StateOf derives the lockout state of user at now.
func StateOf(user *model.User, now time.Time) State {
	if IsLocked(user.LockUntil, now) {
		return State{Locked: true, Until: *user.LockUntil, Attempts: user.LoginAttempts}
	}
	return State{Attempts: user.LoginAttempts}
}

// NextFailure returns the state after one more failed attempt.
//
//   - an expired lock restarts the window: attempts=1, lock cleared
//   - a live lock is left as is and never extended
//   - reaching MaxAttempts locks the account for LockDuration from now
func (p Policy) NextFailure(attempts int, lockUntil *time.Time, now time.Time) Transition {
	if lockUntil != nil && !lockUntil.After(now) {
		return Transition{Attempts: 1}
	}

	if IsLocked(lockUntil, now) {
		until := *lockUntil
		return Transition{Attempts: attempts, LockUntil: &until}
	}

	next := attempts + 1
	if next >= p.MaxAttempts {
		until := now.Add(p.LockDuration)
		return Transition{Attempts: next, LockUntil: &until}
	}

	return Transition{Attempts: next}
}
