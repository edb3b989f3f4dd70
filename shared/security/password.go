package security

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/matthewhartstonge/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// MinPasswordLength is the shortest password the hasher accepts.
const MinPasswordLength = 8

// HasherConfig holds argon2id cost parameters.
type HasherConfig struct {
	TimeCost    uint32
	MemoryCost  uint32 // KiB
	Parallelism uint8

	// MaxConcurrent bounds how many hash or verify operations run at once.
	// Zero means GOMAXPROCS.
	MaxConcurrent int64
}

// DefaultHasherConfig returns parameters that take roughly 100ms on a typical server core.
func DefaultHasherConfig() HasherConfig {
	return HasherConfig{
		TimeCost:    3,
		MemoryCost:  64 * 1024,
		Parallelism: 2,
	}
}

// Hasher hashes and verifies passwords with argon2id.
type Hasher struct {
	argon argon2.Config
	sem   *semaphore.Weighted
}

// NewHasher creates a new Hasher instance with the given cost parameters.
func NewHasher(cfg HasherConfig) *Hasher {
	argon := argon2.DefaultConfig()
	if cfg.TimeCost > 0 {
		argon.TimeCost = cfg.TimeCost
	}
	if cfg.MemoryCost > 0 {
		argon.MemoryCost = cfg.MemoryCost
	}
	if cfg.Parallelism > 0 {
		argon.Parallelism = cfg.Parallelism
	}
	argon.Mode = argon2.ModeArgon2id

	slots := cfg.MaxConcurrent
	if slots <= 0 {
		slots = int64(runtime.GOMAXPROCS(0))
	}

	return &Hasher{
		argon: argon,
		sem:   semaphore.NewWeighted(slots),
	}
}

// Hash returns the encoded argon2id hash of password. A fresh salt is embedded in the output.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", fmt.Errorf("%w: password shorter than %d characters", ErrConfiguration, MinPasswordLength)
	}

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	encoded, err := h.argon.HashEncoded([]byte(password))
	if err != nil {
		return "", err
	}

	return string(encoded), nil
}

// Verify reports whether password matches the encoded hash. A mismatch is not an error;
// only a hash that cannot be decoded is.
func (h *Hasher) Verify(ctx context.Context, password, encoded string) (bool, error) {
	if encoded == "" {
		return false, ErrCorruptHash
	}

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.sem.Release(1)

	if isBcrypt(encoded) {
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, fmt.Errorf("%w: %v", ErrCorruptHash, err)
		}
	}

	ok, err := argon2.VerifyEncoded([]byte(password), []byte(encoded))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrCorruptHash, err)
	}

	return ok, nil
}

// NeedsRehash reports whether encoded was produced by a scheme other than argon2id,
// such as bcrypt hashes carried over from the previous system.
func (h *Hasher) NeedsRehash(encoded string) bool {
	return !strings.HasPrefix(encoded, "$argon2id$")
}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}
