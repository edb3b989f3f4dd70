package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/vasapolrittideah/identity-service/shared/security"
)

const (
	StoreDriverMongo  = "mongo"
	StoreDriverMemory = "memory"
)

// AuthServiceConfig holds the configuration of the auth service.
type AuthServiceConfig struct {
	Env         string `env:"APP_ENV"      envDefault:"development"`
	HTTPAddr    string `env:"HTTP_ADDR"    envDefault:":8080"`
	StoreDriver string `env:"STORE_DRIVER" envDefault:"mongo"`
	LogLevel    string `env:"LOG_LEVEL"    envDefault:"info"`

	// EncryptionKey is the master key of the field cipher.
	EncryptionKey string `env:"ENCRYPTION_KEY"`

	AppVerifyEmailURL   string `env:"APP_VERIFY_EMAIL_URL"   envDefault:"http://localhost:5173/verify-email"`
	AppPasswordResetURL string `env:"APP_PASSWORD_RESET_URL" envDefault:"http://localhost:5173/reset-password"`
	AppLoginURL         string `env:"APP_LOGIN_URL"          envDefault:"http://localhost:5173/login"`

	// MailerEnabled selects SMTP delivery of notifications; otherwise they are only logged.
	MailerEnabled bool `env:"MAILER_ENABLED" envDefault:"false"`

	Mongo   MongoConfig   `envPrefix:"MONGO_"`
	Token   TokenConfig   `envPrefix:"TOKEN_"`
	Lockout LockoutConfig `envPrefix:"LOCKOUT_"`
	Hasher  HasherConfig  `envPrefix:"HASHER_"`
}

// MongoConfig holds the connection settings of the identity store.
type MongoConfig struct {
	URI      string        `env:"URI"      envDefault:"mongodb://localhost:27017"`
	Database string        `env:"DATABASE" envDefault:"identity"`
	Timeout  time.Duration `env:"TIMEOUT"  envDefault:"10s"`
}

// TokenConfig holds signing secrets and token lifetimes.
type TokenConfig struct {
	Issuer   string `env:"ISSUER"   envDefault:"identity-service"`
	Audience string `env:"AUDIENCE" envDefault:"identity-users"`

	AccessTokenSecret     string        `env:"ACCESS_SECRET"`
	AccessTokenExpiresIn  time.Duration `env:"ACCESS_EXPIRES_IN"  envDefault:"15m"`
	RefreshTokenSecret    string        `env:"REFRESH_SECRET"`
	RefreshTokenExpiresIn time.Duration `env:"REFRESH_EXPIRES_IN" envDefault:"720h"`

	EmailVerificationTokenExpiresIn time.Duration `env:"EMAIL_VERIFICATION_EXPIRES_IN" envDefault:"24h"`
	PasswordResetTokenExpiresIn     time.Duration `env:"PASSWORD_RESET_EXPIRES_IN"     envDefault:"1h"`
}

// LockoutConfig holds the failed-login thresholds.
type LockoutConfig struct {
	MaxAttempts  int           `env:"MAX_ATTEMPTS"  envDefault:"5"`
	LockDuration time.Duration `env:"LOCK_DURATION" envDefault:"2h"`
}

// HasherConfig holds the argon2id cost parameters.
type HasherConfig struct {
	TimeCost      uint32 `env:"TIME_COST"      envDefault:"3"`
	MemoryCost    uint32 `env:"MEMORY_COST"    envDefault:"65536"`
	Parallelism   uint8  `env:"PARALLELISM"    envDefault:"2"`
	MaxConcurrent int64  `env:"MAX_CONCURRENT" envDefault:"0"`
}

// Load parses the auth service configuration from the environment and validates it.
func Load() (*AuthServiceConfig, error) {
	cfg, err := env.ParseAs[AuthServiceConfig]()
	if err != nil {
		return nil, fmt.Errorf("parse environment variables: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// IsProduction reports whether the service runs with production settings.
func (c *AuthServiceConfig) IsProduction() bool {
	return c.Env == "production"
}

// SecurityHasherConfig converts the hasher settings for security.NewHasher.
func (c *AuthServiceConfig) SecurityHasherConfig() security.HasherConfig {
	return security.HasherConfig{
		TimeCost:      c.Hasher.TimeCost,
		MemoryCost:    c.Hasher.MemoryCost,
		Parallelism:   c.Hasher.Parallelism,
		MaxConcurrent: c.Hasher.MaxConcurrent,
	}
}

// validate checks the settings the service cannot start without.
func (c *AuthServiceConfig) validate() error {
	var errs []error

	if c.Token.AccessTokenSecret == "" {
		errs = append(errs, errors.New("missing TOKEN_ACCESS_SECRET environment variable"))
	}
	if c.Token.RefreshTokenSecret == "" {
		errs = append(errs, errors.New("missing TOKEN_REFRESH_SECRET environment variable"))
	}
	if c.Token.AccessTokenSecret != "" && c.Token.AccessTokenSecret == c.Token.RefreshTokenSecret {
		errs = append(errs, errors.New("access and refresh token secrets must differ"))
	}
	if c.EncryptionKey == "" {
		errs = append(errs, errors.New("missing ENCRYPTION_KEY environment variable"))
	}

	durations := map[string]time.Duration{
		"TOKEN_ACCESS_EXPIRES_IN":             c.Token.AccessTokenExpiresIn,
		"TOKEN_REFRESH_EXPIRES_IN":            c.Token.RefreshTokenExpiresIn,
		"TOKEN_EMAIL_VERIFICATION_EXPIRES_IN": c.Token.EmailVerificationTokenExpiresIn,
		"TOKEN_PASSWORD_RESET_EXPIRES_IN":     c.Token.PasswordResetTokenExpiresIn,
		"LOCKOUT_LOCK_DURATION":               c.Lockout.LockDuration,
	}
	for name, d := range durations {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}

	if c.Lockout.MaxAttempts < 1 {
		errs = append(errs, errors.New("LOCKOUT_MAX_ATTEMPTS must be at least 1"))
	}

	switch c.StoreDriver {
	case StoreDriverMongo, StoreDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", security.ErrConfiguration, errors.Join(errs...))
	}

	return nil
}
