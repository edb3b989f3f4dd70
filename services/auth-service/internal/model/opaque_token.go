package model

import "time"

// OpaqueToken is the stored half of a single-use token sent to the user by email.
// Only the SHA-256 of the raw value is kept; hash and expiry live and die together.
type OpaqueToken struct {
	Hash      string    `bson:"hash"`
	ExpiresAt time.Time `bson:"expires_at"`
}
