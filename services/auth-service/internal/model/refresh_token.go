package model

import "time"

// RefreshToken is one entry of the set of refresh tokens a user may still redeem.
// The token is stored verbatim; it is only ever compared for membership.
type RefreshToken struct {
	Token    string    `bson:"token"`
	IssuedAt time.Time `bson:"issued_at"`
}

// PruneRefreshTokens returns the entries issued after staleBefore.
func PruneRefreshTokens(tokens []RefreshToken, staleBefore time.Time) []RefreshToken {
	fresh := make([]RefreshToken, 0, len(tokens))
	for _, t := range tokens {
		if t.IssuedAt.After(staleBefore) {
			fresh = append(fresh, t)
		}
	}
	return fresh
}
