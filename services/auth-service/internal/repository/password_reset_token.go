package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/model"
)

// OpaqueTokenRepository defines lookups and single-use redemption of the email
// verification and password reset tokens stored on user records.
type OpaqueTokenRepository interface {
	// FindByEmailVerificationToken returns the user holding hash, expired or not.
	FindByEmailVerificationToken(ctx context.Context, hash string) (*model.User, error)

	// ConsumeEmailVerificationToken marks the email verified and clears the token, only if
	// hash matches and the token has not expired at now.
	ConsumeEmailVerificationToken(ctx context.Context, hash string, now time.Time) (*model.User, error)

	// FindByPasswordResetToken returns the user holding hash, expired or not.
	FindByPasswordResetToken(ctx context.Context, hash string) (*model.User, error)

	// ConsumePasswordResetToken sets passwordHash, clears the reset token and every refresh
	// token, only if hash matches, the token has not expired at now and the user is active.
	ConsumePasswordResetToken(ctx context.Context, hash string, now time.Time, passwordHash string) (*model.User, error)
}

func (r *userMongoRepository) FindByEmailVerificationToken(ctx context.Context, hash string) (*model.User, error) {
	return r.findOne(
		ctx,
		bson.M{"email_verification.hash": hash},
		options.FindOne().SetProjection(withoutPassword),
	)
}

func (r *userMongoRepository) ConsumeEmailVerificationToken(
	ctx context.Context,
	hash string,
	now time.Time,
) (*model.User, error) {
	filter := bson.M{
		"email_verification.hash":       hash,
		"email_verification.expires_at": bson.M{"$gt": now},
	}
	update := bson.M{
		"$set": bson.M{
			"is_email_verified": true,
			"updated_at":        now,
		},
		"$unset": bson.M{"email_verification": ""},
	}

	result := r.collection().FindOneAndUpdate(
		ctx,
		filter,
		update,
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(withoutPassword),
	)

	return decodeUser(result)
}

func (r *userMongoRepository) FindByPasswordResetToken(ctx context.Context, hash string) (*model.User, error) {
	return r.findOne(
		ctx,
		bson.M{"password_reset.hash": hash},
		options.FindOne().SetProjection(withoutPassword),
	)
}

func (r *userMongoRepository) ConsumePasswordResetToken(
	ctx context.Context,
	hash string,
	now time.Time,
	passwordHash string,
) (*model.User, error) {
	filter := bson.M{
		"password_reset.hash":       hash,
		"password_reset.expires_at": bson.M{"$gt": now},
		"is_active":                 true,
	}
	update := bson.M{
		"$set": bson.M{
			"password_hash":  passwordHash,
			"refresh_tokens": bson.A{},
			"updated_at":     now,
		},
		"$unset": bson.M{"password_reset": ""},
	}

	result := r.collection().FindOneAndUpdate(
		ctx,
		filter,
		update,
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(withoutPassword),
	)

	return decodeUser(result)
}
