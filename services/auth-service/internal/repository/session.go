package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/model"
)

// RefreshTokenRepository defines the operations on a user's refresh token allow-list.
type RefreshTokenRepository interface {
	// AddRefreshToken appends entry and drops entries issued before staleBefore.
	AddRefreshToken(ctx context.Context, userID string, entry model.RefreshToken, staleBefore time.Time) error

	// RotateRefreshToken replaces oldToken with entry only if oldToken is present, fresh
	// and the user is active. It reports whether the swap happened.
	RotateRefreshToken(
		ctx context.Context,
		userID string,
		oldToken string,
		entry model.RefreshToken,
		staleBefore time.Time,
	) (bool, error)

	RemoveRefreshToken(ctx context.Context, userID string, token string) error
	ClearRefreshTokens(ctx context.Context, userID string) error
}

func (r *userMongoRepository) AddRefreshToken(
	ctx context.Context,
	userID string,
	entry model.RefreshToken,
	staleBefore time.Time,
) error {
	objectID, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return ErrUserNotFound
	}

	result, err := r.collection().UpdateOne(
		ctx,
		bson.M{"_id": objectID},
		replaceRefreshTokens("", entry, staleBefore),
	)
	if err != nil {
		return err
	}

	if result.MatchedCount == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (r *userMongoRepository) RotateRefreshToken(
	ctx context.Context,
	userID string,
	oldToken string,
	entry model.RefreshToken,
	staleBefore time.Time,
) (bool, error) {
	objectID, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return false, nil
	}

	filter := bson.M{
		"_id":       objectID,
		"is_active": true,
		"refresh_tokens": bson.M{"$elemMatch": bson.M{
			"token":     oldToken,
			"issued_at": bson.M{"$gt": staleBefore},
		}},
	}

	result, err := r.collection().UpdateOne(ctx, filter, replaceRefreshTokens(oldToken, entry, staleBefore))
	if err != nil {
		return false, err
	}

	return result.MatchedCount == 1, nil
}

func (r *userMongoRepository) RemoveRefreshToken(ctx context.Context, userID string, token string) error {
	objectID, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return ErrUserNotFound
	}

	result, err := r.collection().UpdateOne(
		ctx,
		bson.M{"_id": objectID},
		bson.M{
			"$pull": bson.M{"refresh_tokens": bson.M{"token": token}},
			"$set":  bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return err
	}

	if result.MatchedCount == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (r *userMongoRepository) ClearRefreshTokens(ctx context.Context, userID string) error {
	objectID, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return ErrUserNotFound
	}

	result, err := r.collection().UpdateOne(
		ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{
			"refresh_tokens": bson.A{},
			"updated_at":     time.Now(),
		}},
	)
	if err != nil {
		return err
	}

	if result.MatchedCount == 0 {
		return ErrUserNotFound
	}

	return nil
}

// replaceRefreshTokens builds a pipeline update that keeps fresh entries other than
// drop and appends entry. $pull and $push cannot target the same array in one update,
// so the whole array is rewritten from its current value.
func replaceRefreshTokens(drop string, entry model.RefreshToken, staleBefore time.Time) mongo.Pipeline {
	keep := bson.A{bson.D{{Key: "$gt", Value: bson.A{"$$t.issued_at", staleBefore}}}}
	if drop != "" {
		keep = append(keep, bson.D{{Key: "$ne", Value: bson.A{"$$t.token", drop}}})
	}

	fresh := bson.D{{Key: "$filter", Value: bson.D{
		{Key: "input", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$refresh_tokens", bson.A{}}}}},
		{Key: "as", Value: "t"},
		{Key: "cond", Value: bson.D{{Key: "$and", Value: keep}}},
	}}}

	added := bson.D{{Key: "$literal", Value: bson.A{entry}}}

	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "refresh_tokens", Value: bson.D{{Key: "$concatArrays", Value: bson.A{fresh, added}}}},
			{Key: "updated_at", Value: entry.IssuedAt},
		}}},
	}
}
