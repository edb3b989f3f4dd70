package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/lockout"
	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/model"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrDuplicateEmail    = errors.New("email already exists")
	ErrDuplicateUsername = errors.New("username already exists")
	ErrNothingToUpdate   = errors.New("no user fields to update")
)

// UserRepository defines the operations on identity records. Every method that changes
// refresh tokens, login attempts or opaque tokens is a single atomic update on one record.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) (*model.User, error)

	// GetUser returns the user without its password hash.
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserWithPassword(ctx context.Context, id string) (*model.User, error)
	// GetUserByEmail returns the user including its password hash.
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	FindByEmailOrUsername(ctx context.Context, email, username string) (*model.User, error)
	UpdateUser(ctx context.Context, id string, params UpdateUserParams) (*model.User, error)
	ListUsers(ctx context.Context, params FilterUsersParams) ([]*model.User, error)

	// IncrementLoginAttempts applies one failed attempt to the lockout state.
	IncrementLoginAttempts(ctx context.Context, id string, now time.Time) (*model.User, error)
	// ResetLoginAttempts clears the lockout state and stamps the last login.
	ResetLoginAttempts(ctx context.Context, id string, now time.Time) error

	RefreshTokenRepository
	OpaqueTokenRepository
}

// UpdateUserParams defines the optional parameters for updating a user.
// Only the fields that are not nil (or true, for the Clear flags) will be updated.
type UpdateUserParams struct {
	Username          *string
	PasswordHash      *string
	Profile           *model.Profile
	Preferences       *model.Preferences
	IsEmailVerified   *bool
	IsActive          *bool
	EmailVerification *model.OpaqueToken
	PasswordReset     *model.OpaqueToken

	ClearEmailVerification bool
	ClearPasswordReset     bool
	ClearRefreshTokens     bool
}

func (p UpdateUserParams) empty() bool {
	return p.Username == nil && p.PasswordHash == nil && p.Profile == nil && p.Preferences == nil &&
		p.IsEmailVerified == nil && p.IsActive == nil && p.EmailVerification == nil &&
		p.PasswordReset == nil && !p.ClearEmailVerification && !p.ClearPasswordReset && !p.ClearRefreshTokens
}

// FilterUsersParams defines the parameters for filtering and paginating users.
type FilterUsersParams struct {
	Email    *string
	Role     *model.Role
	Verified *bool
	Active   *bool
	Limit    uint64
	Offset   uint64
	SortBy   *string
	SortDesc bool
}

const (
	userCollection = "users"
	emailIndex     = "email_unique"
	usernameIndex  = "username_unique"
)

var withoutPassword = bson.M{"password_hash": 0}

type userMongoRepository struct {
	db     *mongo.Database
	policy lockout.Policy
}

// NewUserMongoRepository creates the users collection indexes and returns a repository
// that applies the given lockout policy.
func NewUserMongoRepository(
	ctx context.Context,
	logger *zerolog.Logger,
	db *mongo.Database,
	policy lockout.Policy,
) UserRepository {
	collection := db.Collection(userCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(emailIndex),
		},
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(usernameIndex),
		},
		{
			Keys: bson.D{{Key: "created_at", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "email_verification.hash", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "password_reset.hash", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
		{
			Keys: bson.D{{Key: "refresh_tokens.token", Value: 1}},
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create user indexes")
	}

	return &userMongoRepository{db: db, policy: policy}
}

func (r *userMongoRepository) collection() *mongo.Collection {
	return r.db.Collection(userCollection)
}

func (r *userMongoRepository) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.UpdatedAt = user.CreatedAt
	if user.RefreshTokens == nil {
		user.RefreshTokens = []model.RefreshToken{}
	}

	result, err := r.collection().InsertOne(ctx, user)
	if err != nil {
		return nil, classifyWriteError(err)
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		user.ID = objectID
	} else {
		return nil, errors.New("failed to convert inserted ID to ObjectID")
	}

	return user, nil
}

func (r *userMongoRepository) GetUser(ctx context.Context, id string) (*model.User, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrUserNotFound
	}

	return r.findOne(ctx, bson.M{"_id": objectID}, options.FindOne().SetProjection(withoutPassword))
}

func (r *userMongoRepository) GetUserWithPassword(ctx context.Context, id string) (*model.User, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrUserNotFound
	}

	return r.findOne(ctx, bson.M{"_id": objectID})
}

func (r *userMongoRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *userMongoRepository) FindByEmailOrUsername(
	ctx context.Context,
	email string,
	username string,
) (*model.User, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"email": email},
		bson.M{"username": username},
	}}

	return r.findOne(ctx, filter, options.FindOne().SetProjection(withoutPassword))
}

func (r *userMongoRepository) UpdateUser(
	ctx context.Context,
	id string,
	params UpdateUserParams,
) (*model.User, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrUserNotFound
	}

	if params.empty() {
		return nil, ErrNothingToUpdate
	}

	// Build update query
	set := bson.M{"updated_at": time.Now()}
	unset := bson.M{}
	if params.Username != nil {
		set["username"] = *params.Username
	}
	if params.PasswordHash != nil {
		set["password_hash"] = *params.PasswordHash
	}
	if params.Profile != nil {
		set["profile"] = *params.Profile
	}
	if params.Preferences != nil {
		set["preferences"] = *params.Preferences
	}
	if params.IsEmailVerified != nil {
		set["is_email_verified"] = *params.IsEmailVerified
	}
	if params.IsActive != nil {
		set["is_active"] = *params.IsActive
	}
	if params.EmailVerification != nil {
		set["email_verification"] = *params.EmailVerification
	}
	if params.PasswordReset != nil {
		set["password_reset"] = *params.PasswordReset
	}
	if params.ClearEmailVerification {
		unset["email_verification"] = ""
	}
	if params.ClearPasswordReset {
		unset["password_reset"] = ""
	}
	if params.ClearRefreshTokens {
		set["refresh_tokens"] = bson.A{}
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	result := r.collection().FindOneAndUpdate(
		ctx,
		bson.M{"_id": objectID},
		update,
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(withoutPassword),
	)

	user, err := decodeUser(result)
	if err != nil {
		return nil, classifyWriteError(err)
	}

	return user, nil
}

func (r *userMongoRepository) ListUsers(ctx context.Context, params FilterUsersParams) ([]*model.User, error) {
	findOptions := options.Find().SetProjection(withoutPassword)

	limit := params.Limit
	if limit == 0 {
		limit = 10
	}
	findOptions.SetLimit(int64(limit))

	if params.Offset > 0 {
		findOptions.SetSkip(int64(params.Offset))
	}

	sortBy := "created_at"
	if params.SortBy != nil {
		sortBy = *params.SortBy
	}

	sortOrder := -1
	if !params.SortDesc {
		sortOrder = 1
	}
	findOptions.SetSort(bson.D{{Key: sortBy, Value: sortOrder}})

	// Build filter query
	filter := bson.M{}
	if params.Email != nil {
		filter["email"] = *params.Email
	}
	if params.Role != nil {
		filter["role"] = *params.Role
	}
	if params.Verified != nil {
		filter["is_email_verified"] = *params.Verified
	}
	if params.Active != nil {
		filter["is_active"] = *params.Active
	}

	cursor, err := r.collection().Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []*model.User
	for cursor.Next(ctx) {
		var user model.User
		if err := cursor.Decode(&user); err != nil {
			return nil, err
		}
		users = append(users, &user)
	}

	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return users, nil
}

// IncrementLoginAttempts expresses lockout.Policy.NextFailure as one pipeline update so
// concurrent failures on the same account cannot lose increments.
func (r *userMongoRepository) IncrementLoginAttempts(
	ctx context.Context,
	id string,
	now time.Time,
) (*model.User, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrUserNotFound
	}

	hasLock := bson.D{{Key: "$ne", Value: bson.A{bson.D{{Key: "$ifNull", Value: bson.A{"$lock_until", nil}}}, nil}}}
	expired := bson.D{{Key: "$and", Value: bson.A{
		hasLock,
		bson.D{{Key: "$lte", Value: bson.A{"$lock_until", now}}},
	}}}
	live := bson.D{{Key: "$gt", Value: bson.A{"$lock_until", now}}}
	next := bson.D{{Key: "$add", Value: bson.A{"$login_attempts", 1}}}
	reachesMax := bson.D{{Key: "$gte", Value: bson.A{next, r.policy.MaxAttempts}}}

	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "login_attempts", Value: cond(expired, 1, cond(live, "$login_attempts", next))},
			{Key: "lock_until", Value: cond(expired, "$$REMOVE",
				cond(live, "$lock_until",
					cond(reachesMax, now.Add(r.policy.LockDuration), "$$REMOVE")))},
			{Key: "updated_at", Value: now},
		}}},
	}

	result := r.collection().FindOneAndUpdate(
		ctx,
		bson.M{"_id": objectID},
		pipeline,
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(withoutPassword),
	)

	return decodeUser(result)
}

func (r *userMongoRepository) ResetLoginAttempts(ctx context.Context, id string, now time.Time) error {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return ErrUserNotFound
	}

	result, err := r.collection().UpdateOne(
		ctx,
		bson.M{"_id": objectID},
		bson.M{
			"$set": bson.M{
				"login_attempts": 0,
				"last_login":     now,
				"updated_at":     now,
			},
			"$unset": bson.M{"lock_until": ""},
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

func (r *userMongoRepository) findOne(
	ctx context.Context,
	filter any,
	opts ...options.Lister[options.FindOneOptions],
) (*model.User, error) {
	return decodeUser(r.collection().FindOne(ctx, filter, opts...))
}

func decodeUser(result *mongo.SingleResult) (*model.User, error) {
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	var user model.User
	if err := result.Decode(&user); err != nil {
		return nil, err
	}

	return &user, nil
}

func cond(ifExpr, thenExpr, elseExpr any) bson.D {
	return bson.D{{Key: "$cond", Value: bson.A{ifExpr, thenExpr, elseExpr}}}
}

// classifyWriteError maps unique index violations to the field that collided. The index
// name is matched rather than the field name, since the duplicated value is part of the
// message too.
func classifyWriteError(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return err
	}

	messages := []string{err.Error()}
	var we mongo.WriteException
	if errors.As(err, &we) {
		messages = messages[:0]
		for _, e := range we.WriteErrors {
			messages = append(messages, e.Message)
		}
	}

	for _, msg := range messages {
		if strings.Contains(msg, "index: "+usernameIndex+" ") {
			return ErrDuplicateUsername
		}
	}

	return ErrDuplicateEmail
}
