package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/lockout"
	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/model"
)

// userMemoryRepository keeps users in process memory. Every method holds the lock for its
// whole read-modify-write, which gives it the same per-record atomicity as the Mongo
// implementation. Records are copied in and out so callers never share state with the store.
type userMemoryRepository struct {
	mu     sync.Mutex
	users  map[bson.ObjectID]*model.User
	policy lockout.Policy
}

// NewUserMemoryRepository returns an empty in-memory UserRepository.
func NewUserMemoryRepository(policy lockout.Policy) UserRepository {
	return &userMemoryRepository{
		users:  make(map[bson.ObjectID]*model.User),
		policy: policy,
	}
}

func (r *userMemoryRepository) CreateUser(_ context.Context, user *model.User) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Email == user.Email {
			return nil, ErrDuplicateEmail
		}
		if existing.Username == user.Username {
			return nil, ErrDuplicateUsername
		}
	}

	stored := user.Clone()
	stored.ID = bson.NewObjectID()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	stored.UpdatedAt = stored.CreatedAt
	if stored.RefreshTokens == nil {
		stored.RefreshTokens = []model.RefreshToken{}
	}
	r.users[stored.ID] = stored

	user.ID = stored.ID
	user.CreatedAt = stored.CreatedAt
	user.UpdatedAt = stored.UpdatedAt
	return user, nil
}

func (r *userMemoryRepository) GetUser(_ context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, err := r.get(id)
	if err != nil {
		return nil, err
	}
	return redact(u), nil
}

func (r *userMemoryRepository) GetUserWithPassword(_ context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, err := r.get(id)
	if err != nil {
		return nil, err
	}
	return u.Clone(), nil
}

func (r *userMemoryRepository) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.find(func(u *model.User) bool { return u.Email == email })
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u.Clone(), nil
}

func (r *userMemoryRepository) FindByEmailOrUsername(_ context.Context, email, username string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.find(func(u *model.User) bool { return u.Email == email || u.Username == username })
	if u == nil {
		return nil, ErrUserNotFound
	}
	return redact(u), nil
}

func (r *userMemoryRepository) UpdateUser(_ context.Context, id string, params UpdateUserParams) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, err := r.get(id)
	if err != nil {
		return nil, err
	}

	if params.empty() {
		return nil, ErrNothingToUpdate
	}

	if params.Username != nil && *params.Username != u.Username {
		taken := r.find(func(other *model.User) bool { return other.Username == *params.Username })
		if taken != nil {
			return nil, ErrDuplicateUsername
		}
		u.Username = *params.Username
	}
	if params.PasswordHash != nil {
		u.PasswordHash = *params.PasswordHash
	}
	if params.Profile != nil {
		u.Profile = *params.Profile
	}
	if params.Preferences != nil {
		u.Preferences = *params.Preferences
	}
	if params.IsEmailVerified != nil {
		u.IsEmailVerified = *params.IsEmailVerified
	}
	if params.IsActive != nil {
		u.IsActive = *params.IsActive
	}
	if params.EmailVerification != nil {
		v := *params.EmailVerification
		u.EmailVerification = &v
	}
	if params.PasswordReset != nil {
		v := *params.PasswordReset
		u.PasswordReset = &v
	}
	if params.ClearEmailVerification {
		u.EmailVerification = nil
	}
	if params.ClearPasswordReset {
		u.PasswordReset = nil
	}
	if params.ClearRefreshTokens {
		u.RefreshTokens = []model.RefreshToken{}
	}
	u.UpdatedAt = time.Now()

	return redact(u), nil
}

func (r *userMemoryRepository) ListUsers(_ context.Context, params FilterUsersParams) ([]*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*model.User
	for _, u := range r.users {
		if params.Email != nil && u.Email != *params.Email {
			continue
		}
		if params.Role != nil && u.Role != *params.Role {
			continue
		}
		if params.Verified != nil && u.IsEmailVerified != *params.Verified {
			continue
		}
		if params.Active != nil && u.IsActive != *params.Active {
			continue
		}
		matched = append(matched, redact(u))
	}

	sortBy := "created_at"
	if params.SortBy != nil {
		sortBy = *params.SortBy
	}
	sort.SliceStable(matched, func(i, j int) bool {
		less := lessBy(sortBy, matched[i], matched[j])
		if params.SortDesc {
			return lessBy(sortBy, matched[j], matched[i])
		}
		return less
	})

	offset := int(params.Offset)
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]

	limit := int(params.Limit)
	if limit == 0 {
		limit = 10
	}
	if limit < len(matched) {
		matched = matched[:limit]
	}

	return matched, nil
}

func (r *userMemoryRepository) IncrementLoginAttempts(_ context.Context, id string, now time.Time) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, err := r.get(id)
	if err != nil {
		return nil, err
	}

	next := r.policy.NextFailure(u.LoginAttempts, u.LockUntil, now)
	u.LoginAttempts = next.Attempts
	u.LockUntil = next.LockUntil
	u.UpdatedAt = now

	return redact(u), nil
}

func (r *userMemoryRepository) ResetLoginAttempts(_ context.Context, id string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, err := r.get(id)
	if err != nil {
		return err
	}

	u.LoginAttempts = 0
	u.LockUntil = nil
	lastLogin := now
	u.LastLogin = &lastLogin
	u.UpdatedAt = now

	return nil
}

func (r *userMemoryRepository) AddRefreshToken(
	_ context.Context,
	userID string,
	entry model.RefreshToken,
	staleBefore time.Time,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, err := r.get(userID)
	if err != nil {
		return err
	}

	u.RefreshTokens = append(model.PruneRefreshTokens(u.RefreshTokens, staleBefore), entry)
	u.UpdatedAt = entry.IssuedAt

	return nil
}

func (r *userMemoryRepository) RotateRefreshToken(
	_ context.Context,
	userID string,
	oldToken string,
	entry model.RefreshToken,
	staleBefore time.Time,
) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, err := r.get(userID)
	if err != nil || !u.IsActive {
		return false, nil
	}

	fresh := model.PruneRefreshTokens(u.RefreshTokens, staleBefore)
	kept := make([]model.RefreshToken, 0, len(fresh)+1)
	found := false
	for _, t := range fresh {
		if t.Token == oldToken {
			found = true
			continue
		}
		kept = append(kept, t)
	}
	if !found {
		return false, nil
	}

	u.RefreshTokens = append(kept, entry)
	u.UpdatedAt = entry.IssuedAt

	return true, nil
}

func (r *userMemoryRepository) RemoveRefreshToken(_ context.Context, userID string, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, err := r.get(userID)
	if err != nil {
		return err
	}

	kept := u.RefreshTokens[:0]
	for _, t := range u.RefreshTokens {
		if t.Token != token {
			kept = append(kept, t)
		}
	}
	u.RefreshTokens = kept
	u.UpdatedAt = time.Now()

	return nil
}

func (r *userMemoryRepository) ClearRefreshTokens(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, err := r.get(userID)
	if err != nil {
		return err
	}

	u.RefreshTokens = []model.RefreshToken{}
	u.UpdatedAt = time.Now()

	return nil
}

func (r *userMemoryRepository) FindByEmailVerificationToken(_ context.Context, hash string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.find(func(u *model.User) bool {
		return u.EmailVerification != nil && u.EmailVerification.Hash == hash
	})
	if u == nil {
		return nil, ErrUserNotFound
	}
	return redact(u), nil
}

func (r *userMemoryRepository) ConsumeEmailVerificationToken(
	_ context.Context,
	hash string,
	now time.Time,
) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.find(func(u *model.User) bool { return redeemable(u.EmailVerification, hash, now) })
	if u == nil {
		return nil, ErrUserNotFound
	}

	u.IsEmailVerified = true
	u.EmailVerification = nil
	u.UpdatedAt = now

	return redact(u), nil
}

func (r *userMemoryRepository) FindByPasswordResetToken(_ context.Context, hash string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.find(func(u *model.User) bool {
		return u.PasswordReset != nil && u.PasswordReset.Hash == hash
	})
	if u == nil {
		return nil, ErrUserNotFound
	}
	return redact(u), nil
}

func (r *userMemoryRepository) ConsumePasswordResetToken(
	_ context.Context,
	hash string,
	now time.Time,
	passwordHash string,
) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.find(func(u *model.User) bool { return u.IsActive && redeemable(u.PasswordReset, hash, now) })
	if u == nil {
		return nil, ErrUserNotFound
	}

	u.PasswordHash = passwordHash
	u.PasswordReset = nil
	u.RefreshTokens = []model.RefreshToken{}
	u.UpdatedAt = now

	return redact(u), nil
}

func (r *userMemoryRepository) get(id string) (*model.User, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrUserNotFound
	}

	u, ok := r.users[objectID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (r *userMemoryRepository) find(match func(*model.User) bool) *model.User {
	for _, u := range r.users {
		if match(u) {
			return u
		}
	}
	return nil
}

func redeemable(t *model.OpaqueToken, hash string, now time.Time) bool {
	return t != nil && t.Hash == hash && t.ExpiresAt.After(now)
}

func redact(u *model.User) *model.User {
	c := u.Clone()
	c.PasswordHash = ""
	return c
}

func lessBy(field string, a, b *model.User) bool {
	switch field {
	case "email":
		return strings.Compare(a.Email, b.Email) < 0
	case "username":
		return strings.Compare(a.Username, b.Username) < 0
	case "last_login":
		return timeOrZero(a.LastLogin).Before(timeOrZero(b.LastLogin))
	default:
		return a.CreatedAt.Before(b.CreatedAt)
	}
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
