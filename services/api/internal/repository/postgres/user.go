package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/bookineo/bookineo/pkg/database"
	apperrors "github.com/bookineo/bookineo/pkg/errors"
	"github.com/bookineo/bookineo/pkg/subscription"
	"github.com/bookineo/bookineo/services/api/internal/domain"
)

const userColumns = `id, email, password_hash, username, first_name, last_name, avatar_url, COALESCE(avatar_key, ''), subscription, created_at, updated_at`

const (
	insertUserQuery = `
		INSERT INTO users (id, email, password_hash, username, first_name, last_name, subscription, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	selectUserByIDQuery       = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	selectUserByEmailQuery    = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	selectUserByUsernameQuery = `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	updateUserProfileQuery    = `
		UPDATE users SET username = $1, first_name = $2, last_name = $3, updated_at = $4
		WHERE id = $5`
	updateUserAvatarQuery = `UPDATE users SET avatar_url = $1, avatar_key = $2, updated_at = $3 WHERE id = $4`
	deleteUserQuery       = `DELETE FROM users WHERE id = $1`
)

// UserRepository implements repository.UserRepository.
type UserRepository struct {
	db database.DBTX
}

func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user. Unique violations on email or username become
// ALREADY_EXISTS errors naming the offending field.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateUser", insertUserQuery)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, insertUserQuery,
		u.ID, u.Email, u.PasswordHash, u.Username, u.FirstName, u.LastName,
		string(u.Subscription), u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return duplicateUser(err, u)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.scanUser(ctx, "GetUserByID", selectUserByIDQuery, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.scanUser(ctx, "GetUserByEmail", selectUserByEmailQuery, email)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.scanUser(ctx, "GetUserByUsername", selectUserByUsernameQuery, username)
}

func (r *UserRepository) UpdateProfile(ctx context.Context, u *domain.User) (err error) {
	ctx, end := database.TraceQuery(ctx, "UpdateUserProfile", updateUserProfileQuery)
	defer func() { end(err) }()

	u.UpdatedAt = time.Now().UTC()
	ct, err := r.db.Exec(ctx, updateUserProfileQuery, u.Username, u.FirstName, u.LastName, u.UpdatedAt, u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "username", u.Username)
		}
		return fmt.Errorf("update user profile: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", u.ID)
	}
	return nil
}

func (r *UserRepository) SetAvatar(ctx context.Context, userID, url, key string) (err error) {
	ctx, end := database.TraceQuery(ctx, "SetUserAvatar", updateUserAvatarQuery)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, updateUserAvatarQuery, url, key, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("update avatar: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", userID)
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, end := database.TraceQuery(ctx, "DeleteUser", deleteUserQuery)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, deleteUserQuery, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", id)
	}
	return nil
}

func (r *UserRepository) scanUser(ctx context.Context, op, query string, arg string) (_ *domain.User, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() { end(err) }()

	var (
		u    domain.User
		tier string
	)
	err = r.db.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Username, &u.FirstName, &u.LastName,
		&u.AvatarURL, &u.AvatarKey, &tier, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, notFoundOr(err, "user", arg, func(err error) error {
			return fmt.Errorf("query user: %w", err)
		})
	}
	u.Subscription = subscription.ParseTier(tier)
	return &u, nil
}

func duplicateUser(err error, u *domain.User) error {
	switch database.ConstraintName(err) {
	case "users_username_key":
		return apperrors.AlreadyExists("user", "username", u.Username)
	default:
		return apperrors.AlreadyExists("user", "email", u.Email)
	}
}
