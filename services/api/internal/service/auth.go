package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/bookineo/bookineo/pkg/errors"
	"github.com/bookineo/bookineo/pkg/subscription"
	"github.com/bookineo/bookineo/services/api/internal/auth"
	"github.com/bookineo/bookineo/services/api/internal/domain"
	"github.com/bookineo/bookineo/services/api/internal/event"
	"github.com/bookineo/bookineo/services/api/internal/repository"
)

// DefaultBcryptCost is used in production. Tests lower it.
const DefaultBcryptCost = 12

const minPasswordLength = 8

// AuthService handles sign-up, sign-in and token rotation.
type AuthService struct {
	users      repository.UserRepository
	tokens     repository.RefreshTokenRepository
	jwt        *auth.JWTManager
	producer   *event.Producer
	logger     *slog.Logger
	bcryptCost int
	now        func() time.Time
}

func NewAuthService(
	users repository.UserRepository,
	tokens repository.RefreshTokenRepository,
	jwt *auth.JWTManager,
	producer *event.Producer,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:      users,
		tokens:     tokens,
		jwt:        jwt,
		producer:   producer,
		logger:     logger,
		bcryptCost: DefaultBcryptCost,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SignUpInput holds the parameters for creating an account.
type SignUpInput struct {
	Email     string
	Password  string
	Username  string
	FirstName string
	LastName  string
}

// SignUp creates the account and its profile on the freemium tier. It does
// not sign the user in.
func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (*domain.User, error) {
	email := domain.NormalizeEmail(in.Email)
	username := strings.TrimSpace(in.Username)

	if email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if !domain.ValidUsername(username) {
		return nil, apperrors.InvalidInput("username must be 3 to 30 letters, digits, '_', '.' or '-'")
	}
	if len(in.Password) < minPasswordLength {
		return nil, apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Username:     username,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Subscription: subscription.Freemium,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := s.producer.UserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user signed up",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// SignIn checks credentials and opens a session.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*domain.Session, *domain.User, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, nil, apperrors.InvalidInput("email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil, apperrors.Unauthorized("invalid email or password")
		}
		return nil, nil, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, apperrors.Unauthorized("invalid email or password")
	}

	session, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	s.logger.InfoContext(ctx, "user signed in", slog.String("user_id", user.ID))
	return session, user, nil
}

// Refresh exchanges a refresh token for a new session. The presented token
// is revoked, so each refresh token works once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	if refreshToken == "" {
		return nil, apperrors.InvalidInput("refresh token is required")
	}

	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid or expired refresh token")
	}

	hash := hashToken(refreshToken)
	stored, err := s.tokens.GetByHash(ctx, hash)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.Unauthorized("refresh token not recognised")
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	if !stored.Usable(s.now()) {
		return nil, apperrors.Unauthorized("refresh token has been revoked or has expired")
	}

	if err := s.tokens.Revoke(ctx, hash); err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.Gone("account no longer exists")
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	return s.issueSession(ctx, user)
}

// SignOut revokes refreshToken, or every token of the user when it is empty.
func (s *AuthService) SignOut(ctx context.Context, userID, refreshToken string) error {
	if refreshToken != "" {
		if err := s.tokens.Revoke(ctx, hashToken(refreshToken)); err != nil {
			return fmt.Errorf("revoke refresh token: %w", err)
		}
	} else if err := s.tokens.RevokeByUserID(ctx, userID); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}

	s.logger.InfoContext(ctx, "user signed out", slog.String("user_id", userID))
	return nil
}

func (s *AuthService) issueSession(ctx context.Context, user *domain.User) (*domain.Session, error) {
	access, exp, err := s.jwt.GenerateAccessToken(user.ID, user.Email, string(user.Subscription))
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	refresh, refreshExp, err := s.jwt.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	if err := s.tokens.Create(ctx, user.ID, hashToken(refresh), refreshExp); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &domain.Session{
		UserID:       user.ID,
		Email:        user.Email,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    exp,
	}, nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
