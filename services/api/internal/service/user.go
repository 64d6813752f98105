package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/bookineo/bookineo/pkg/errors"
	"github.com/bookineo/bookineo/services/api/internal/domain"
	"github.com/bookineo/bookineo/services/api/internal/event"
	"github.com/bookineo/bookineo/services/api/internal/repository"
	"github.com/bookineo/bookineo/services/api/internal/storage"
)

// UserService manages profiles and account deletion.
type UserService struct {
	users    repository.UserRepository
	boxes    repository.BoxRepository
	visits   repository.VisitRepository
	tokens   repository.RefreshTokenRepository
	cache    repository.BoxCache
	avatars  storage.Storage
	producer *event.Producer
	logger   *slog.Logger
}

func NewUserService(
	users repository.UserRepository,
	boxes repository.BoxRepository,
	visits repository.VisitRepository,
	tokens repository.RefreshTokenRepository,
	cache repository.BoxCache,
	avatars storage.Storage,
	producer *event.Producer,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:    users,
		boxes:    boxes,
		visits:   visits,
		tokens:   tokens,
		cache:    cache,
		avatars:  avatars,
		producer: producer,
		logger:   logger,
	}
}

// Get returns the user with id. Other viewers get the public view.
func (s *UserService) Get(ctx context.Context, viewerID, id string) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if viewerID != u.ID {
		pub := u.Public()
		return &pub, nil
	}
	return u, nil
}

// ProfileByUsername returns the public profile page data for username.
func (s *UserService) ProfileByUsername(ctx context.Context, username string) (*domain.PublicProfile, error) {
	u, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}

	boxes, err := s.boxes.ListByCreator(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("list user boxes: %w", err)
	}
	visits, err := s.visits.CountByVisitor(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("count user visits: %w", err)
	}

	return &domain.PublicProfile{User: u.Public(), Boxes: boxes, VisitCount: visits}, nil
}

// UpdateProfileInput holds the editable profile fields. Nil means unchanged.
type UpdateProfileInput struct {
	Username  *string
	FirstName *string
	LastName  *string
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if !domain.ValidUsername(username) {
			return nil, apperrors.InvalidInput("username must be 3 to 30 letters, digits, '_', '.' or '-'")
		}
		u.Username = username
	}
	if in.FirstName != nil {
		u.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		u.LastName = strings.TrimSpace(*in.LastName)
	}

	if err := s.users.UpdateProfile(ctx, u); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	if err := s.producer.UserUpdated(ctx, u); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.updated event",
			slog.String("user_id", u.ID),
			slog.String("error", err.Error()),
		)
	}
	return u, nil
}

// SetAvatar stores a new avatar image and points the profile at it. A
// previous avatar under a different key is removed.
func (s *UserService) SetAvatar(ctx context.Context, userID string, r io.Reader, size int64) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	img, err := storage.SniffImage(r)
	if err != nil {
		return nil, err
	}

	res, err := s.avatars.Upload(ctx, &storage.UploadInput{
		Key:         storage.AvatarKey(u.ID, img.Ext),
		ContentType: img.ContentType,
		Size:        size,
		Data:        img.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("upload avatar: %w", err)
	}

	if err := s.users.SetAvatar(ctx, u.ID, res.URL, res.Key); err != nil {
		return nil, fmt.Errorf("save avatar: %w", err)
	}

	if old := u.AvatarKey; old != "" && old != res.Key {
		if err := s.avatars.Delete(ctx, old); err != nil {
			s.logger.WarnContext(ctx, "failed to delete previous avatar",
				slog.String("user_id", u.ID),
				slog.String("key", old),
				slog.String("error", err.Error()),
			)
		}
	}

	u.AvatarURL = &res.URL
	u.AvatarKey = res.Key
	u.UpdatedAt = time.Now().UTC()
	return u, nil
}

// DeleteAccount removes the user and everything they own. Blob cleanup
// happens asynchronously from the user.deleted event.
func (s *UserService) DeleteAccount(ctx context.Context, userID string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	imageKeys, err := s.boxes.ImageKeysByCreator(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("list box images: %w", err)
	}

	if err := s.tokens.RevokeByUserID(ctx, u.ID); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	if err := s.users.Delete(ctx, u.ID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate box cache", slog.String("error", err.Error()))
	}

	if err := s.producer.UserDeleted(ctx, u, imageKeys); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.deleted event",
			slog.String("user_id", u.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "account deleted",
		slog.String("user_id", u.ID),
		slog.Int("box_images", len(imageKeys)),
	)
	return nil
}
