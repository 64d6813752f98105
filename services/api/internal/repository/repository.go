// Package repository declares the persistence ports of the API.
package repository

import (
	"context"
	"time"

	"github.com/bookineo/bookineo/services/api/internal/domain"
)

// UserRepository persists accounts and profiles.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// UpdateProfile writes username, first and last name.
	UpdateProfile(ctx context.Context, user *domain.User) error
	SetAvatar(ctx context.Context, userID, url, key string) error
	// Delete removes the account. Boxes, favorites, visits and refresh
	// tokens go with it through ON DELETE CASCADE.
	Delete(ctx context.Context, id string) error
}

// RefreshTokenRepository stores hashed refresh tokens.
type RefreshTokenRepository interface {
	Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	Revoke(ctx context.Context, tokenHash string) error
	RevokeByUserID(ctx context.Context, userID string) error
}

// BoxRepository persists book boxes.
type BoxRepository interface {
	Create(ctx context.Context, box *domain.Box) error
	GetByID(ctx context.Context, id string) (*domain.Box, error)
	List(ctx context.Context) ([]domain.Box, error)
	ListByCreator(ctx context.Context, creatorID string) ([]domain.Box, error)
	CountByCreator(ctx context.Context, creatorID string) (int, error)
	Update(ctx context.Context, box *domain.Box) error
	Delete(ctx context.Context, id string) error
	ImageKeysByCreator(ctx context.Context, creatorID string) ([]string, error)
}

// BoxCache caches the full map listing.
type BoxCache interface {
	GetAll(ctx context.Context) ([]domain.Box, bool, error)
	SetAll(ctx context.Context, boxes []domain.Box) error
	Invalidate(ctx context.Context) error
}

// FavoriteRepository persists favorites.
type FavoriteRepository interface {
	Add(ctx context.Context, userID, boxID string) error
	Remove(ctx context.Context, userID, boxID string) error
	Exists(ctx context.Context, userID, boxID string) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]domain.FavoriteBox, error)
}

// VisitRepository persists box visits.
type VisitRepository interface {
	Create(ctx context.Context, visit *domain.Visit) error
	ListByBox(ctx context.Context, boxID string, limit, offset int) ([]domain.Visit, int, error)
	GetLatestByVisitor(ctx context.Context, boxID, visitorID string) (*domain.Visit, error)
	CountByVisitor(ctx context.Context, visitorID string) (int, error)
}
