package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bookineo/bookineo/services/api/internal/domain"
	"github.com/bookineo/bookineo/services/api/internal/event"
	"github.com/bookineo/bookineo/services/api/internal/repository"
)

// FavoriteService manages a user's bookmarked boxes. The favorite limit of
// the tier table is advertised only; it is not enforced.
type FavoriteService struct {
	favorites repository.FavoriteRepository
	producer  *event.Producer
	logger    *slog.Logger
}

func NewFavoriteService(favorites repository.FavoriteRepository, producer *event.Producer, logger *slog.Logger) *FavoriteService {
	return &FavoriteService{favorites: favorites, producer: producer, logger: logger}
}

func (s *FavoriteService) List(ctx context.Context, userID string) ([]domain.FavoriteBox, error) {
	favs, err := s.favorites.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	return favs, nil
}

func (s *FavoriteService) IsFavorite(ctx context.Context, userID, boxID string) (bool, error) {
	ok, err := s.favorites.Exists(ctx, userID, boxID)
	if err != nil {
		return false, fmt.Errorf("check favorite: %w", err)
	}
	return ok, nil
}

func (s *FavoriteService) Add(ctx context.Context, userID, boxID string) error {
	if err := s.favorites.Add(ctx, userID, boxID); err != nil {
		return fmt.Errorf("add favorite: %w", err)
	}
	if err := s.producer.FavoriteAdded(ctx, userID, boxID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish favorite.added event",
			slog.String("box_id", boxID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

func (s *FavoriteService) Remove(ctx context.Context, userID, boxID string) error {
	if err := s.favorites.Remove(ctx, userID, boxID); err != nil {
		return fmt.Errorf("remove favorite: %w", err)
	}
	if err := s.producer.FavoriteRemoved(ctx, userID, boxID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish favorite.removed event",
			slog.String("box_id", boxID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}
