package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/bookineo/bookineo/pkg/errors"
	"github.com/bookineo/bookineo/services/api/internal/domain"
	"github.com/bookineo/bookineo/services/api/internal/event"
	"github.com/bookineo/bookineo/services/api/internal/repository"
	"github.com/bookineo/bookineo/services/api/internal/storage"
)

const boxImagePrefix = "book-boxes/"

// BoxService manages book boxes and their images.
type BoxService struct {
	boxes    repository.BoxRepository
	users    repository.UserRepository
	cache    repository.BoxCache
	images   storage.Storage
	producer *event.Producer
	logger   *slog.Logger
}

func NewBoxService(
	boxes repository.BoxRepository,
	users repository.UserRepository,
	cache repository.BoxCache,
	images storage.Storage,
	producer *event.Producer,
	logger *slog.Logger,
) *BoxService {
	return &BoxService{
		boxes:    boxes,
		users:    users,
		cache:    cache,
		images:   images,
		producer: producer,
		logger:   logger,
	}
}

// List returns every box for the map. Reads go through the cache; a cache
// failure falls back to the database.
func (s *BoxService) List(ctx context.Context) ([]domain.Box, error) {
	boxes, ok, err := s.cache.GetAll(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "box cache read failed", slog.String("error", err.Error()))
	}
	if ok {
		return boxes, nil
	}

	boxes, err = s.boxes.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list boxes: %w", err)
	}
	if err := s.cache.SetAll(ctx, boxes); err != nil {
		s.logger.WarnContext(ctx, "box cache write failed", slog.String("error", err.Error()))
	}
	return boxes, nil
}

func (s *BoxService) Get(ctx context.Context, id string) (*domain.Box, error) {
	b, err := s.boxes.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get box: %w", err)
	}
	return b, nil
}

func (s *BoxService) ListByCreator(ctx context.Context, creatorID string) ([]domain.Box, error) {
	boxes, err := s.boxes.ListByCreator(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("list boxes by creator: %w", err)
	}
	return boxes, nil
}

// CountByOwner returns the exact number of boxes owned by ownerID. It is
// never served from cache because clients base quota decisions on it.
func (s *BoxService) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	if ownerID == "" {
		return 0, apperrors.InvalidInput("owner_id is required")
	}
	n, err := s.boxes.CountByCreator(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("count boxes: %w", err)
	}
	return n, nil
}

// CreateBoxInput holds the parameters for a new box. ImageKey, when set,
// must come from UploadImage.
type CreateBoxInput struct {
	Name        string
	Description string
	Latitude    float64
	Longitude   float64
	ImageKey    string
}

// Create inserts a box owned by creatorID.
//
// The tier limit is not checked here. Box quotas are enforced by the client
// before it calls this endpoint, so a client that skips the check can
// exceed its limit.
func (s *BoxService) Create(ctx context.Context, creatorID string, in CreateBoxInput) (*domain.Box, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.InvalidInput("name is required")
	}
	if err := validateCoordinates(in.Latitude, in.Longitude); err != nil {
		return nil, err
	}
	if err := validateImageKey(in.ImageKey); err != nil {
		return nil, err
	}

	creator, err := s.users.GetByID(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("get creator: %w", err)
	}

	now := time.Now().UTC()
	box := &domain.Box{
		ID:              uuid.NewString(),
		Name:            name,
		Description:     strings.TrimSpace(in.Description),
		Latitude:        in.Latitude,
		Longitude:       in.Longitude,
		CreatorID:       creator.ID,
		CreatorUsername: creator.Username,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.attachImage(box, in.ImageKey)

	if err := s.boxes.Create(ctx, box); err != nil {
		return nil, fmt.Errorf("create box: %w", err)
	}
	s.invalidate(ctx)

	if err := s.producer.BoxCreated(ctx, box); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish box.created event",
			slog.String("box_id", box.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "box created",
		slog.String("box_id", box.ID),
		slog.String("creator_id", box.CreatorID),
	)
	return box, nil
}

// UpdateBoxInput holds editable box fields. Nil means unchanged; an empty
// ImageKey removes the image.
type UpdateBoxInput struct {
	Name        *string
	Description *string
	Latitude    *float64
	Longitude   *float64
	ImageKey    *string
}

// Update edits a box. Only its creator may do so.
func (s *BoxService) Update(ctx context.Context, userID, boxID string, in UpdateBoxInput) (*domain.Box, error) {
	box, err := s.owned(ctx, userID, boxID)
	if err != nil {
		return nil, err
	}
	oldImage := box.ImageKey

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperrors.InvalidInput("name cannot be empty")
		}
		box.Name = name
	}
	if in.Description != nil {
		box.Description = strings.TrimSpace(*in.Description)
	}
	if in.Latitude != nil {
		box.Latitude = *in.Latitude
	}
	if in.Longitude != nil {
		box.Longitude = *in.Longitude
	}
	if err := validateCoordinates(box.Latitude, box.Longitude); err != nil {
		return nil, err
	}
	if in.ImageKey != nil {
		if err := validateImageKey(*in.ImageKey); err != nil {
			return nil, err
		}
		s.attachImage(box, *in.ImageKey)
	}
	box.UpdatedAt = time.Now().UTC()

	if err := s.boxes.Update(ctx, box); err != nil {
		return nil, fmt.Errorf("update box: %w", err)
	}
	s.invalidate(ctx)

	if oldImage != "" && oldImage != box.ImageKey {
		if err := s.images.Delete(ctx, oldImage); err != nil {
			s.logger.WarnContext(ctx, "failed to delete replaced box image",
				slog.String("box_id", box.ID),
				slog.String("key", oldImage),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.producer.BoxUpdated(ctx, box); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish box.updated event",
			slog.String("box_id", box.ID),
			slog.String("error", err.Error()),
		)
	}
	return box, nil
}

// Delete removes a box. Only its creator may do so. The image is removed by
// the cleanup worker when it sees box.deleted.
func (s *BoxService) Delete(ctx context.Context, userID, boxID string) error {
	box, err := s.owned(ctx, userID, boxID)
	if err != nil {
		return err
	}

	if err := s.boxes.Delete(ctx, box.ID); err != nil {
		return fmt.Errorf("delete box: %w", err)
	}
	s.invalidate(ctx)

	if err := s.producer.BoxDeleted(ctx, box); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish box.deleted event",
			slog.String("box_id", box.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "box deleted",
		slog.String("box_id", box.ID),
		slog.String("creator_id", box.CreatorID),
	)
	return nil
}

// UploadImage stores a box image and returns its key and public URL. The
// key is then passed to Create or Update.
func (s *BoxService) UploadImage(ctx context.Context, boxName string, r io.Reader, size int64) (*storage.UploadResult, error) {
	img, err := storage.SniffImage(r)
	if err != nil {
		return nil, err
	}

	res, err := s.images.Upload(ctx, &storage.UploadInput{
		Key:         storage.BoxImageKey(boxName, img.Ext),
		ContentType: img.ContentType,
		Size:        size,
		Data:        img.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("upload box image: %w", err)
	}
	return res, nil
}

func (s *BoxService) owned(ctx context.Context, userID, boxID string) (*domain.Box, error) {
	box, err := s.boxes.GetByID(ctx, boxID)
	if err != nil {
		return nil, fmt.Errorf("get box: %w", err)
	}
	if !box.OwnedBy(userID) {
		return nil, apperrors.Forbidden("only the creator can modify this box")
	}
	return box, nil
}

func (s *BoxService) attachImage(box *domain.Box, key string) {
	if key == "" {
		box.ImageKey = ""
		box.ImageURL = nil
		return
	}
	url := s.images.PublicURL(key)
	box.ImageKey = key
	box.ImageURL = &url
}

func (s *BoxService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate box cache", slog.String("error", err.Error()))
	}
}

func validateCoordinates(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return apperrors.InvalidInput("latitude must be between -90 and 90")
	}
	if lng < -180 || lng > 180 {
		return apperrors.InvalidInput("longitude must be between -180 and 180")
	}
	return nil
}

func validateImageKey(key string) error {
	if key == "" {
		return nil
	}
	if !strings.HasPrefix(key, boxImagePrefix) || strings.Contains(key, "..") {
		return apperrors.InvalidInput("image_key must reference an uploaded box image")
	}
	return nil
}
