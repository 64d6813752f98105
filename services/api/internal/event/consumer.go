package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	pkgkafka "github.com/bookineo/bookineo/pkg/kafka"
	"github.com/bookineo/bookineo/services/api/internal/storage"
)

// CleanupConsumer deletes blobs orphaned by box.deleted and user.deleted.
type CleanupConsumer struct {
	images  storage.Storage
	avatars storage.Storage
	logger  *slog.Logger
}

// NewCleanupConsumer creates a consumer that removes box images from images
// and avatars from avatars.
func NewCleanupConsumer(images, avatars storage.Storage, logger *slog.Logger) *CleanupConsumer {
	return &CleanupConsumer{images: images, avatars: avatars, logger: logger}
}

// Topics lists the topics Handle understands.
func (c *CleanupConsumer) Topics() []string {
	return []string{TopicBoxDeleted, TopicUserDeleted}
}

// Handle processes one event. Unknown types are skipped.
func (c *CleanupConsumer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	switch event.EventType {
	case TopicBoxDeleted:
		return c.handleBoxDeleted(ctx, event)
	case TopicUserDeleted:
		return c.handleUserDeleted(ctx, event)
	default:
		c.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}
}

func (c *CleanupConsumer) handleBoxDeleted(ctx context.Context, event *pkgkafka.Event) error {
	var data BoxDeletedData
	if err := event.DecodeData(&data); err != nil {
		return fmt.Errorf("decode box.deleted data: %w", err)
	}
	if data.ImageKey == "" {
		return nil
	}

	if err := c.images.Delete(ctx, data.ImageKey); err != nil {
		return fmt.Errorf("delete image of box %s: %w", data.ID, err)
	}

	c.logger.InfoContext(ctx, "deleted image of removed box",
		slog.String("box_id", data.ID),
		slog.String("key", data.ImageKey),
	)
	return nil
}

// handleUserDeleted removes the avatar and every box image of the account.
// All deletions are attempted; failures are joined so the message is retried.
func (c *CleanupConsumer) handleUserDeleted(ctx context.Context, event *pkgkafka.Event) error {
	var data UserDeletedData
	if err := event.DecodeData(&data); err != nil {
		return fmt.Errorf("decode user.deleted data: %w", err)
	}

	var errs []error
	if data.AvatarKey != "" {
		if err := c.avatars.Delete(ctx, data.AvatarKey); err != nil {
			errs = append(errs, fmt.Errorf("delete avatar %s: %w", data.AvatarKey, err))
		}
	}
	for _, key := range data.ImageKeys {
		if err := c.images.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("delete image %s: %w", key, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "deleted blobs of removed account",
		slog.String("user_id", data.ID),
		slog.Int("images", len(data.ImageKeys)),
	)
	return nil
}
