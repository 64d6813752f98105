// Package event publishes the API's domain events.
package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/bookineo/bookineo/pkg/kafka"
	"github.com/bookineo/bookineo/pkg/logger"
	"github.com/bookineo/bookineo/services/api/internal/domain"
)

// Topics for API domain events.
var (
	TopicUserRegistered  = pkgkafka.Topic("user", "registered")
	TopicUserUpdated     = pkgkafka.Topic("user", "updated")
	TopicUserDeleted     = pkgkafka.Topic("user", "deleted")
	TopicBoxCreated      = pkgkafka.Topic("box", "created")
	TopicBoxUpdated      = pkgkafka.Topic("box", "updated")
	TopicBoxDeleted      = pkgkafka.Topic("box", "deleted")
	TopicFavoriteAdded   = pkgkafka.Topic("favorite", "added")
	TopicFavoriteRemoved = pkgkafka.Topic("favorite", "removed")
	TopicVisitRecorded   = pkgkafka.Topic("visit", "recorded")
)

// MetadataActorID is the metadata key holding the user whose request
// produced the event.
const MetadataActorID = "actor_id"

// SourceAPI identifies events emitted by this service.
const SourceAPI = "bookineo-api"

// UserData is the payload of user.registered and user.updated.
type UserData struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Tier      string `json:"subscription"`
}

// UserDeletedData lists the blobs the account left behind.
type UserDeletedData struct {
	ID        string   `json:"id"`
	AvatarKey string   `json:"avatar_key,omitempty"`
	ImageKeys []string `json:"image_keys,omitempty"`
}

// BoxData is the payload of box.created and box.updated.
type BoxData struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	CreatorID string  `json:"creator_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// BoxDeletedData carries the image key for blob cleanup.
type BoxDeletedData struct {
	ID        string `json:"id"`
	CreatorID string `json:"creator_id"`
	ImageKey  string `json:"image_key,omitempty"`
}

// FavoriteData is the payload of favorite.added and favorite.removed.
type FavoriteData struct {
	UserID string `json:"user_id"`
	BoxID  string `json:"box_id"`
}

// VisitData is the payload of visit.recorded.
type VisitData struct {
	ID        string `json:"id"`
	BoxID     string `json:"box_id"`
	VisitorID string `json:"visitor_id"`
	Rating    int    `json:"rating"`
}

// Producer publishes API events.
type Producer struct {
	publisher pkgkafka.Publisher
	logger    *slog.Logger
}

func NewProducer(publisher pkgkafka.Publisher, logger *slog.Logger) *Producer {
	return &Producer{publisher: publisher, logger: logger}
}

func (p *Producer) UserRegistered(ctx context.Context, u *domain.User) error {
	return p.publish(ctx, TopicUserRegistered, u.ID, userData(u))
}

func (p *Producer) UserUpdated(ctx context.Context, u *domain.User) error {
	return p.publish(ctx, TopicUserUpdated, u.ID, userData(u))
}

func (p *Producer) UserDeleted(ctx context.Context, u *domain.User, imageKeys []string) error {
	return p.publish(ctx, TopicUserDeleted, u.ID, UserDeletedData{
		ID:        u.ID,
		AvatarKey: u.AvatarKey,
		ImageKeys: imageKeys,
	})
}

func (p *Producer) BoxCreated(ctx context.Context, b *domain.Box) error {
	return p.publish(ctx, TopicBoxCreated, b.ID, boxData(b))
}

func (p *Producer) BoxUpdated(ctx context.Context, b *domain.Box) error {
	return p.publish(ctx, TopicBoxUpdated, b.ID, boxData(b))
}

func (p *Producer) BoxDeleted(ctx context.Context, b *domain.Box) error {
	return p.publish(ctx, TopicBoxDeleted, b.ID, BoxDeletedData{
		ID:        b.ID,
		CreatorID: b.CreatorID,
		ImageKey:  b.ImageKey,
	})
}

func (p *Producer) FavoriteAdded(ctx context.Context, userID, boxID string) error {
	return p.publish(ctx, TopicFavoriteAdded, boxID, FavoriteData{UserID: userID, BoxID: boxID})
}

func (p *Producer) FavoriteRemoved(ctx context.Context, userID, boxID string) error {
	return p.publish(ctx, TopicFavoriteRemoved, boxID, FavoriteData{UserID: userID, BoxID: boxID})
}

func (p *Producer) VisitRecorded(ctx context.Context, v *domain.Visit) error {
	return p.publish(ctx, TopicVisitRecorded, v.BoxID, VisitData{
		ID:        v.ID,
		BoxID:     v.BoxID,
		VisitorID: v.VisitorID,
		Rating:    v.Rating,
	})
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID string, data any) error {
	evt, err := pkgkafka.NewEvent(topic, aggregateID, SourceAPI, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}
	if id := logger.UserIDFromContext(ctx); id != "" {
		evt.WithMetadata(MetadataActorID, id)
	}

	if err := p.publisher.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "event published",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
		slog.String("event_id", evt.EventID),
	)
	return nil
}

func userData(u *domain.User) UserData {
	return UserData{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Tier:      string(u.Subscription),
	}
}

func boxData(b *domain.Box) BoxData {
	return BoxData{
		ID:        b.ID,
		Name:      b.Name,
		CreatorID: b.CreatorID,
		Latitude:  b.Latitude,
		Longitude: b.Longitude,
	}
}
