package service

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/stretchr/testify/mock"

	pkgkafka "github.com/bookineo/bookineo/pkg/kafka"
	"github.com/bookineo/bookineo/services/api/internal/domain"
	"github.com/bookineo/bookineo/services/api/internal/event"
	"github.com/bookineo/bookineo/services/api/internal/storage"
)

// --- Mock User Repository ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) UpdateProfile(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepository) SetAvatar(ctx context.Context, userID, url, key string) error {
	return m.Called(ctx, userID, url, key).Error(0)
}

func (m *mockUserRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// --- Mock Refresh Token Repository ---

type mockRefreshTokenRepository struct {
	mock.Mock
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	return m.Called(ctx, userID, tokenHash, expiresAt).Error(0)
}

func (m *mockRefreshTokenRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefreshToken), args.Error(1)
}

func (m *mockRefreshTokenRepository) Revoke(ctx context.Context, tokenHash string) error {
	return m.Called(ctx, tokenHash).Error(0)
}

func (m *mockRefreshTokenRepository) RevokeByUserID(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

// --- Mock Box Repository ---

type mockBoxRepository struct {
	mock.Mock
}

func (m *mockBoxRepository) Create(ctx context.Context, box *domain.Box) error {
	return m.Called(ctx, box).Error(0)
}

func (m *mockBoxRepository) GetByID(ctx context.Context, id string) (*domain.Box, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Box), args.Error(1)
}

func (m *mockBoxRepository) List(ctx context.Context) ([]domain.Box, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Box), args.Error(1)
}

func (m *mockBoxRepository) ListByCreator(ctx context.Context, creatorID string) ([]domain.Box, error) {
	args := m.Called(ctx, creatorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Box), args.Error(1)
}

func (m *mockBoxRepository) CountByCreator(ctx context.Context, creatorID string) (int, error) {
	args := m.Called(ctx, creatorID)
	return args.Int(0), args.Error(1)
}

func (m *mockBoxRepository) Update(ctx context.Context, box *domain.Box) error {
	return m.Called(ctx, box).Error(0)
}

func (m *mockBoxRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockBoxRepository) ImageKeysByCreator(ctx context.Context, creatorID string) ([]string, error) {
	args := m.Called(ctx, creatorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// --- Mock Box Cache ---

type mockBoxCache struct {
	mock.Mock
}

func (m *mockBoxCache) GetAll(ctx context.Context) ([]domain.Box, bool, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]domain.Box), args.Bool(1), args.Error(2)
}

func (m *mockBoxCache) SetAll(ctx context.Context, boxes []domain.Box) error {
	return m.Called(ctx, boxes).Error(0)
}

func (m *mockBoxCache) Invalidate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// --- Mock Favorite Repository ---

type mockFavoriteRepository struct {
	mock.Mock
}

func (m *mockFavoriteRepository) Add(ctx context.Context, userID, boxID string) error {
	return m.Called(ctx, userID, boxID).Error(0)
}

func (m *mockFavoriteRepository) Remove(ctx context.Context, userID, boxID string) error {
	return m.Called(ctx, userID, boxID).Error(0)
}

func (m *mockFavoriteRepository) Exists(ctx context.Context, userID, boxID string) (bool, error) {
	args := m.Called(ctx, userID, boxID)
	return args.Bool(0), args.Error(1)
}

func (m *mockFavoriteRepository) ListByUser(ctx context.Context, userID string) ([]domain.FavoriteBox, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FavoriteBox), args.Error(1)
}

// --- Mock Visit Repository ---

type mockVisitRepository struct {
	mock.Mock
}

func (m *mockVisitRepository) Create(ctx context.Context, visit *domain.Visit) error {
	return m.Called(ctx, visit).Error(0)
}

func (m *mockVisitRepository) ListByBox(ctx context.Context, boxID string, limit, offset int) ([]domain.Visit, int, error) {
	args := m.Called(ctx, boxID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Visit), args.Int(1), args.Error(2)
}

func (m *mockVisitRepository) GetLatestByVisitor(ctx context.Context, boxID, visitorID string) (*domain.Visit, error) {
	args := m.Called(ctx, boxID, visitorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Visit), args.Error(1)
}

func (m *mockVisitRepository) CountByVisitor(ctx context.Context, visitorID string) (int, error) {
	args := m.Called(ctx, visitorID)
	return args.Int(0), args.Error(1)
}

// --- Test Helpers ---

// recordingPublisher captures published topics.
type recordingPublisher struct {
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ *pkgkafka.Event) error {
	p.topics = append(p.topics, topic)
	return nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestProducer() (*event.Producer, *recordingPublisher) {
	pub := &recordingPublisher{}
	return event.NewProducer(pub, newTestLogger()), pub
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func uploadInput(key string) *storage.UploadInput {
	return &storage.UploadInput{Key: key, ContentType: "image/png", Data: bytes.NewReader([]byte("img"))}
}
