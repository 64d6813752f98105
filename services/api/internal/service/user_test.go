package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/bookineo/bookineo/pkg/errors"
	"github.com/bookineo/bookineo/services/api/internal/domain"
	"github.com/bookineo/bookineo/services/api/internal/storage/memory"
)

type userFixture struct {
	svc     *UserService
	users   *mockUserRepository
	boxes   *mockBoxRepository
	visits  *mockVisitRepository
	tokens  *mockRefreshTokenRepository
	cache   *mockBoxCache
	avatars *memory.Storage
	pub     *recordingPublisher
}

func newUserFixture() *userFixture {
	f := &userFixture{
		users:   new(mockUserRepository),
		boxes:   new(mockBoxRepository),
		visits:  new(mockVisitRepository),
		tokens:  new(mockRefreshTokenRepository),
		cache:   new(mockBoxCache),
		avatars: memory.New("http://localhost:8080"),
	}
	producer, pub := newTestProducer()
	f.pub = pub
	f.svc = NewUserService(f.users, f.boxes, f.visits, f.tokens, f.cache, f.avatars, producer, newTestLogger())
	return f
}

func TestUserGet_PublicForOthers(t *testing.T) {
	f := newUserFixture()
	u := &domain.User{ID: "u-1", Email: "alice@example.com", Username: "alice"}
	f.users.On("GetByID", mock.Anything, "u-1").Return(u, nil)

	self, err := f.svc.Get(context.Background(), "u-1", "u-1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", self.Email)

	other, err := f.svc.Get(context.Background(), "u-2", "u-1")
	require.NoError(t, err)
	assert.Empty(t, other.Email)
}

func TestProfileByUsername(t *testing.T) {
	f := newUserFixture()
	ctx := context.Background()

	f.users.On("GetByUsername", ctx, "alice").Return(&domain.User{ID: "u-1", Email: "a@x", Username: "alice"}, nil)
	f.boxes.On("ListByCreator", ctx, "u-1").Return([]domain.Box{{ID: "b-1"}, {ID: "b-2"}}, nil)
	f.visits.On("CountByVisitor", ctx, "u-1").Return(9, nil)

	p, err := f.svc.ProfileByUsername(ctx, " alice ")
	require.NoError(t, err)
	assert.Empty(t, p.User.Email)
	assert.Len(t, p.Boxes, 2)
	assert.Equal(t, 9, p.VisitCount)
}

func TestProfileByUsername_NotFound(t *testing.T) {
	f := newUserFixture()
	f.users.On("GetByUsername", mock.Anything, "ghost").Return(nil, apperrors.NotFound("user", "ghost"))

	_, err := f.svc.ProfileByUsername(context.Background(), "ghost")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestUpdateProfile(t *testing.T) {
	f := newUserFixture()
	ctx := context.Background()

	f.users.On("GetByID", ctx, "u-1").Return(&domain.User{ID: "u-1", Username: "alice", FirstName: "Alice"}, nil)
	f.users.On("UpdateProfile", ctx, mock.MatchedBy(func(u *domain.User) bool {
		return u.Username == "alice_m" && u.FirstName == "Alice" && u.LastName == "Martin"
	})).Return(nil)

	u, err := f.svc.UpdateProfile(ctx, "u-1", UpdateProfileInput{Username: strPtr("alice_m"), LastName: strPtr(" Martin ")})
	require.NoError(t, err)
	assert.Equal(t, "alice_m", u.Username)
	assert.Equal(t, []string{"bookineo.user.updated"}, f.pub.topics)
}

func TestUpdateProfile_InvalidUsername(t *testing.T) {
	f := newUserFixture()
	f.users.On("GetByID", mock.Anything, "u-1").Return(&domain.User{ID: "u-1", Username: "alice"}, nil)

	_, err := f.svc.UpdateProfile(context.Background(), "u-1", UpdateProfileInput{Username: strPtr("no")})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	f.users.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything)
}

func TestSetAvatar_ReplacesOldKey(t *testing.T) {
	f := newUserFixture()
	ctx := context.Background()

	_, err := f.avatars.Upload(ctx, uploadInput("avatars/u-1.jpg"))
	require.NoError(t, err)

	f.users.On("GetByID", ctx, "u-1").Return(&domain.User{ID: "u-1", AvatarKey: "avatars/u-1.jpg"}, nil)
	f.users.On("SetAvatar", ctx, "u-1", "http://localhost:8080/media/avatars/u-1.png", "avatars/u-1.png").Return(nil)

	u, err := f.svc.SetAvatar(ctx, "u-1", bytes.NewReader(pngBytes), int64(len(pngBytes)))
	require.NoError(t, err)
	require.NotNil(t, u.AvatarURL)
	assert.Equal(t, "avatars/u-1.png", u.AvatarKey)

	_, _, ok := f.avatars.Open("avatars/u-1.jpg")
	assert.False(t, ok)
	_, ct, ok := f.avatars.Open("avatars/u-1.png")
	assert.True(t, ok)
	assert.Equal(t, "image/png", ct)
}

func TestDeleteAccount(t *testing.T) {
	f := newUserFixture()
	ctx := context.Background()

	u := &domain.User{ID: "u-1", AvatarKey: "avatars/u-1.png"}
	f.users.On("GetByID", ctx, "u-1").Return(u, nil)
	f.boxes.On("ImageKeysByCreator", ctx, "u-1").Return([]string{"book-boxes/a.png"}, nil)
	f.tokens.On("RevokeByUserID", ctx, "u-1").Return(nil)
	f.users.On("Delete", ctx, "u-1").Return(nil)
	f.cache.On("Invalidate", ctx).Return(nil)

	require.NoError(t, f.svc.DeleteAccount(ctx, "u-1"))
	assert.Equal(t, []string{"bookineo.user.deleted"}, f.pub.topics)
	f.users.AssertExpectations(t)
	f.tokens.AssertExpectations(t)
}

func TestDeleteAccount_DeleteFails(t *testing.T) {
	f := newUserFixture()

	f.users.On("GetByID", mock.Anything, "u-1").Return(&domain.User{ID: "u-1"}, nil)
	f.boxes.On("ImageKeysByCreator", mock.Anything, "u-1").Return([]string{}, nil)
	f.tokens.On("RevokeByUserID", mock.Anything, "u-1").Return(nil)
	f.users.On("Delete", mock.Anything, "u-1").Return(errors.New("db down"))

	require.Error(t, f.svc.DeleteAccount(context.Background(), "u-1"))
	assert.Empty(t, f.pub.topics)
}
