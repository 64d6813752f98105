package event

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgkafka "github.com/bookineo/bookineo/pkg/kafka"
	"github.com/bookineo/bookineo/services/api/internal/domain"
	"github.com/bookineo/bookineo/services/api/internal/storage"
	"github.com/bookineo/bookineo/services/api/internal/storage/memory"
)

type failingStorage struct {
	storage.Storage
	deletes int
}

func (f *failingStorage) Delete(context.Context, string) error {
	f.deletes++
	return errors.New("bucket unreachable")
}

func put(t *testing.T, s *memory.Storage, key string) {
	t.Helper()
	_, err := s.Upload(context.Background(), &storage.UploadInput{
		Key:         key,
		ContentType: "image/png",
		Size:        3,
		Data:        bytes.NewReader([]byte("png")),
	})
	require.NoError(t, err)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCleanup_BoxDeletedRemovesImage(t *testing.T) {
	images := memory.New("http://media")
	put(t, images, "book-boxes/corner-1.png")
	put(t, images, "book-boxes/other-2.png")

	producer, pub := newTestProducer()
	require.NoError(t, producer.BoxDeleted(context.Background(), &domain.Box{
		ID: "b-1", CreatorID: "u-1", ImageKey: "book-boxes/corner-1.png",
	}))

	c := NewCleanupConsumer(images, memory.New("http://media"), discardLogger())
	require.NoError(t, c.Handle(context.Background(), pub.events[0]))

	_, _, ok := images.Open("book-boxes/corner-1.png")
	assert.False(t, ok)
	assert.Equal(t, 1, images.Len())
}

func TestCleanup_BoxWithoutImageIsNoop(t *testing.T) {
	failing := &failingStorage{}
	producer, pub := newTestProducer()
	require.NoError(t, producer.BoxDeleted(context.Background(), &domain.Box{ID: "b-1"}))

	c := NewCleanupConsumer(failing, failing, discardLogger())
	require.NoError(t, c.Handle(context.Background(), pub.events[0]))
	assert.Zero(t, failing.deletes)
}

func TestCleanup_UserDeletedRemovesAvatarAndImages(t *testing.T) {
	images := memory.New("http://media")
	avatars := memory.New("http://media")
	put(t, images, "book-boxes/a-1.png")
	put(t, images, "book-boxes/b-2.png")
	put(t, avatars, "avatars/u-1.png")

	producer, pub := newTestProducer()
	require.NoError(t, producer.UserDeleted(context.Background(),
		&domain.User{ID: "u-1", AvatarKey: "avatars/u-1.png"},
		[]string{"book-boxes/a-1.png", "book-boxes/b-2.png", "book-boxes/already-gone.png"},
	))

	c := NewCleanupConsumer(images, avatars, discardLogger())
	require.NoError(t, c.Handle(context.Background(), pub.events[0]))

	assert.Zero(t, images.Len())
	assert.Zero(t, avatars.Len())
}

func TestCleanup_UserDeletedAttemptsEveryKey(t *testing.T) {
	failing := &failingStorage{}
	producer, pub := newTestProducer()
	require.NoError(t, producer.UserDeleted(context.Background(),
		&domain.User{ID: "u-1", AvatarKey: "avatars/u-1.png"},
		[]string{"book-boxes/a.png", "book-boxes/b.png"},
	))

	c := NewCleanupConsumer(failing, failing, discardLogger())
	err := c.Handle(context.Background(), pub.events[0])

	require.Error(t, err)
	assert.Contains(t, err.Error(), "avatars/u-1.png")
	assert.Contains(t, err.Error(), "book-boxes/b.png")
	assert.Equal(t, 3, failing.deletes)
}

func TestCleanup_UnknownEventIsSkipped(t *testing.T) {
	producer, pub := newTestProducer()
	require.NoError(t, producer.FavoriteAdded(context.Background(), "u-1", "b-1"))

	c := NewCleanupConsumer(&failingStorage{}, &failingStorage{}, discardLogger())
	assert.NoError(t, c.Handle(context.Background(), pub.events[0]))
}

func TestCleanup_MalformedPayload(t *testing.T) {
	c := NewCleanupConsumer(&failingStorage{}, &failingStorage{}, discardLogger())
	err := c.Handle(context.Background(), &pkgkafka.Event{
		EventID:   "e-1",
		EventType: TopicBoxDeleted,
		Data:      []byte(`{"id":`),
	})
	assert.Error(t, err)
}

func TestCleanup_RedeliveryIsIgnored(t *testing.T) {
	failing := &failingStorage{}
	producer, pub := newTestProducer()
	require.NoError(t, producer.BoxDeleted(context.Background(), &domain.Box{ID: "b-1", ImageKey: "book-boxes/x.png"}))

	c := NewCleanupConsumer(failing, failing, discardLogger())
	store := pkgkafka.NewMemoryIdempotencyStore(time.Hour)
	require.NoError(t, store.Add(context.Background(), pub.events[0].EventID))

	handler := pkgkafka.IdempotentHandler(store, c.Handle, discardLogger())
	require.NoError(t, handler(context.Background(), pub.events[0]))
	assert.Zero(t, failing.deletes)
}

func TestCleanup_Topics(t *testing.T) {
	c := NewCleanupConsumer(nil, nil, discardLogger())
	assert.ElementsMatch(t, []string{"bookineo.box.deleted", "bookineo.user.deleted"}, c.Topics())
}
