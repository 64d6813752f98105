package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookineo/bookineo/pkg/database"
	apperrors "github.com/bookineo/bookineo/pkg/errors"
	"github.com/bookineo/bookineo/services/api/internal/domain"
)

var boxCols = []string{
	"id", "name", "description", "image_url", "image_key", "latitude", "longitude",
	"creator_id", "creator_username", "created_at", "updated_at",
}

func sampleBox() *domain.Box {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Box{
		ID:              "b-1",
		Name:            "Boîte du parc",
		Description:     "Près du kiosque",
		Latitude:        48.8566,
		Longitude:       2.3522,
		CreatorID:       "u-1",
		CreatorUsername: "alice",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func addBoxRow(rows *pgxmock.Rows, b *domain.Box) *pgxmock.Rows {
	return rows.AddRow(b.ID, b.Name, b.Description, b.ImageURL, b.ImageKey, b.Latitude, b.Longitude,
		b.CreatorID, b.CreatorUsername, b.CreatedAt, b.UpdatedAt)
}

func newBoxTestFixture(t *testing.T) (*BoxRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return NewBoxRepository(mock), mock
}

func TestBoxRepository_Create(t *testing.T) {
	repo, mock := newBoxTestFixture(t)
	defer mock.Close()

	b := sampleBox()
	mock.ExpectExec("INSERT INTO book_boxes").
		WithArgs(b.ID, b.Name, b.Description, b.ImageURL, b.ImageKey, b.Latitude, b.Longitude,
			b.CreatorID, b.CreatorUsername, b.CreatedAt, b.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), b))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBoxRepository_Create_UnknownCreator(t *testing.T) {
	repo, mock := newBoxTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO book_boxes").
		WithArgs(anyArgs(11)...).
		WillReturnError(&pgconn.PgError{Code: "23503"})

	err := repo.Create(context.Background(), sampleBox())
	assert.True(t, apperrors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBoxRepository_GetByID(t *testing.T) {
	repo, mock := newBoxTestFixture(t)
	defer mock.Close()

	b := sampleBox()
	mock.ExpectQuery("SELECT .+ FROM book_boxes WHERE id =").
		WithArgs(b.ID).
		WillReturnRows(addBoxRow(pgxmock.NewRows(boxCols), b))
	mock.ExpectQuery("SELECT .+ FROM book_boxes WHERE id =").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.GetByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.Name, got.Name)
	assert.Nil(t, got.ImageURL)

	_, err = repo.GetByID(context.Background(), "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestBoxRepository_List_EmptyIsNotNil(t *testing.T) {
	repo, mock := newBoxTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM book_boxes ORDER BY").
		WillReturnRows(pgxmock.NewRows(boxCols))

	got, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestBoxRepository_ListByCreator(t *testing.T) {
	repo, mock := newBoxTestFixture(t)
	defer mock.Close()

	a, b := sampleBox(), sampleBox()
	b.ID = "b-2"
	rows := addBoxRow(addBoxRow(pgxmock.NewRows(boxCols), a), b)
	mock.ExpectQuery("SELECT .+ FROM book_boxes WHERE creator_id =").
		WithArgs("u-1").
		WillReturnRows(rows)

	got, err := repo.ListByCreator(context.Background(), "u-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b-2", got[1].ID)
}

func TestBoxRepository_CountByCreator(t *testing.T) {
	repo, mock := newBoxTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM book_boxes WHERE creator_id =").
		WithArgs("u-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM book_boxes").
		WithArgs("u-2").
		WillReturnError(errors.New("timeout"))

	n, err := repo.CountByCreator(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	_, err = repo.CountByCreator(context.Background(), "u-2")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBoxRepository_UpdateAndDelete(t *testing.T) {
	repo, mock := newBoxTestFixture(t)
	defer mock.Close()

	b := sampleBox()
	mock.ExpectExec("UPDATE book_boxes").
		WithArgs(b.Name, b.Description, b.ImageURL, b.ImageKey, b.Latitude, b.Longitude, b.UpdatedAt, b.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("DELETE FROM book_boxes").
		WithArgs(b.ID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, repo.Update(context.Background(), b))
	assert.True(t, apperrors.IsNotFound(repo.Delete(context.Background(), b.ID)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBoxRepository_ImageKeysByCreator(t *testing.T) {
	repo, mock := newBoxTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT image_key FROM book_boxes").
		WithArgs("u-1").
		WillReturnRows(pgxmock.NewRows([]string{"image_key"}).
			AddRow("book-boxes/a.png").AddRow("book-boxes/b.jpg"))

	keys, err := repo.ImageKeysByCreator(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"book-boxes/a.png", "book-boxes/b.jpg"}, keys)
}
