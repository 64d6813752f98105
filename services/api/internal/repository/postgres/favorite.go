package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/bookineo/bookineo/pkg/database"
	apperrors "github.com/bookineo/bookineo/pkg/errors"
	"github.com/bookineo/bookineo/services/api/internal/domain"
)

const (
	insertFavoriteQuery = `INSERT INTO favorites (user_id, box_id, created_at) VALUES ($1, $2, $3)`
	deleteFavoriteQuery = `DELETE FROM favorites WHERE user_id = $1 AND box_id = $2`
	existsFavoriteQuery = `SELECT EXISTS (SELECT 1 FROM favorites WHERE user_id = $1 AND box_id = $2)`
	listFavoritesQuery  = `
		SELECT b.id, b.name, b.description, b.image_url, COALESCE(b.image_key, ''), b.latitude, b.longitude,
		       b.creator_id, b.creator_username, b.created_at, b.updated_at, f.created_at
		FROM favorites f
		JOIN book_boxes b ON b.id = f.box_id
		WHERE f.user_id = $1
		ORDER BY f.created_at DESC`
)

// FavoriteRepository implements repository.FavoriteRepository.
type FavoriteRepository struct {
	db database.DBTX
}

func NewFavoriteRepository(db database.DBTX) *FavoriteRepository {
	return &FavoriteRepository{db: db}
}

// Add bookmarks a box. A second Add for the same pair is a CONFLICT; an
// unknown box is NOT_FOUND.
func (r *FavoriteRepository) Add(ctx context.Context, userID, boxID string) (err error) {
	ctx, end := database.TraceQuery(ctx, "AddFavorite", insertFavoriteQuery)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, insertFavoriteQuery, userID, boxID, time.Now().UTC())
	switch {
	case err == nil:
		return nil
	case database.IsUniqueViolation(err):
		return apperrors.Conflict("box is already in favorites")
	case database.IsForeignKeyViolation(err):
		return apperrors.NotFound("box", boxID)
	default:
		return fmt.Errorf("insert favorite: %w", err)
	}
}

func (r *FavoriteRepository) Remove(ctx context.Context, userID, boxID string) (err error) {
	ctx, end := database.TraceQuery(ctx, "RemoveFavorite", deleteFavoriteQuery)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, deleteFavoriteQuery, userID, boxID)
	if err != nil {
		return fmt.Errorf("delete favorite: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("favorite", boxID)
	}
	return nil
}

func (r *FavoriteRepository) Exists(ctx context.Context, userID, boxID string) (_ bool, err error) {
	ctx, end := database.TraceQuery(ctx, "FavoriteExists", existsFavoriteQuery)
	defer func() { end(err) }()

	var ok bool
	if err = r.db.QueryRow(ctx, existsFavoriteQuery, userID, boxID).Scan(&ok); err != nil {
		return false, fmt.Errorf("query favorite: %w", err)
	}
	return ok, nil
}

func (r *FavoriteRepository) ListByUser(ctx context.Context, userID string) (_ []domain.FavoriteBox, err error) {
	ctx, end := database.TraceQuery(ctx, "ListFavorites", listFavoritesQuery)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, listFavoritesQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	out := []domain.FavoriteBox{}
	for rows.Next() {
		var fb domain.FavoriteBox
		b := &fb.Box
		if err = rows.Scan(
			&b.ID, &b.Name, &b.Description, &b.ImageURL, &b.ImageKey, &b.Latitude, &b.Longitude,
			&b.CreatorID, &b.CreatorUsername, &b.CreatedAt, &b.UpdatedAt, &fb.FavoritedAt,
		); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		out = append(out, fb)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate favorites: %w", err)
	}
	return out, nil
}
