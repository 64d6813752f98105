package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bookineo/bookineo/pkg/database"
	apperrors "github.com/bookineo/bookineo/pkg/errors"
	"github.com/bookineo/bookineo/services/api/internal/domain"
)

const boxColumns = `id, name, description, image_url, COALESCE(image_key, ''), latitude, longitude, creator_id, creator_username, created_at, updated_at`

const (
	insertBoxQuery = `
		INSERT INTO book_boxes (id, name, description, image_url, image_key, latitude, longitude,
		                        creator_id, creator_username, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10, $11)`
	selectBoxByIDQuery     = `SELECT ` + boxColumns + ` FROM book_boxes WHERE id = $1`
	selectBoxesQuery       = `SELECT ` + boxColumns + ` FROM book_boxes ORDER BY created_at DESC`
	selectBoxesByCreator   = `SELECT ` + boxColumns + ` FROM book_boxes WHERE creator_id = $1 ORDER BY created_at DESC`
	countBoxesByCreator    = `SELECT COUNT(*) FROM book_boxes WHERE creator_id = $1`
	selectImageKeysCreator = `SELECT image_key FROM book_boxes WHERE creator_id = $1 AND image_key IS NOT NULL`
	updateBoxQuery         = `
		UPDATE book_boxes
		SET name = $1, description = $2, image_url = $3, image_key = NULLIF($4, ''),
		    latitude = $5, longitude = $6, updated_at = $7
		WHERE id = $8`
	deleteBoxQuery = `DELETE FROM book_boxes WHERE id = $1`
)

// BoxRepository implements repository.BoxRepository.
type BoxRepository struct {
	db database.DBTX
}

func NewBoxRepository(db database.DBTX) *BoxRepository {
	return &BoxRepository{db: db}
}

func (r *BoxRepository) Create(ctx context.Context, b *domain.Box) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateBox", insertBoxQuery)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, insertBoxQuery,
		b.ID, b.Name, b.Description, b.ImageURL, b.ImageKey, b.Latitude, b.Longitude,
		b.CreatorID, b.CreatorUsername, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return apperrors.NotFound("user", b.CreatorID)
		}
		return fmt.Errorf("insert box: %w", err)
	}
	return nil
}

func (r *BoxRepository) GetByID(ctx context.Context, id string) (_ *domain.Box, err error) {
	ctx, end := database.TraceQuery(ctx, "GetBoxByID", selectBoxByIDQuery)
	defer func() { end(err) }()

	b, err := scanBox(r.db.QueryRow(ctx, selectBoxByIDQuery, id))
	if err != nil {
		return nil, notFoundOr(err, "box", id, func(err error) error {
			return fmt.Errorf("query box: %w", err)
		})
	}
	return b, nil
}

func (r *BoxRepository) List(ctx context.Context) (_ []domain.Box, err error) {
	ctx, end := database.TraceQuery(ctx, "ListBoxes", selectBoxesQuery)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, selectBoxesQuery)
	if err != nil {
		return nil, fmt.Errorf("list boxes: %w", err)
	}
	return collectBoxes(rows)
}

func (r *BoxRepository) ListByCreator(ctx context.Context, creatorID string) (_ []domain.Box, err error) {
	ctx, end := database.TraceQuery(ctx, "ListBoxesByCreator", selectBoxesByCreator)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, selectBoxesByCreator, creatorID)
	if err != nil {
		return nil, fmt.Errorf("list boxes by creator: %w", err)
	}
	return collectBoxes(rows)
}

// CountByCreator returns the exact number of boxes owned by creatorID.
func (r *BoxRepository) CountByCreator(ctx context.Context, creatorID string) (_ int, err error) {
	ctx, end := database.TraceQuery(ctx, "CountBoxesByCreator", countBoxesByCreator)
	defer func() { end(err) }()

	var n int
	if err = r.db.QueryRow(ctx, countBoxesByCreator, creatorID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count boxes: %w", err)
	}
	return n, nil
}

func (r *BoxRepository) Update(ctx context.Context, b *domain.Box) (err error) {
	ctx, end := database.TraceQuery(ctx, "UpdateBox", updateBoxQuery)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, updateBoxQuery,
		b.Name, b.Description, b.ImageURL, b.ImageKey, b.Latitude, b.Longitude, b.UpdatedAt, b.ID,
	)
	if err != nil {
		return fmt.Errorf("update box: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("box", b.ID)
	}
	return nil
}

func (r *BoxRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, end := database.TraceQuery(ctx, "DeleteBox", deleteBoxQuery)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, deleteBoxQuery, id)
	if err != nil {
		return fmt.Errorf("delete box: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("box", id)
	}
	return nil
}

// ImageKeysByCreator lists the storage keys of every image attached to the
// creator's boxes. Account deletion uses it before the rows cascade away.
func (r *BoxRepository) ImageKeysByCreator(ctx context.Context, creatorID string) (_ []string, err error) {
	ctx, end := database.TraceQuery(ctx, "ImageKeysByCreator", selectImageKeysCreator)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, selectImageKeysCreator, creatorID)
	if err != nil {
		return nil, fmt.Errorf("list image keys: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err = rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan image key: %w", err)
		}
		keys = append(keys, k)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate image keys: %w", err)
	}
	return keys, nil
}

func scanBox(row pgx.Row) (*domain.Box, error) {
	var b domain.Box
	err := row.Scan(
		&b.ID, &b.Name, &b.Description, &b.ImageURL, &b.ImageKey, &b.Latitude, &b.Longitude,
		&b.CreatorID, &b.CreatorUsername, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func collectBoxes(rows pgx.Rows) ([]domain.Box, error) {
	defer rows.Close()

	boxes := []domain.Box{}
	for rows.Next() {
		b, err := scanBox(rows)
		if err != nil {
			return nil, fmt.Errorf("scan box: %w", err)
		}
		boxes = append(boxes, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate boxes: %w", err)
	}
	return boxes, nil
}
