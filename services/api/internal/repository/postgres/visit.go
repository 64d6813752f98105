package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bookineo/bookineo/pkg/database"
	apperrors "github.com/bookineo/bookineo/pkg/errors"
	"github.com/bookineo/bookineo/services/api/internal/domain"
)

const visitColumns = `v.id, v.box_id, v.visitor_id, v.rating, v.comment, v.visited_at, u.username, u.avatar_url`

const (
	insertVisitQuery = `
		INSERT INTO box_visits (id, box_id, visitor_id, rating, comment, visited_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	listVisitsByBoxQuery = `
		SELECT ` + visitColumns + `
		FROM box_visits v
		JOIN users u ON u.id = v.visitor_id
		WHERE v.box_id = $1
		ORDER BY v.visited_at DESC
		LIMIT $2 OFFSET $3`
	countVisitsByBoxQuery = `SELECT COUNT(*) FROM box_visits WHERE box_id = $1`
	latestVisitQuery      = `
		SELECT ` + visitColumns + `
		FROM box_visits v
		JOIN users u ON u.id = v.visitor_id
		WHERE v.box_id = $1 AND v.visitor_id = $2
		ORDER BY v.visited_at DESC
		LIMIT 1`
	countVisitsByVisitorQuery = `SELECT COUNT(*) FROM box_visits WHERE visitor_id = $1`
)

// VisitRepository implements repository.VisitRepository.
type VisitRepository struct {
	db database.DBTX
}

func NewVisitRepository(db database.DBTX) *VisitRepository {
	return &VisitRepository{db: db}
}

func (r *VisitRepository) Create(ctx context.Context, v *domain.Visit) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateVisit", insertVisitQuery)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, insertVisitQuery, v.ID, v.BoxID, v.VisitorID, v.Rating, v.Comment, v.VisitedAt)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return apperrors.NotFound("box", v.BoxID)
		}
		return fmt.Errorf("insert visit: %w", err)
	}
	return nil
}

// ListByBox returns one page of visits, newest first, and the total count.
func (r *VisitRepository) ListByBox(ctx context.Context, boxID string, limit, offset int) (_ []domain.Visit, _ int, err error) {
	ctx, end := database.TraceQuery(ctx, "ListVisitsByBox", listVisitsByBoxQuery)
	defer func() { end(err) }()

	var total int
	if err = r.db.QueryRow(ctx, countVisitsByBoxQuery, boxID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count visits: %w", err)
	}

	rows, err := r.db.Query(ctx, listVisitsByBoxQuery, boxID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list visits: %w", err)
	}
	defer rows.Close()

	visits := []domain.Visit{}
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan visit: %w", err)
		}
		visits = append(visits, *v)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate visits: %w", err)
	}
	return visits, total, nil
}

func (r *VisitRepository) GetLatestByVisitor(ctx context.Context, boxID, visitorID string) (_ *domain.Visit, err error) {
	ctx, end := database.TraceQuery(ctx, "GetLatestVisit", latestVisitQuery)
	defer func() { end(err) }()

	v, err := scanVisit(r.db.QueryRow(ctx, latestVisitQuery, boxID, visitorID))
	if err != nil {
		return nil, notFoundOr(err, "visit", boxID, func(err error) error {
			return fmt.Errorf("query visit: %w", err)
		})
	}
	return v, nil
}

func (r *VisitRepository) CountByVisitor(ctx context.Context, visitorID string) (_ int, err error) {
	ctx, end := database.TraceQuery(ctx, "CountVisitsByVisitor", countVisitsByVisitorQuery)
	defer func() { end(err) }()

	var n int
	if err = r.db.QueryRow(ctx, countVisitsByVisitorQuery, visitorID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count visits: %w", err)
	}
	return n, nil
}

func scanVisit(row pgx.Row) (*domain.Visit, error) {
	var (
		v      domain.Visit
		rating int16
	)
	err := row.Scan(&v.ID, &v.BoxID, &v.VisitorID, &rating, &v.Comment, &v.VisitedAt,
		&v.Visitor.Username, &v.Visitor.AvatarURL)
	if err != nil {
		return nil, err
	}
	v.Rating = int(rating)
	return &v, nil
}
