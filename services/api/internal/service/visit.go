package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/bookineo/bookineo/pkg/errors"
	"github.com/bookineo/bookineo/pkg/pagination"
	"github.com/bookineo/bookineo/services/api/internal/domain"
	"github.com/bookineo/bookineo/services/api/internal/event"
	"github.com/bookineo/bookineo/services/api/internal/repository"
)

// VisitService records and lists box visits (reviews). The review limit of
// the tier table is advertised only; it is not enforced.
type VisitService struct {
	visits   repository.VisitRepository
	users    repository.UserRepository
	producer *event.Producer
	logger   *slog.Logger
}

func NewVisitService(
	visits repository.VisitRepository,
	users repository.UserRepository,
	producer *event.Producer,
	logger *slog.Logger,
) *VisitService {
	return &VisitService{visits: visits, users: users, producer: producer, logger: logger}
}

// List returns one page of visits for boxID, newest first.
func (s *VisitService) List(ctx context.Context, boxID string, p pagination.Params) (*pagination.Result[domain.Visit], error) {
	visits, total, err := s.visits.ListByBox(ctx, boxID, p.PerPage, p.Offset())
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	res := pagination.NewResult(visits, total, p)
	return &res, nil
}

// RecordVisitInput holds a new visit. A zero Rating means DefaultRating.
type RecordVisitInput struct {
	Rating  int
	Comment string
}

func (s *VisitService) Record(ctx context.Context, visitorID, boxID string, in RecordVisitInput) (*domain.Visit, error) {
	rating := in.Rating
	if rating == 0 {
		rating = domain.DefaultRating
	}
	if !domain.ValidRating(rating) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("rating must be between %d and %d", domain.MinRating, domain.MaxRating))
	}

	visitor, err := s.users.GetByID(ctx, visitorID)
	if err != nil {
		return nil, fmt.Errorf("get visitor: %w", err)
	}

	v := &domain.Visit{
		ID:        uuid.NewString(),
		BoxID:     boxID,
		VisitorID: visitor.ID,
		Rating:    rating,
		Comment:   domain.NormalizeComment(in.Comment),
		VisitedAt: time.Now().UTC(),
		Visitor: domain.VisitorSummary{
			Username:  visitor.Username,
			AvatarURL: visitor.AvatarURL,
		},
	}
	if err := s.visits.Create(ctx, v); err != nil {
		return nil, fmt.Errorf("record visit: %w", err)
	}

	if err := s.producer.VisitRecorded(ctx, v); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish visit.recorded event",
			slog.String("visit_id", v.ID),
			slog.String("error", err.Error()),
		)
	}
	return v, nil
}

// Latest returns the caller's most recent visit to boxID.
func (s *VisitService) Latest(ctx context.Context, visitorID, boxID string) (*domain.Visit, error) {
	v, err := s.visits.GetLatestByVisitor(ctx, boxID, visitorID)
	if err != nil {
		return nil, fmt.Errorf("get latest visit: %w", err)
	}
	return v, nil
}
