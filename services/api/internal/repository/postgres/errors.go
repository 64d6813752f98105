package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/bookineo/bookineo/pkg/database"
	apperrors "github.com/bookineo/bookineo/pkg/errors"
)

// notFoundOr maps pgx.ErrNoRows to a NotFound AppError and wraps anything else.
func notFoundOr(err error, resource, id string, wrap func(error) error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound(resource, id)
	}
	return wrap(err)
}

func isUniqueViolation(err error) bool {
	return database.IsUniqueViolation(err)
}
