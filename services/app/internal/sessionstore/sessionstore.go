// Package sessionstore persists the gateway session between runs of the
// terminal app in a local SQLite file.
package sessionstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/bookineo/bookineo/services/app/internal/gateway"
)

const schema = `create table if not exists session(
	id            integer not null primary key check (id = 1),
	principal_id  text not null,
	email         text not null,
	access_token  text not null,
	refresh_token text not null,
	expires_at    datetime not null,
	updated_at    datetime not null
)`

type row struct {
	PrincipalID  string    `db:"principal_id"`
	Email        string    `db:"email"`
	AccessToken  string    `db:"access_token"`
	RefreshToken string    `db:"refresh_token"`
	ExpiresAt    time.Time `db:"expires_at"`
}

// Store holds at most one session.
type Store struct {
	db *sqlx.DB
}

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory store.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite3", "file:"+path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	// One connection keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create session table: %w", err)
	}
	return &Store{db: db}, nil
}

// Load returns the saved session, or nil when there is none.
func (s *Store) Load(ctx context.Context) (*gateway.Session, error) {
	var r row
	err := s.db.GetContext(ctx, &r,
		`select principal_id, email, access_token, refresh_token, expires_at from session where id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	return &gateway.Session{
		PrincipalID:  r.PrincipalID,
		Email:        r.Email,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    r.ExpiresAt.UTC(),
	}, nil
}

// Save replaces the saved session.
func (s *Store) Save(ctx context.Context, session *gateway.Session) error {
	if session == nil {
		return s.Clear(ctx)
	}

	_, err := s.db.NamedExecContext(ctx, `
		insert into session (id, principal_id, email, access_token, refresh_token, expires_at, updated_at)
		values (1, :principal_id, :email, :access_token, :refresh_token, :expires_at, :updated_at)
		on conflict (id) do update set
			principal_id = excluded.principal_id,
			email = excluded.email,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		map[string]any{
			"principal_id":  session.PrincipalID,
			"email":         session.Email,
			"access_token":  session.AccessToken,
			"refresh_token": session.RefreshToken,
			"expires_at":    session.ExpiresAt.UTC(),
			"updated_at":    time.Now().UTC(),
		})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Clear removes the saved session.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `delete from session`); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
