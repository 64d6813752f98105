// Package gateway defines the client's view of the Remote Data Gateway: the
// auth, row store and blob operations the application core depends on.
package gateway

import (
	"context"
	"io"
	"time"

	apperrors "github.com/bookineo/bookineo/pkg/errors"
	"github.com/bookineo/bookineo/pkg/subscription"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = apperrors.ErrNotFound

// Session is the gateway's proof of authentication. Token material is
// opaque to the core; only PrincipalID is read.
type Session struct {
	PrincipalID  string
	Email        string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Clone returns a copy of s, or nil.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// Identity is the authenticated principal joined with its profile.
type Identity struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	Username  string            `json:"username"`
	FirstName string            `json:"first_name"`
	LastName  string            `json:"last_name"`
	AvatarURL *string           `json:"avatar_url"`
	Tier      subscription.Tier `json:"subscription"`
	CreatedAt time.Time         `json:"created_at"`
}

// Clone returns a deep copy of i, or nil.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	if i.AvatarURL != nil {
		url := *i.AvatarURL
		c.AvatarURL = &url
	}
	return &c
}

// Credentials are an email and password pair.
type Credentials struct {
	Email    string
	Password string
}

// SignUpInput registers a new account.
type SignUpInput struct {
	Credentials
	Username  string
	FirstName string
	LastName  string
}

// ProfileUpdate changes profile fields. Nil means unchanged.
type ProfileUpdate struct {
	Username  *string `json:"username,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
}

// Box is a book box as stored by the gateway.
type Box struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	ImageURL        *string   `json:"image_url"`
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	CreatorID       string    `json:"creator_id"`
	CreatorUsername string    `json:"creator_username"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// BoxInput is the payload of a new box. The owner is the signed-in user.
type BoxInput struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	ImageKey    string  `json:"image_key,omitempty"`
}

// BoxUpdate changes box fields. Nil means unchanged.
type BoxUpdate struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	ImageKey    *string  `json:"image_key,omitempty"`
}

// Upload is a stored blob.
type Upload struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// FavoriteBox is a favorite joined with its box.
type FavoriteBox struct {
	Box         Box       `json:"box"`
	FavoritedAt time.Time `json:"favorited_at"`
}

// Visit is a review of a box.
type Visit struct {
	ID        string    `json:"id"`
	BoxID     string    `json:"box_id"`
	VisitorID string    `json:"visitor_id"`
	Rating    int       `json:"rating"`
	Comment   *string   `json:"comment"`
	VisitedAt time.Time `json:"visited_at"`
	Visitor   struct {
		Username  string  `json:"username"`
		AvatarURL *string `json:"avatar_url"`
	} `json:"visitor"`
}

// VisitPage is one page of visits, newest first.
type VisitPage struct {
	Items      []Visit `json:"items"`
	TotalCount int     `json:"total_count"`
	Page       int     `json:"page"`
	PerPage    int     `json:"per_page"`
	TotalPages int     `json:"total_pages"`
	HasNext    bool    `json:"has_next"`
}

// Profile is the public view of another user.
type Profile struct {
	User       Identity `json:"user"`
	Boxes      []Box    `json:"boxes"`
	VisitCount int      `json:"visit_count"`
}

// Auth is the authentication half of the gateway.
type Auth interface {
	GetPersistedSession(ctx context.Context) (*Session, error)
	OnAuthStateChange(fn Listener) Subscription
	SignIn(ctx context.Context, creds Credentials) (*Session, error)
	SignUp(ctx context.Context, in SignUpInput) (*Identity, error)
	SignOut(ctx context.Context) error
}

// Store is the row store and blob half of the gateway.
type Store interface {
	FindIdentityByPrincipal(ctx context.Context, principalID string) (*Identity, error)
	CountResourcesByOwner(ctx context.Context, ownerID string, kind subscription.Kind) (int, error)
	InsertResource(ctx context.Context, kind subscription.Kind, payload BoxInput) (*Box, error)

	ListBoxes(ctx context.Context) ([]Box, error)
	GetBox(ctx context.Context, id string) (*Box, error)
	ListBoxesByOwner(ctx context.Context, ownerID string) ([]Box, error)
	UpdateBox(ctx context.Context, id string, in BoxUpdate) (*Box, error)
	DeleteBox(ctx context.Context, id string) error
	UploadBoxImage(ctx context.Context, boxName, filename string, r io.Reader) (*Upload, error)

	ListFavorites(ctx context.Context) ([]FavoriteBox, error)
	IsFavorite(ctx context.Context, boxID string) (bool, error)
	AddFavorite(ctx context.Context, boxID string) error
	RemoveFavorite(ctx context.Context, boxID string) error

	ListVisits(ctx context.Context, boxID string, page, perPage int) (*VisitPage, error)
	RecordVisit(ctx context.Context, boxID string, rating int, comment string) (*Visit, error)
	LatestVisit(ctx context.Context, boxID string) (*Visit, error)

	ProfileByUsername(ctx context.Context, username string) (*Profile, error)
	UpdateProfile(ctx context.Context, in ProfileUpdate) (*Identity, error)
	UploadAvatar(ctx context.Context, filename string, r io.Reader) (*Identity, error)
	DeleteAccount(ctx context.Context) error

	Plans(ctx context.Context) ([]subscription.Plan, error)
}

// Gateway is the full Remote Data Gateway.
type Gateway interface {
	Auth
	Store
}
