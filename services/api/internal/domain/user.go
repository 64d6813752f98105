package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/bookineo/bookineo/pkg/subscription"
)

// User is an account together with its public profile. The account ID is
// also the principal ID carried by access tokens.
type User struct {
	ID           string            `json:"id"`
	Email        string            `json:"email,omitempty"`
	PasswordHash string            `json:"-"`
	Username     string            `json:"username"`
	FirstName    string            `json:"first_name"`
	LastName     string            `json:"last_name"`
	AvatarURL    *string           `json:"avatar_url"`
	AvatarKey    string            `json:"-"`
	Subscription subscription.Tier `json:"subscription"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Public returns a copy without private fields, for profiles viewed by
// other users.
func (u User) Public() User {
	u.Email = ""
	return u
}

// PublicProfile is what /user/:username shows.
type PublicProfile struct {
	User       User  `json:"user"`
	Boxes      []Box `json:"boxes"`
	VisitCount int   `json:"visit_count"`
}

// RefreshToken is a stored refresh token. Only its SHA-256 hash is kept.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}

// Usable reports whether the token can still be exchanged at now.
func (t *RefreshToken) Usable(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// Session is returned by sign-in, sign-up and refresh.
type Session struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,30}$`)

// ValidUsername reports whether s is 3 to 30 letters, digits, '_', '.' or '-'.
func ValidUsername(s string) bool {
	return usernamePattern.MatchString(s)
}

// NormalizeEmail lowercases and trims an address so lookups are case-insensitive.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
