package domain

import (
	"strings"
	"time"
)

// Box is a public book-sharing box on the map.
type Box struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	ImageURL        *string   `json:"image_url"`
	ImageKey        string    `json:"-"`
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	CreatorID       string    `json:"creator_id"`
	CreatorUsername string    `json:"creator_username"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// OwnedBy reports whether userID created the box.
func (b *Box) OwnedBy(userID string) bool {
	return userID != "" && b.CreatorID == userID
}

// Favorite links a user to a box they bookmarked.
type Favorite struct {
	UserID    string    `json:"user_id"`
	BoxID     string    `json:"box_id"`
	CreatedAt time.Time `json:"created_at"`
}

// FavoriteBox is a favorite joined with its box.
type FavoriteBox struct {
	Box         Box       `json:"box"`
	FavoritedAt time.Time `json:"favorited_at"`
}

// Rating bounds for visits.
const (
	MinRating     = 1
	MaxRating     = 5
	DefaultRating = 5
)

// Visit is a review left by a user who visited a box.
type Visit struct {
	ID        string         `json:"id"`
	BoxID     string         `json:"box_id"`
	VisitorID string         `json:"visitor_id"`
	Rating    int            `json:"rating"`
	Comment   *string        `json:"comment"`
	VisitedAt time.Time      `json:"visited_at"`
	Visitor   VisitorSummary `json:"visitor"`
}

// VisitorSummary is the part of the visitor's profile shown next to a visit.
type VisitorSummary struct {
	Username  string  `json:"username"`
	AvatarURL *string `json:"avatar_url"`
}

// NormalizeComment trims s and maps an empty comment to nil.
func NormalizeComment(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// ValidRating reports whether r is within [MinRating, MaxRating].
func ValidRating(r int) bool {
	return r >= MinRating && r <= MaxRating
}
