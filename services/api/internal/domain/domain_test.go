package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookineo/bookineo/pkg/subscription"
)

// ============================================================================
// User
// ============================================================================

func TestUser_JSONHidesSecrets(t *testing.T) {
	u := User{
		ID:           "u-1",
		Email:        "alice@example.com",
		PasswordHash: "$2a$12$hash",
		AvatarKey:    "avatars/u-1.png",
		Username:     "alice",
		Subscription: subscription.Freemium,
	}

	raw, err := json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "$2a$12$hash")
	assert.NotContains(t, string(raw), "avatars/u-1.png")
	assert.Contains(t, string(raw), `"subscription":"freemium"`)
}

func TestUser_PublicDropsEmail(t *testing.T) {
	u := User{ID: "u-1", Email: "alice@example.com", Username: "alice"}

	pub := u.Public()
	assert.Empty(t, pub.Email)
	assert.Equal(t, "alice", pub.Username)
	assert.Equal(t, "alice@example.com", u.Email, "original must be untouched")

	raw, err := json.Marshal(pub)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "email")
}

func TestValidUsername(t *testing.T) {
	for _, ok := range []string{"alice", "bob_42", "jean.luc", "a-b"} {
		assert.True(t, ValidUsername(ok), ok)
	}
	for _, bad := range []string{"", "ab", "with space", "émile", "this-username-is-way-too-long-to-use"} {
		assert.False(t, ValidUsername(bad), bad)
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "alice@example.com", NormalizeEmail("  Alice@Example.COM "))
}

func TestRefreshToken_Usable(t *testing.T) {
	now := time.Now()
	revoked := now.Add(-time.Minute)

	assert.True(t, (&RefreshToken{ExpiresAt: now.Add(time.Hour)}).Usable(now))
	assert.False(t, (&RefreshToken{ExpiresAt: now.Add(-time.Second)}).Usable(now))
	assert.False(t, (&RefreshToken{ExpiresAt: now.Add(time.Hour), RevokedAt: &revoked}).Usable(now))
}

// ============================================================================
// Box / Visit
// ============================================================================

func TestBox_OwnedBy(t *testing.T) {
	b := &Box{CreatorID: "u-1"}
	assert.True(t, b.OwnedBy("u-1"))
	assert.False(t, b.OwnedBy("u-2"))
	assert.False(t, (&Box{}).OwnedBy(""))
}

func TestNormalizeComment(t *testing.T) {
	assert.Nil(t, NormalizeComment(""))
	assert.Nil(t, NormalizeComment("   "))

	c := NormalizeComment("  plein de polars  ")
	require.NotNil(t, c)
	assert.Equal(t, "plein de polars", *c)
}

func TestValidRating(t *testing.T) {
	assert.False(t, ValidRating(0))
	assert.True(t, ValidRating(MinRating))
	assert.True(t, ValidRating(DefaultRating))
	assert.False(t, ValidRating(MaxRating+1))
}
