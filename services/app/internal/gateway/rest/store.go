package rest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	apperrors "github.com/bookineo/bookineo/pkg/errors"
	"github.com/bookineo/bookineo/pkg/subscription"
	"github.com/bookineo/bookineo/services/app/internal/gateway"
)

func escape(segment string) string {
	return url.PathEscape(segment)
}

// FindIdentityByPrincipal loads the profile of a principal. A principal
// without a profile yields gateway.ErrNotFound.
func (c *Client) FindIdentityByPrincipal(ctx context.Context, principalID string) (*gateway.Identity, error) {
	var identity gateway.Identity
	if err := c.doJSON(ctx, http.MethodGet, "/users/"+escape(principalID), nil, true, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// CountResourcesByOwner counts an owner's resources. Only boxes are
// countable through the API.
func (c *Client) CountResourcesByOwner(ctx context.Context, ownerID string, kind subscription.Kind) (int, error) {
	if kind != subscription.KindBox {
		return 0, apperrors.InvalidInput(fmt.Sprintf("counting %s is not supported", kind.Noun()))
	}

	var resp struct {
		Count int `json:"count"`
	}
	q := url.Values{"owner_id": {ownerID}}
	if err := c.doJSON(ctx, http.MethodGet, "/boxes/count?"+q.Encode(), nil, true, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// InsertResource creates a box owned by the signed-in user.
func (c *Client) InsertResource(ctx context.Context, kind subscription.Kind, payload gateway.BoxInput) (*gateway.Box, error) {
	if kind != subscription.KindBox {
		return nil, apperrors.InvalidInput(fmt.Sprintf("creating %s is not supported", kind.Noun()))
	}

	var box gateway.Box
	if err := c.doJSON(ctx, http.MethodPost, "/boxes", payload, true, &box); err != nil {
		return nil, err
	}
	return &box, nil
}

func (c *Client) ListBoxes(ctx context.Context) ([]gateway.Box, error) {
	var boxes []gateway.Box
	if err := c.doJSON(ctx, http.MethodGet, "/boxes", nil, true, &boxes); err != nil {
		return nil, err
	}
	return boxes, nil
}

func (c *Client) GetBox(ctx context.Context, id string) (*gateway.Box, error) {
	var box gateway.Box
	if err := c.doJSON(ctx, http.MethodGet, "/boxes/"+escape(id), nil, true, &box); err != nil {
		return nil, err
	}
	return &box, nil
}

func (c *Client) ListBoxesByOwner(ctx context.Context, ownerID string) ([]gateway.Box, error) {
	var boxes []gateway.Box
	if err := c.doJSON(ctx, http.MethodGet, "/users/"+escape(ownerID)+"/boxes", nil, true, &boxes); err != nil {
		return nil, err
	}
	return boxes, nil
}

func (c *Client) UpdateBox(ctx context.Context, id string, in gateway.BoxUpdate) (*gateway.Box, error) {
	var box gateway.Box
	if err := c.doJSON(ctx, http.MethodPatch, "/boxes/"+escape(id), in, true, &box); err != nil {
		return nil, err
	}
	return &box, nil
}

func (c *Client) DeleteBox(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/boxes/"+escape(id), nil, true, nil)
}

// UploadBoxImage stores an image for a box that may not exist yet. The
// returned key is passed back in BoxInput.ImageKey.
func (c *Client) UploadBoxImage(ctx context.Context, boxName, filename string, r io.Reader) (*gateway.Upload, error) {
	var up gateway.Upload
	if err := c.doUpload(ctx, http.MethodPost, "/boxes/images", filename, r, map[string]string{"name": boxName}, &up); err != nil {
		return nil, err
	}
	return &up, nil
}

func (c *Client) ListFavorites(ctx context.Context) ([]gateway.FavoriteBox, error) {
	var favs []gateway.FavoriteBox
	if err := c.doJSON(ctx, http.MethodGet, "/users/me/favorites", nil, true, &favs); err != nil {
		return nil, err
	}
	return favs, nil
}

type favoriteStatus struct {
	Favorite bool `json:"favorite"`
}

func (c *Client) IsFavorite(ctx context.Context, boxID string) (bool, error) {
	var st favoriteStatus
	if err := c.doJSON(ctx, http.MethodGet, "/boxes/"+escape(boxID)+"/favorite", nil, true, &st); err != nil {
		return false, err
	}
	return st.Favorite, nil
}

func (c *Client) AddFavorite(ctx context.Context, boxID string) error {
	return c.doJSON(ctx, http.MethodPut, "/boxes/"+escape(boxID)+"/favorite", nil, true, nil)
}

func (c *Client) RemoveFavorite(ctx context.Context, boxID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/boxes/"+escape(boxID)+"/favorite", nil, true, nil)
}

func (c *Client) ListVisits(ctx context.Context, boxID string, page, perPage int) (*gateway.VisitPage, error) {
	q := url.Values{
		"page":     {strconv.Itoa(page)},
		"per_page": {strconv.Itoa(perPage)},
	}
	var out gateway.VisitPage
	if err := c.doJSON(ctx, http.MethodGet, "/boxes/"+escape(boxID)+"/visits?"+q.Encode(), nil, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecordVisit records a visit. A zero rating records a visit without a
// review.
func (c *Client) RecordVisit(ctx context.Context, boxID string, rating int, comment string) (*gateway.Visit, error) {
	body := struct {
		Rating  int    `json:"rating,omitempty"`
		Comment string `json:"comment,omitempty"`
	}{Rating: rating, Comment: comment}

	var v gateway.Visit
	if err := c.doJSON(ctx, http.MethodPost, "/boxes/"+escape(boxID)+"/visits", body, true, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) LatestVisit(ctx context.Context, boxID string) (*gateway.Visit, error) {
	var v gateway.Visit
	if err := c.doJSON(ctx, http.MethodGet, "/boxes/"+escape(boxID)+"/visits/me", nil, true, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) ProfileByUsername(ctx context.Context, username string) (*gateway.Profile, error) {
	var p gateway.Profile
	if err := c.doJSON(ctx, http.MethodGet, "/users/by-username/"+escape(username), nil, true, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile changes the signed-in user's profile and emits
// USER_UPDATED.
func (c *Client) UpdateProfile(ctx context.Context, in gateway.ProfileUpdate) (*gateway.Identity, error) {
	var identity gateway.Identity
	if err := c.doJSON(ctx, http.MethodPatch, "/users/me", in, true, &identity); err != nil {
		return nil, err
	}
	c.emitUserUpdated()
	return &identity, nil
}

// UploadAvatar replaces the signed-in user's avatar and emits USER_UPDATED.
func (c *Client) UploadAvatar(ctx context.Context, filename string, r io.Reader) (*gateway.Identity, error) {
	var identity gateway.Identity
	if err := c.doUpload(ctx, http.MethodPut, "/users/me/avatar", filename, r, nil, &identity); err != nil {
		return nil, err
	}
	c.emitUserUpdated()
	return &identity, nil
}

// DeleteAccount deletes the signed-in user and ends the session.
func (c *Client) DeleteAccount(ctx context.Context) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/users/me", nil, true, nil); err != nil {
		return err
	}
	c.expire(ctx, "account deleted")
	return nil
}

func (c *Client) Plans(ctx context.Context) ([]subscription.Plan, error) {
	var plans []subscription.Plan
	if err := c.doJSON(ctx, http.MethodGet, "/plans", nil, false, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

func (c *Client) emitUserUpdated() {
	c.mu.Lock()
	s := c.session.Clone()
	c.mu.Unlock()
	if s != nil {
		c.notifier.Emit(gateway.EventUserUpdated, s)
	}
}
