package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/bookineo/bookineo/pkg/errors"
	"github.com/bookineo/bookineo/pkg/httpclient"
	"github.com/bookineo/bookineo/services/app/internal/gateway"
)

type wireSession struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (w *wireSession) toSession() *gateway.Session {
	return &gateway.Session{
		PrincipalID:  w.UserID,
		Email:        w.Email,
		AccessToken:  w.AccessToken,
		RefreshToken: w.RefreshToken,
		ExpiresAt:    w.ExpiresAt,
	}
}

type sessionResponse struct {
	Session *wireSession `json:"session"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// GetPersistedSession returns the stored session, loading it on first use.
// An expired session is refreshed once. If that fails the result is nil; the
// stored session is cleared only when the gateway rejected the refresh.
func (c *Client) GetPersistedSession(ctx context.Context) (*gateway.Session, error) {
	c.mu.Lock()
	if !c.loaded {
		s, err := c.persister.Load(ctx)
		if err != nil {
			c.mu.Unlock()
			return nil, fmt.Errorf("load persisted session: %w", err)
		}
		c.session = s
		c.loaded = true
	}
	s := c.session.Clone()
	c.mu.Unlock()

	if s == nil || c.now().Before(s.ExpiresAt) {
		return s, nil
	}

	refreshed, err := c.refresh(ctx, s)
	if err != nil {
		c.logger.WarnContext(ctx, "persisted session could not be refreshed", slog.String("error", err.Error()))
		return nil, nil
	}
	return refreshed, nil
}

// OnAuthStateChange registers fn for session transitions.
func (c *Client) OnAuthStateChange(fn gateway.Listener) gateway.Subscription {
	return c.notifier.Subscribe(fn)
}

// SignIn exchanges credentials for a session.
func (c *Client) SignIn(ctx context.Context, creds gateway.Credentials) (*gateway.Session, error) {
	var resp sessionResponse
	err := c.doJSON(ctx, http.MethodPost, "/auth/signin", map[string]string{
		"email":    creds.Email,
		"password": creds.Password,
	}, false, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Session == nil {
		return nil, errors.New("sign in: response carried no session")
	}

	s := resp.Session.toSession()
	c.replace(ctx, s)
	c.notifier.Emit(gateway.EventSignedIn, s)
	return s.Clone(), nil
}

// SignUp creates an account. It does not sign the user in.
func (c *Client) SignUp(ctx context.Context, in gateway.SignUpInput) (*gateway.Identity, error) {
	var identity gateway.Identity
	err := c.doJSON(ctx, http.MethodPost, "/auth/signup", map[string]string{
		"email":      in.Email,
		"password":   in.Password,
		"username":   in.Username,
		"first_name": in.FirstName,
		"last_name":  in.LastName,
	}, false, &identity)
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

// SignOut revokes the refresh token and drops the local session. The local
// session is dropped even when the API call fails.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	s := c.session.Clone()
	c.mu.Unlock()
	if s == nil {
		return nil
	}

	err := c.doJSON(ctx, http.MethodPost, "/auth/signout", refreshRequest{RefreshToken: s.RefreshToken}, true, nil)
	c.expire(ctx, "signed out")
	if err != nil && !apperrors.IsUnauthorized(err) {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// RunRefresher renews the access token ahead of expiry until ctx is done.
func (c *Client) RunRefresher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			s := c.session.Clone()
			c.mu.Unlock()
			if s == nil || !c.dueForRefresh(s) {
				continue
			}
			if _, err := c.refresh(ctx, s); err != nil {
				c.logger.WarnContext(ctx, "background token refresh failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (c *Client) dueForRefresh(s *gateway.Session) bool {
	return !c.now().Add(c.leeway).Before(s.ExpiresAt)
}

// accessToken returns a token valid for at least the leeway.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	s := c.session.Clone()
	c.mu.Unlock()
	if s == nil {
		return "", apperrors.Unauthorized("not signed in")
	}
	if !c.dueForRefresh(s) {
		return s.AccessToken, nil
	}

	refreshed, err := c.refresh(ctx, s)
	if err != nil {
		if c.now().Before(s.ExpiresAt) {
			return s.AccessToken, nil
		}
		return "", err
	}
	return refreshed.AccessToken, nil
}

// refresh trades stale's refresh token for a new session. Only a rejected
// token ends the session. A transport or server failure keeps it, persisted
// row included, so a later refresh can still renew it.
func (c *Client) refresh(ctx context.Context, stale *gateway.Session) (*gateway.Session, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	c.mu.Lock()
	current := c.session.Clone()
	c.mu.Unlock()
	if current == nil {
		return nil, apperrors.Unauthorized("not signed in")
	}
	if current.AccessToken != stale.AccessToken {
		// Another caller refreshed while we waited.
		return current, nil
	}

	var resp sessionResponse
	err := c.doJSON(ctx, http.MethodPost, "/auth/refresh", refreshRequest{RefreshToken: current.RefreshToken}, false, &resp)
	if err == nil && resp.Session == nil {
		err = errors.New("refresh: response carried no session")
	}
	if err != nil {
		var appErr *apperrors.AppError
		rejected := errors.As(err, &appErr) && httpclient.IsClientError(appErr.Status)
		if rejected {
			c.expire(ctx, "refresh rejected")
		}
		return nil, fmt.Errorf("refresh session: %w", err)
	}

	s := resp.Session.toSession()
	c.replace(ctx, s)
	c.notifier.Emit(gateway.EventTokenRefreshed, s)
	return s.Clone(), nil
}

// replace installs s as the current session and persists it.
func (c *Client) replace(ctx context.Context, s *gateway.Session) {
	c.mu.Lock()
	c.session = s.Clone()
	c.loaded = true
	c.mu.Unlock()

	if err := c.persister.Save(ctx, s); err != nil {
		c.logger.WarnContext(ctx, "failed to persist session", slog.String("error", err.Error()))
	}
}

// expire drops the session and emits SIGNED_OUT if one was present.
func (c *Client) expire(ctx context.Context, reason string) {
	c.mu.Lock()
	had := c.session != nil
	c.session = nil
	c.loaded = true
	c.mu.Unlock()

	if err := c.persister.Clear(ctx); err != nil {
		c.logger.WarnContext(ctx, "failed to clear persisted session", slog.String("error", err.Error()))
	}
	if had {
		c.logger.InfoContext(ctx, "session ended", slog.String("reason", reason))
		c.notifier.Emit(gateway.EventSignedOut, nil)
	}
}
