// Package rest implements the gateway against the Bookineo HTTP API.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"

	apperrors "github.com/bookineo/bookineo/pkg/errors"
	"github.com/bookineo/bookineo/pkg/httpclient"
	"github.com/bookineo/bookineo/services/app/internal/gateway"
)

const serviceName = "bookineo-api"

// CircuitOpen is the breaker fallback. It turns an open circuit into an
// AppError the shell can show.
func CircuitOpen(context.Context, error) (*http.Response, error) {
	return nil, apperrors.Unavailable("Bookineo is unreachable right now, try again in a moment")
}

// SessionPersister keeps the session across restarts.
type SessionPersister interface {
	Load(ctx context.Context) (*gateway.Session, error)
	Save(ctx context.Context, session *gateway.Session) error
	Clear(ctx context.Context) error
}

// Config configures a Client.
type Config struct {
	BaseURL string
	// RefreshLeeway is how long before expiry the access token is renewed.
	RefreshLeeway time.Duration
}

// Client is a gateway.Gateway backed by the HTTP API. The session lives in
// memory and is mirrored to the persister on every change.
type Client struct {
	baseURL   string
	leeway    time.Duration
	http      *httpclient.CircuitBreakerClient
	persister SessionPersister
	logger    *slog.Logger
	notifier  gateway.Notifier
	now       func() time.Time

	mu      sync.Mutex
	session *gateway.Session
	loaded  bool

	refreshMu sync.Mutex
}

var _ gateway.Gateway = (*Client)(nil)

// New creates a Client.
func New(cfg Config, hc *httpclient.CircuitBreakerClient, persister SessionPersister, logger *slog.Logger) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		leeway:    cfg.RefreshLeeway,
		http:      hc,
		persister: persister,
		logger:    logger,
		now:       time.Now,
	}
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

// do sends a request and decodes the data field of the response into out.
// Authenticated requests carry the access token, refreshed first if it is
// about to expire.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, authed bool, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create %s %s request: %w", method, path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	if authed {
		token, err := c.accessToken(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		err := httpclient.ParseResponseError(resp, serviceName)
		if authed && resp.StatusCode == http.StatusUnauthorized {
			c.expire(ctx, "access token rejected")
		}
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s %s data: %w", method, path, err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, authed bool, out any) error {
	if in == nil {
		return c.do(ctx, method, path, http.NoBody, "", authed, out)
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s %s body: %w", method, path, err)
	}
	return c.do(ctx, method, path, bytes.NewReader(payload), "application/json", authed, out)
}

// doUpload sends r as the "file" part of a multipart form. The part's
// content type is sniffed so the API can reject non-images early.
func (c *Client) doUpload(ctx context.Context, method, path, filename string, r io.Reader, fields map[string]string, out any) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("write form field %s: %w", k, err)
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", mimetype.Detect(data).String())
	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("write file part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart form: %w", err)
	}

	return c.do(ctx, method, path, bytes.NewReader(buf.Bytes()), mw.FormDataContentType(), true, out)
}
