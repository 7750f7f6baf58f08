// Package remote is the HTTP client for the BrainBox REST API. It performs
// one network call per method and never touches local state.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/brainbox-app/brainbox/internal/models"
	"github.com/brainbox-app/brainbox/internal/session"
)

// Client calls the REST API on behalf of one session.
type Client struct {
	baseURL string
	http    *http.Client
	session *session.Session
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client for baseURL (e.g. http://localhost:8080).
func New(baseURL string, sess *session.Session, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		session: sess,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Owner returns the session's owner key.
func (c *Client) Owner() string {
	if c.session == nil {
		return ""
	}
	return c.session.OwnerKey
}

func (c *Client) collection(owner string, kind models.Kind) string {
	return "/api/v1/users/" + url.PathEscape(owner) + "/" + string(kind)
}

// List returns owner's entities of kind that match filter.
func (c *Client) List(ctx context.Context, kind models.Kind, owner string, filter models.Filter) ([]models.Entity, error) {
	op := "list " + string(kind)
	path := c.collection(owner, kind)
	if len(filter) > 0 {
		path += "?" + filter.Query().Encode()
	}

	var raw []json.RawMessage
	if err := c.do(ctx, op, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}

	out := make([]models.Entity, 0, len(raw))
	for _, doc := range raw {
		e, err := models.Decode(kind, doc)
		if err != nil {
			return nil, &Error{Kind: ServerError, Op: op, Detail: "malformed entity", Err: err}
		}
		out = append(out, e)
	}
	return out, nil
}

// Feed returns every user's posts, newest first. Only "category" is honored
// by the server.
func (c *Client) Feed(ctx context.Context, filter models.Filter) ([]*models.Post, error) {
	path := "/api/v1/feed"
	if len(filter) > 0 {
		path += "?" + filter.Query().Encode()
	}
	var posts []*models.Post
	if err := c.do(ctx, "list feed", http.MethodGet, path, nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// Create stores e in the session owner's collection and returns the stored
// entity with its server-assigned fields.
func (c *Client) Create(ctx context.Context, e models.Entity) (models.Entity, error) {
	op := "create " + string(e.Kind())
	var raw json.RawMessage
	if err := c.do(ctx, op, http.MethodPost, c.collection(c.Owner(), e.Kind()), e, &raw); err != nil {
		return nil, err
	}
	return c.decode(op, e.Kind(), raw)
}

// Update applies a partial edit and returns the stored entity.
func (c *Client) Update(ctx context.Context, kind models.Kind, id string, patch models.Patch) (models.Entity, error) {
	op := "update " + string(kind)
	var raw json.RawMessage
	path := c.collection(c.Owner(), kind) + "/" + url.PathEscape(id)
	if err := c.do(ctx, op, http.MethodPatch, path, patch, &raw); err != nil {
		return nil, err
	}
	return c.decode(op, kind, raw)
}

// Delete removes an entity. A nil error is the success flag.
func (c *Client) Delete(ctx context.Context, kind models.Kind, id string) error {
	path := c.collection(c.Owner(), kind) + "/" + url.PathEscape(id)
	return c.do(ctx, "delete "+string(kind), http.MethodDelete, path, nil, nil)
}

// SetLike sets the session user's membership in a post's likedBy set.
func (c *Client) SetLike(ctx context.Context, postID string, liked bool) (*models.Post, error) {
	var post models.Post
	path := "/api/v1/posts/" + url.PathEscape(postID) + "/like"
	if err := c.do(ctx, "like post", http.MethodPut, path, map[string]bool{"liked": liked}, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) decode(op string, kind models.Kind, raw json.RawMessage) (models.Entity, error) {
	e, err := models.Decode(kind, raw)
	if err != nil {
		return nil, &Error{Kind: ServerError, Op: op, Detail: "malformed entity", Err: err}
	}
	return e, nil
}

// do sends one request. Any failure comes back as *Error.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &Error{Kind: NetworkError, Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.session != nil && c.session.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: NetworkError, Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: NetworkError, Op: op, Status: resp.StatusCode, Err: err}
	}

	c.logger.Debug("Remote call", "op", op, "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &eb)
		return &Error{Kind: KindFromStatus(resp.StatusCode), Op: op, Status: resp.StatusCode, Detail: eb.Error}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: ServerError, Op: op, Status: resp.StatusCode, Detail: "malformed response", Err: err}
	}
	return nil
}
