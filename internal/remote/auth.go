package remote

import (
	"context"
	"errors"
	"net/http"
	"time"

	"connectrpc.com/connect"

	"github.com/brainbox-app/brainbox/internal/session"
	"github.com/brainbox-app/brainbox/pkg/authv1"
)

// AuthClient talks to the identity service and produces sessions.
type AuthClient struct {
	rpc authv1.AuthServiceClient
}

// NewAuthClient creates an identity client for baseURL.
func NewAuthClient(baseURL string, hc *http.Client) *AuthClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &AuthClient{rpc: authv1.NewAuthServiceClient(hc, baseURL)}
}

// Register creates an account and returns a signed-in session.
func (a *AuthClient) Register(ctx context.Context, email, displayName, photoURL, password string) (*session.Session, error) {
	resp, err := a.rpc.Register(ctx, connect.NewRequest(&authv1.RegisterRequest{
		Email:       email,
		DisplayName: displayName,
		PhotoURL:    photoURL,
		Password:    password,
	}))
	if err != nil {
		return nil, fromConnect("register", err)
	}
	return newSession(resp.Msg.User, resp.Msg.Token, resp.Msg.ExpiresAt), nil
}

// Login exchanges credentials for a session.
func (a *AuthClient) Login(ctx context.Context, email, password string) (*session.Session, error) {
	resp, err := a.rpc.Login(ctx, connect.NewRequest(&authv1.LoginRequest{Email: email, Password: password}))
	if err != nil {
		return nil, fromConnect("login", err)
	}
	return newSession(resp.Msg.User, resp.Msg.Token, resp.Msg.ExpiresAt), nil
}

// Logout revokes the session's token on the server.
func (a *AuthClient) Logout(ctx context.Context, sess *session.Session) error {
	req := connect.NewRequest(&authv1.LogoutRequest{})
	authorize(req.Header(), sess)
	if _, err := a.rpc.Logout(ctx, req); err != nil {
		return fromConnect("logout", err)
	}
	return nil
}

// CurrentUser returns the account behind sess.
func (a *AuthClient) CurrentUser(ctx context.Context, sess *session.Session) (*authv1.User, error) {
	req := connect.NewRequest(&authv1.GetCurrentUserRequest{})
	authorize(req.Header(), sess)
	resp, err := a.rpc.GetCurrentUser(ctx, req)
	if err != nil {
		return nil, fromConnect("current user", err)
	}
	return resp.Msg.User, nil
}

// UpdateProfile changes the display name and/or photo of the account behind
// sess. Nil arguments leave the field unchanged.
func (a *AuthClient) UpdateProfile(ctx context.Context, sess *session.Session, displayName, photoURL *string) (*authv1.User, error) {
	req := connect.NewRequest(&authv1.UpdateProfileRequest{DisplayName: displayName, PhotoURL: photoURL})
	authorize(req.Header(), sess)
	resp, err := a.rpc.UpdateProfile(ctx, req)
	if err != nil {
		return nil, fromConnect("update profile", err)
	}
	return resp.Msg.User, nil
}

func newSession(user *authv1.User, token string, expires time.Time) *session.Session {
	return &session.Session{
		OwnerKey:    user.Email,
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		Token:       token,
		ExpiresAt:   expires,
	}
}

func authorize(h http.Header, sess *session.Session) {
	if sess != nil && sess.Token != "" {
		h.Set("Authorization", "Bearer "+sess.Token)
	}
}

// fromConnect maps RPC status codes onto the same taxonomy as REST calls.
func fromConnect(op string, err error) error {
	kind := ServerError
	switch connect.CodeOf(err) {
	case connect.CodeUnauthenticated, connect.CodePermissionDenied:
		kind = Unauthorized
	case connect.CodeNotFound:
		kind = NotFound
	case connect.CodeInvalidArgument:
		kind = Invalid
	case connect.CodeAlreadyExists:
		kind = Conflict
	case connect.CodeUnavailable, connect.CodeDeadlineExceeded, connect.CodeCanceled:
		kind = NetworkError
	}

	detail := err.Error()
	var ce *connect.Error
	if errors.As(err, &ce) {
		detail = ce.Message()
	}
	return &Error{Kind: kind, Op: op, Detail: detail, Err: err}
}
