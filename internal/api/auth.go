package api

import (
	"context"
	"net/http"

	"financeiro/internal/core"
)

// Login opens a server session. The session cookie lands in the client's jar.
func (c *Client) Login(ctx context.Context, creds core.Credentials) (core.User, error) {
	return write[core.User](ctx, c, http.MethodPost, "/api/auth/login", creds, "user")
}

func (c *Client) Logout(ctx context.Context) error {
	_, err := write[struct{}](ctx, c, http.MethodPost, "/api/auth/logout", nil, "")
	return err
}

// CheckAuth reports whether the current session is authenticated. The server
// answers an anonymous session with 401 {authenticated:false}, which is not an
// error here.
func (c *Client) CheckAuth(ctx context.Context) (bool, *core.User, error) {
	resp, err := c.exchange(ctx, http.MethodGet, "/api/auth/check", nil, nil)
	if err != nil {
		return false, nil, err
	}

	var body struct {
		Authenticated bool       `json:"authenticated"`
		User          *core.User `json:"user"`
	}
	if err := resp.field("", &body); err != nil {
		if resp.status == http.StatusUnauthorized {
			return false, nil, nil
		}
		return false, nil, core.NewTransportError("GET /api/auth/check: decode response", err)
	}

	switch {
	case resp.status >= 200 && resp.status <= 299:
		return body.Authenticated, body.User, nil
	case resp.status == http.StatusUnauthorized:
		return false, nil, nil
	default:
		if reason := resp.envelope().reason(); reason != "" {
			return false, nil, core.NewServerRejected(resp.status, reason)
		}
		return false, nil, core.NewTransportError("GET /api/auth/check: unexpected status "+http.StatusText(resp.status), nil)
	}
}
