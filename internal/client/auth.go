package client

import (
	"context"
	"net/http"

	"github.com/kazz187/timeguild/internal/access"
	"github.com/kazz187/timeguild/internal/identity"
)

func (c *Client) SignUp(ctx context.Context, email, password string) (*identity.Token, error) {
	return c.credentials(ctx, "/api/auth/signup", email, password)
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*identity.Token, error) {
	return c.credentials(ctx, "/api/auth/signin", email, password)
}

// credentials authenticates and, on success, keeps the token for later calls.
func (c *Client) credentials(ctx context.Context, path, email, password string) (*identity.Token, error) {
	var tok identity.Token
	err := c.do(ctx, http.MethodPost, path, &identity.CredentialsRequest{Email: email, Password: password}, &tok)
	if err != nil {
		return nil, err
	}
	c.SetToken(tok.AccessToken)
	return &tok, nil
}

func (c *Client) SignOut(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/api/auth/signout", nil, nil); err != nil {
		return err
	}
	c.SetToken("")
	return nil
}

func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	return c.do(ctx, http.MethodPut, "/api/auth/password", &identity.ChangePasswordRequest{
		CurrentPassword: current,
		NewPassword:     next,
	}, nil)
}

// Me returns the caller's user record and the views their role allows.
func (c *Client) Me(ctx context.Context) (*access.MeResponse, error) {
	var resp access.MeResponse
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
