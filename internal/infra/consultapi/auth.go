package consultapi

import (
	"context"
	"net/http"

	"github.com/maidige/consultation-admin/internal/domain/clinic"
)

// Credentials are the login form fields.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResult is the login response.
type LoginResult struct {
	AccessToken string      `json:"access_token"`
	User        clinic.User `json:"userData"`
	Message     string      `json:"message"`
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	var res LoginResult
	if err := c.do(ctx, request{
		op:     "login",
		method: http.MethodPost,
		path:   "auth/login",
		body:   creds,
	}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Logout revokes the current token on the server and returns its message.
func (c *Client) Logout(ctx context.Context) (string, error) {
	var res message
	if err := c.do(ctx, request{
		op:     "logout",
		method: http.MethodPost,
		path:   "auth/logout",
	}, &res); err != nil {
		return "", err
	}
	return res.Message, nil
}

// Me returns the signed-in user.
func (c *Client) Me(ctx context.Context) (*clinic.User, error) {
	var res struct {
		User clinic.User `json:"userData"`
	}
	if err := c.do(ctx, request{
		op:     "me",
		method: http.MethodGet,
		path:   "auth/info",
		retry:  true,
	}, &res); err != nil {
		return nil, err
	}
	return &res.User, nil
}

// ChangePassword changes the signed-in user's password.
func (c *Client) ChangePassword(ctx context.Context, in clinic.PasswordChange) (string, error) {
	var res message
	if err := c.do(ctx, request{
		op:     "change_password",
		method: http.MethodPost,
		path:   "password/change",
		body:   in,
	}, &res); err != nil {
		return "", err
	}
	return res.Message, nil
}

// ResetPassword sets another account's password.
func (c *Client) ResetPassword(ctx context.Context, in clinic.PasswordReset) (string, error) {
	var res message
	if err := c.do(ctx, request{
		op:     "reset_password",
		method: http.MethodPost,
		path:   "password/reset",
		body:   in,
	}, &res); err != nil {
		return "", err
	}
	return res.Message, nil
}

// BatchResetPassword sets the same password on several accounts.
func (c *Client) BatchResetPassword(ctx context.Context, in clinic.BatchPasswordReset) (*clinic.BatchResetResult, error) {
	var res clinic.BatchResetResult
	if err := c.do(ctx, request{
		op:     "batch_reset_password",
		method: http.MethodPost,
		path:   "password/batch-reset",
		body:   in,
	}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
