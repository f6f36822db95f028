package api

import (
	"context"

	"github.com/zfogg/nearby/cli/pkg/logger"
)

// Login authenticates user with email and password
func (a *API) Login(ctx context.Context, email, password string) (*Session, error) {
	logger.Debug("Attempting login", "email", email)

	session, err := one[Session](a.c.R(ctx).
		SetBody(LoginRequest{Email: email, Password: password}).
		Post("/auth/signin"))
	if err != nil {
		return nil, err
	}

	logger.Debug("Login successful", "username", session.User.Username)
	return session, nil
}

// SignInWithIdentity exchanges an identity provider token for a session
func (a *API) SignInWithIdentity(ctx context.Context, provider, idToken, nonce string) (*Session, error) {
	logger.Debug("Attempting identity sign-in", "provider", provider)

	return one[Session](a.c.R(ctx).
		SetBody(IdentityRequest{Provider: provider, IDToken: idToken, Nonce: nonce}).
		Post("/auth/identity"))
}

// Register creates a new account
func (a *API) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	logger.Debug("Registering user", "username", req.Username)

	return one[Session](a.c.R(ctx).
		SetBody(req).
		Post("/auth/register"))
}

// Me gets the current authenticated user
func (a *API) Me(ctx context.Context) (*User, error) {
	logger.Debug("Fetching current user")

	req, err := a.c.AuthR(ctx)
	if err != nil {
		return nil, err
	}
	return one[User](req.Get("/auth/me"))
}
