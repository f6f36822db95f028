package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zfogg/nearby/cli/pkg/api"
	"github.com/zfogg/nearby/cli/pkg/credentials"
	clierrors "github.com/zfogg/nearby/cli/pkg/errors"
	"github.com/zfogg/nearby/cli/pkg/logger"
	"github.com/zfogg/nearby/cli/pkg/validation"
)

// ProviderPassword marks sessions from email and password.
const ProviderPassword = "password"

// AuthService signs the user in and out.
type AuthService struct {
	api   *api.API
	creds *credentials.Store
}

// NewAuthService creates a new auth service
func NewAuthService(a *api.API, creds *credentials.Store) *AuthService {
	return &AuthService{api: a, creds: creds}
}

// Login signs in with email and password and stores the session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*credentials.Credentials, error) {
	email = strings.TrimSpace(email)
	if err := validation.Struct(api.LoginRequest{Email: email, Password: password}); err != nil {
		return nil, err
	}

	logger.Debug("Logging in", "email", email)
	session, err := s.api.Login(ctx, email, password)
	if err != nil {
		if clierrors.IsType(err, clierrors.ErrorTypeSessionExpired) {
			return nil, clierrors.AuthError("Invalid email or password").WithCause(err)
		}
		return nil, fmt.Errorf("failed to log in: %w", err)
	}
	return s.save(session, ProviderPassword)
}

// SignInWithIdentity exchanges an identity provider token for a session.
func (s *AuthService) SignInWithIdentity(ctx context.Context, provider, idToken, nonce string) (*credentials.Credentials, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if err := validation.Struct(api.IdentityRequest{Provider: provider, IDToken: idToken, Nonce: nonce}); err != nil {
		return nil, err
	}

	logger.Debug("Signing in with identity provider", "provider", provider)
	session, err := s.api.SignInWithIdentity(ctx, provider, idToken, nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to sign in with %s: %w", provider, err)
	}
	return s.save(session, provider)
}

// Register creates an account and stores its session. The username, email
// and password are checked before anything is sent.
func (s *AuthService) Register(ctx context.Context, req api.RegisterRequest) (*credentials.Credentials, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	logger.Debug("Registering", "username", req.Username)
	session, err := s.api.Register(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to register: %w", err)
	}
	return s.save(session, ProviderPassword)
}

func (s *AuthService) save(session *api.Session, provider string) (*credentials.Credentials, error) {
	creds := &credentials.Credentials{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(session.ExpiresIn) * time.Second),
		UserID:       session.User.ID,
		Username:     session.User.Username,
		Email:        session.User.Email,
		Provider:     provider,
	}
	if err := s.creds.Save(creds); err != nil {
		return nil, fmt.Errorf("failed to save credentials: %w", err)
	}
	logger.Info("Logged in", "user", creds.Username, "provider", provider)
	return creds, nil
}

// Logout forgets the stored session.
func (s *AuthService) Logout() error {
	if err := s.creds.Delete(); err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return nil
}

// Status returns the stored session, or nil when logged out.
func (s *AuthService) Status() (*credentials.Credentials, error) {
	return s.creds.Load()
}

// Viewer returns the logged-in user from stored credentials.
func (s *AuthService) Viewer() (api.User, error) {
	creds, err := s.creds.Load()
	if err != nil {
		return api.User{}, err
	}
	if creds == nil {
		return api.User{}, clierrors.AuthError("Not logged in")
	}
	if creds.IsExpired() {
		return api.User{}, clierrors.SessionExpiredError()
	}
	return api.User{ID: creds.UserID, Username: creds.Username, Email: creds.Email}, nil
}
