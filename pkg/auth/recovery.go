package auth

import (
	"errors"

	"github.com/zfogg/nearby/cli/pkg/credentials"
	clierrors "github.com/zfogg/nearby/cli/pkg/errors"
	"github.com/zfogg/nearby/cli/pkg/logger"
)

// SessionRecovery clears a stale session so the next command starts clean
type SessionRecovery struct {
	creds *credentials.Store
}

// NewSessionRecovery creates a new session recovery handler
func NewSessionRecovery(creds *credentials.Store) *SessionRecovery {
	return &SessionRecovery{creds: creds}
}

// IsSessionError checks if an error is a session-related error
func IsSessionError(err error) bool {
	if err == nil {
		return false
	}
	var cliErr *clierrors.CLIError
	if !errors.As(err, &cliErr) {
		return false
	}
	return cliErr.Type == clierrors.ErrorTypeSessionExpired
}

// HandleSessionError forgets stored credentials when err says the session
// is no longer accepted. err is always returned unchanged.
func (sr *SessionRecovery) HandleSessionError(err error) error {
	if !IsSessionError(err) || sr.creds == nil {
		return err
	}

	logger.Debug("Session rejected, clearing stored credentials", "path", sr.creds.Path())
	if delErr := sr.creds.Delete(); delErr != nil {
		logger.Error("Failed to clear credentials", "error", delErr)
	}
	return err
}
