package service_test

import (
	"os"
	"path/filepath"

	"github.com/zfogg/nearby/cli/pkg/api"
	"github.com/zfogg/nearby/cli/pkg/credentials"
	clierrors "github.com/zfogg/nearby/cli/pkg/errors"
	"github.com/zfogg/nearby/cli/pkg/service"
)

func (s *ServiceTestSuite) authService() (*service.AuthService, *credentials.Store) {
	store := credentials.NewStore(filepath.Join(s.T().TempDir(), "credentials"))
	return service.NewAuthService(s.apiFor(""), store), store
}

func (s *ServiceTestSuite) TestLoginStoresSession() {
	auth, store := s.authService()

	creds, err := auth.Login(s.ctx, "casey@example.com", "hunter22")
	s.Require().NoError(err)
	s.Equal("casey", creds.Username)
	s.Equal("me", creds.UserID)
	s.Equal(service.ProviderPassword, creds.Provider)
	s.True(creds.IsValid())

	_, err = os.Stat(store.Path())
	s.NoError(err)

	who, err := auth.Viewer()
	s.Require().NoError(err)
	s.Equal("me", who.ID)
}

func (s *ServiceTestSuite) TestLoginWrongPassword() {
	auth, store := s.authService()

	_, err := auth.Login(s.ctx, "casey@example.com", "nope")
	s.Require().Error(err)
	s.True(clierrors.IsType(err, clierrors.ErrorTypeAuth))
	s.Equal("Invalid email or password", err.Error())

	creds, err := store.Load()
	s.NoError(err)
	s.Nil(creds)
}

func (s *ServiceTestSuite) TestLoginRequiresFields() {
	auth, _ := s.authService()
	_, err := auth.Login(s.ctx, " ", "pw")
	s.True(clierrors.IsType(err, clierrors.ErrorTypeValidation))
	_, err = auth.Login(s.ctx, "casey@example.com", "")
	s.True(clierrors.IsType(err, clierrors.ErrorTypeValidation))
	s.Zero(s.backend.Calls("POST /auth/signin"))
}

func (s *ServiceTestSuite) TestRegisterValidatesUsernameLocally() {
	auth, _ := s.authService()

	_, err := auth.Register(s.ctx, api.RegisterRequest{Username: "ab", Email: "ab@example.com", Password: "password1"})
	s.Require().Error(err)
	cliErr := clierrors.CategorizeError(err)
	s.Equal(clierrors.ErrorTypeValidation, cliErr.Type)
	s.Equal("username", cliErr.Field)
	s.Zero(s.backend.Calls("POST /auth/register"))
}

func (s *ServiceTestSuite) TestRegister() {
	auth, _ := s.authService()

	creds, err := auth.Register(s.ctx, api.RegisterRequest{Username: "river", Email: "river@example.com", Password: "password1"})
	s.Require().NoError(err)
	s.Equal("river", creds.Username)

	_, err = auth.Register(s.ctx, api.RegisterRequest{Username: "river", Email: "other@example.com", Password: "password1"})
	s.True(clierrors.IsType(err, clierrors.ErrorTypeConflict))
}

func (s *ServiceTestSuite) TestIdentitySignIn() {
	auth, _ := s.authService()

	creds, err := auth.SignInWithIdentity(s.ctx, "Google", "gid-1", "n0nce")
	s.Require().NoError(err)
	s.Equal("google", creds.Provider)

	_, err = auth.SignInWithIdentity(s.ctx, "myspace", "tok", "n0nce")
	s.Require().Error(err)
	s.True(clierrors.IsType(err, clierrors.ErrorTypeRejected))
	s.Contains(err.Error(), "sign-in provider not supported")
}

func (s *ServiceTestSuite) TestLogout() {
	auth, _ := s.authService()
	_, err := auth.Login(s.ctx, "casey@example.com", "hunter22")
	s.Require().NoError(err)

	s.Require().NoError(auth.Logout())
	creds, err := auth.Status()
	s.NoError(err)
	s.Nil(creds)

	_, err = auth.Viewer()
	s.True(clierrors.IsType(err, clierrors.ErrorTypeAuth))
	s.NoError(auth.Logout(), "logging out twice is fine")
}
