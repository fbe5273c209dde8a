package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/estudio-sys/estudio-adm-api/internal/models"
)

func testAuthService(t *testing.T) *AuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	return NewAuthService(AuthConfig{
		Username:     "admin",
		PasswordHash: string(hash),
		TokenSecret:  "test-secret",
		TokenExpiry:  time.Hour,
		Issuer:       "estudio-adm-api",
	}, nil, nil)
}

func TestLoginIssuesValidToken(t *testing.T) {
	svc := testAuthService(t)

	res, err := svc.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "secret"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, int64(3600), res.ExpiresIn)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, "estudio-adm-api", claims.Issuer)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc := testAuthService(t)
	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "wrong"})
	assert.Error(t, err)
}

func TestLoginRejectsUnknownUser(t *testing.T) {
	svc := testAuthService(t)
	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "intruder", Password: "secret"})
	assert.Error(t, err)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := testAuthService(t)
	_, err := svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	svc := testAuthService(t)
	res, err := svc.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "secret"})
	require.NoError(t, err)

	other := NewAuthService(AuthConfig{
		Username:     "admin",
		PasswordHash: "ignored",
		TokenSecret:  "different-secret",
		TokenExpiry:  time.Hour,
	}, nil, nil)
	_, err = other.ValidateToken(res.AccessToken)
	assert.Error(t, err)
}
