package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/estudio-sys/estudio-adm-api/internal/models"
	"github.com/estudio-sys/estudio-adm-api/internal/service"
)

func newTestAuthHandler(t *testing.T) *AuthHandler {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	svc := service.NewAuthService(service.AuthConfig{
		Username:     "admin",
		PasswordHash: string(hash),
		TokenSecret:  "test-secret",
		TokenExpiry:  time.Hour,
		Issuer:       "estudio-adm-api",
	}, nil, nil)
	return NewAuthHandler(svc)
}

func performLogin(t *testing.T, h *AuthHandler, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	h.Login(c)
	return w
}

func TestAuthHandlerLogin(t *testing.T) {
	h := newTestAuthHandler(t)
	w := performLogin(t, h, models.LoginRequest{Username: "admin", Password: "secret"})
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.LoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.NotEmpty(t, envelope.Data.AccessToken)
}

func TestAuthHandlerLoginBadCredentials(t *testing.T) {
	h := newTestAuthHandler(t)
	w := performLogin(t, h, models.LoginRequest{Username: "admin", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerLoginInvalidBody(t *testing.T) {
	h := newTestAuthHandler(t)
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader([]byte(`invalid`)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	h.Login(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
