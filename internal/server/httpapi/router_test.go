package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/fitauth/internal/logging"
	"github.com/dmitrijs2005/fitauth/internal/server/auth"
	"github.com/dmitrijs2005/fitauth/internal/server/config"
	"github.com/dmitrijs2005/fitauth/internal/server/hasher"
	"github.com/dmitrijs2005/fitauth/internal/server/repositories/users"
	"github.com/dmitrijs2005/fitauth/internal/server/services"
	"github.com/dmitrijs2005/fitauth/internal/timex"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type captureMailer struct {
	verification map[string]string
	reset        map[string]string
}

func (m *captureMailer) SendVerification(ctx context.Context, to, token string) error {
	m.verification[to] = token
	return nil
}

func (m *captureMailer) SendPasswordReset(ctx context.Context, to, token string) error {
	m.reset[to] = token
	return nil
}

type env struct {
	router *gin.Engine
	clock  *timex.FixedClock
	mailer *captureMailer
}

func newEnv(t *testing.T, ratePerMinute int) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clock := &timex.FixedClock{T: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	h, err := hasher.NewBcryptHasher(bcrypt.MinCost, 4)
	require.NoError(t, err)

	repo := users.NewMemoryRepository(clock)
	issuer := auth.NewIssuer([]byte("test-secret"), time.Hour, clock)
	mailer := &captureMailer{verification: map[string]string{}, reset: map[string]string{}}
	svc := services.NewAuthService(users.NewCredentialStore(repo, h), h, issuer,
		&config.Config{ResetTokenValidityDuration: time.Hour}, logging.Nop(),
		services.WithMailer(mailer), services.WithClock(clock))

	handler := NewHandler(svc, issuer, logging.Nop(), ratePerMinute, clock)
	return &env{router: handler.Router(), clock: clock, mailer: mailer}
}

func (e *env) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func TestEndToEnd_JaneDoe(t *testing.T) {
	e := newEnv(t, 0)

	w, body := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"fullName": "Jane Doe", "email": "Jane@X.com", "password": "Secret123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, true, body["success"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "jane@x.com", user["email"])
	assert.Equal(t, false, user["isVerified"])
	assert.NotContains(t, w.Body.String(), "password")
	assert.NotContains(t, w.Body.String(), e.mailer.verification["jane@x.com"])
	userID := user["id"]

	w, body = e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "jane@x.com", "password": "Secret123",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Login successful", body["message"])
	token := body["token"].(string)
	require.NotEmpty(t, token)
	assert.Equal(t, userID, body["user"].(map[string]any)["id"])

	w, body = e.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := body["user"].(map[string]any)
	assert.Equal(t, "Jane Doe", me["fullName"])
	assert.Equal(t, "jane@x.com", me["email"])
	assert.NotContains(t, w.Body.String(), "passwordHash")

	reversed := []rune(token)
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}
	for _, bad := range []string{string(reversed), token[:len(token)-5]} {
		w, body = e.do(t, http.MethodGet, "/api/auth/me", bad, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, false, body["success"])
	}
}

func TestMe_NoToken(t *testing.T) {
	e := newEnv(t, 0)

	w, body := e.do(t, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Not authorized, no token", body["message"])
}

func TestMe_ExpiredToken(t *testing.T) {
	e := newEnv(t, 0)

	_, body := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"fullName": "Jane Doe", "email": "jane@x.com", "password": "Secret123",
	})
	token := body["token"].(string)

	e.clock.T = e.clock.T.Add(2 * time.Hour)
	w, body := e.do(t, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Session expired, please log in again", body["message"])
}

func TestRegister_Errors(t *testing.T) {
	e := newEnv(t, 0)

	w, body := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"fullName": "Jo", "email": "bad", "password": "weak",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Validation failed", body["message"])
	assert.Len(t, body["errors"], 3)

	w, _ = e.do(t, http.MethodPost, "/api/auth/register", "", `{"fullName":"Jane Doe","email":"j@x.com","password":"Secret123","isVerified":true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "unknown fields are rejected")

	w, _ = e.do(t, http.MethodPost, "/api/auth/register", "", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"fullName": "Jane Doe", "email": "j@x.com", "password": "Secret123",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	w, body = e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"fullName": "Jane Doe", "email": "J@X.com", "password": "Secret123",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "User with this email already exists", body["message"])
}

func TestLogin_InvalidCredentialsIdentical(t *testing.T) {
	e := newEnv(t, 0)
	e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"fullName": "Jane Doe", "email": "jane@x.com", "password": "Secret123",
	})

	w1, _ := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ghost@x.com", "password": "Secret123"})
	w2, _ := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "jane@x.com", "password": "Wrong1234"})

	assert.Equal(t, http.StatusUnauthorized, w1.Code)
	assert.Equal(t, w1.Code, w2.Code)
	assert.JSONEq(t, w1.Body.String(), w2.Body.String())
}

func TestVerifyEmail(t *testing.T) {
	e := newEnv(t, 0)
	_, body := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"fullName": "Jane Doe", "email": "jane@x.com", "password": "Secret123",
	})
	token := body["token"].(string)
	vt := e.mailer.verification["jane@x.com"]

	w, body := e.do(t, http.MethodPost, "/api/auth/verify-email", "", map[string]string{"token": vt})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Email verified successfully", body["message"])

	_, body = e.do(t, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, true, body["user"].(map[string]any)["isVerified"])

	w, _ = e.do(t, http.MethodPost, "/api/auth/verify-email", "", map[string]string{"token": vt})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateProfileAndLogout(t *testing.T) {
	e := newEnv(t, 0)
	_, body := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"fullName": "Jane Doe", "email": "jane@x.com", "password": "Secret123",
	})
	token := body["token"].(string)

	w, body := e.do(t, http.MethodPut, "/api/auth/profile", token, map[string]any{
		"fullName": "Janet Doe",
		"profile":  map[string]any{"age": 30, "gender": "female", "height": 170.5, "fitnessGoal": "maintain"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	user := body["user"].(map[string]any)
	assert.Equal(t, "Janet Doe", user["fullName"])
	assert.Equal(t, 170.5, user["profile"].(map[string]any)["height"])

	w, _ = e.do(t, http.MethodPut, "/api/auth/profile", token, map[string]any{"email": "x@y.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "email is not updatable")

	w, _ = e.do(t, http.MethodPut, "/api/auth/profile", token, map[string]any{"profile": map[string]any{"gender": "robot"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = e.do(t, http.MethodPut, "/api/auth/profile", "", map[string]any{"fullName": "Nobody Here"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body = e.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Logged out successfully", body["message"])

	w, _ = e.do(t, http.MethodPost, "/api/auth/logout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPasswordResetRoutes(t *testing.T) {
	e := newEnv(t, 0)
	e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"fullName": "Jane Doe", "email": "jane@x.com", "password": "Secret123",
	})

	w, _ := e.do(t, http.MethodPost, "/api/auth/forgot-password", "", map[string]string{"email": "ghost@x.com"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = e.do(t, http.MethodPost, "/api/auth/forgot-password", "", map[string]string{"email": "jane@x.com"})
	require.Equal(t, http.StatusOK, w.Code)
	rt := e.mailer.reset["jane@x.com"]
	require.NotEmpty(t, rt)

	w, _ = e.do(t, http.MethodPost, "/api/auth/reset-password", "", map[string]string{"token": rt, "password": "NewSecret456"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "jane@x.com", "password": "NewSecret456"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, body := e.do(t, http.MethodPost, "/api/auth/reset-password", "", map[string]string{"token": rt, "password": "NewSecret789"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, body["success"])
}

func TestProfilePicture_Disabled(t *testing.T) {
	e := newEnv(t, 0)
	_, body := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"fullName": "Jane Doe", "email": "jane@x.com", "password": "Secret123",
	})
	token := body["token"].(string)

	w, _ := e.do(t, http.MethodPost, "/api/auth/profile/picture", token, nil)
	assert.Equal(t, http.StatusNotImplemented, w.Code)

	w, _ = e.do(t, http.MethodGet, "/api/auth/profile/picture", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRateLimit(t *testing.T) {
	e := newEnv(t, 2)
	creds := map[string]string{"email": "ghost@x.com", "password": "Secret123"}

	for i := 0; i < 2; i++ {
		w, _ := e.do(t, http.MethodPost, "/api/auth/login", "", creds)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w, body := e.do(t, http.MethodPost, "/api/auth/login", "", creds)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	e.clock.T = e.clock.T.Add(time.Minute)
	w, _ = e.do(t, http.MethodPost, "/api/auth/login", "", creds)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealthz(t *testing.T) {
	e := newEnv(t, 0)

	w, body := e.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
}

func TestUnknownRoute(t *testing.T) {
	e := newEnv(t, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/nope", strings.NewReader(""))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
