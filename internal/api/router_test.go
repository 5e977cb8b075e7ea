package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/natours/tour-booking/internal/api/middleware"
	"github.com/natours/tour-booking/internal/core/service"
	"github.com/natours/tour-booking/internal/infrastructure/crypto"
	"github.com/natours/tour-booking/internal/infrastructure/db/memory"
	"github.com/natours/tour-booking/internal/infrastructure/mail"
	"github.com/natours/tour-booking/internal/infrastructure/token"
)

func newTestRouter(t *testing.T, perHour int) *echo.Echo {
	t.Helper()

	issuer, err := token.NewJWTIssuer("router-test-secret-router-test-secret", time.Hour)
	require.NoError(t, err)

	hasher := crypto.NewBcryptHasher(bcrypt.MinCost, nil)
	store := service.NewCredentialStore(memory.NewUserRepository())
	audit := memory.NewAuditLog()
	log := zerolog.Nop()

	auth := service.NewAuthService(service.AuthDeps{
		Store:   store,
		Hasher:  hasher,
		Tokens:  issuer,
		Resets:  service.NewResetTokenManager(store, hasher, 10*time.Minute),
		Mailer:  mail.NewLogMailer(log),
		Audit:   audit,
		Timeout: 5 * time.Second,
		Logger:  log,
	})

	return NewRouter(RouterDeps{
		Auth:             auth,
		Users:            service.NewUserService(store, audit, 5*time.Second, log),
		Sessions:         service.NewSessionService(issuer, store, 5*time.Second, log),
		Logger:           log,
		BaseURL:          "http://natours.test",
		RateLimitPerHour: perHour,
		MetricsRegistry:  prometheus.NewRegistry(),
	})
}

func do(e *echo.Echo, method, path, body string, setup ...func(*http.Request)) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for _, fn := range setup {
		fn(req)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func bearer(tok string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set(echo.HeaderAuthorization, "Bearer "+tok) }
}

func withCookie(c *http.Cookie) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(c) }
}

type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Token   string `json:"token"`
	Data    struct {
		User *struct {
			ID    string `json:"id"`
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
	} `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			return c
		}
	}
	return nil
}

const signupBody = `{"name":"Ana","email":"ana@example.com","password":"pass1234","passwordConfirm":"pass1234"}`

func TestRouter_SignupAndProtectedRoutes(t *testing.T) {
	e := newTestRouter(t, 100)

	rec := do(e, http.MethodPost, "/api/v1/users/signup", signupBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	signed := decode(t, rec)
	require.NotEmpty(t, signed.Token)
	require.NotNil(t, signed.Data.User)
	assert.Equal(t, "user", signed.Data.User.Role)
	assert.NotContains(t, rec.Body.String(), "password")

	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, signed.Token, cookie.Value)

	rec = do(e, http.MethodGet, "/api/v1/users/me", "", bearer(signed.Token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "ana@example.com", decode(t, rec).Data.User.Email)

	rec = do(e, http.MethodGet, "/api/v1/users/me", "", withCookie(&http.Cookie{Name: middleware.SessionCookie, Value: signed.Token}))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(e, http.MethodGet, "/api/v1/users/me", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "You are not logged in! Please log in to get access.", decode(t, rec).Message)

	rec = do(e, http.MethodPatch, "/api/v1/users/"+signed.Data.User.ID+"/reactivate", "", bearer(signed.Token))
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "fail", decode(t, rec).Status)
}

func TestRouter_LoginAndPasswordUpdate(t *testing.T) {
	e := newTestRouter(t, 100)
	require.Equal(t, http.StatusCreated, do(e, http.MethodPost, "/api/v1/users/signup", signupBody).Code)

	rec := do(e, http.MethodPost, "/api/v1/users/login", `{"email":"ana@example.com","password":"wrong-pass"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Incorrect email or password", decode(t, rec).Message)

	rec = do(e, http.MethodPost, "/api/v1/users/login", `{"email":"ana@example.com","password":"pass1234"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tok := decode(t, rec).Token

	rec = do(e, http.MethodPatch, "/api/v1/users/updateMyPassword",
		`{"passwordCurrent":"nope-nope","password":"newpass123","passwordConfirm":"newpass123"}`, bearer(tok))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Your current password is incorrect.", decode(t, rec).Message)

	rec = do(e, http.MethodPatch, "/api/v1/users/updateMyPassword",
		`{"passwordCurrent":"pass1234","password":"newpass123","passwordConfirm":"newpass123"}`, bearer(tok))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decode(t, rec).Token)
}

func TestRouter_SignupValidation(t *testing.T) {
	e := newTestRouter(t, 100)

	rec := do(e, http.MethodPost, "/api/v1/users/signup",
		`{"name":"Ana","email":"ana@example.com","password":"pass1234","passwordConfirm":"different"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "fail", decode(t, rec).Status)

	require.Equal(t, http.StatusCreated, do(e, http.MethodPost, "/api/v1/users/signup", signupBody).Code)
	rec = do(e, http.MethodPost, "/api/v1/users/signup", signupBody)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestRouter_ForgotPasswordUnknownEmail(t *testing.T) {
	e := newTestRouter(t, 100)

	rec := do(e, http.MethodPost, "/api/v1/users/forgotPassword", `{"email":"ghost@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Token sent to email!", decode(t, rec).Message)

	rec = do(e, http.MethodPatch, "/api/v1/users/resetPassword/deadbeef", `{"password":"newpass123","passwordConfirm":"newpass123"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Token is invalid or has expired", decode(t, rec).Message)
}

func TestRouter_SessionIsOptional(t *testing.T) {
	e := newTestRouter(t, 100)

	rec := do(e, http.MethodGet, "/api/v1/session", "", bearer("garbage"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode(t, rec).Data.User)

	signed := decode(t, do(e, http.MethodPost, "/api/v1/users/signup", signupBody))
	rec = do(e, http.MethodGet, "/api/v1/session", "", bearer(signed.Token))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, decode(t, rec).Data.User)
}

func TestRouter_Logout(t *testing.T) {
	e := newTestRouter(t, 100)

	rec := do(e, http.MethodGet, "/api/v1/users/logout", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)

	rec = do(e, http.MethodGet, "/api/v1/users/me", "", withCookie(&http.Cookie{Name: middleware.SessionCookie, Value: cookie.Value}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_RateLimit(t *testing.T) {
	e := newTestRouter(t, 2)

	for i := 0; i < 2; i++ {
		rec := do(e, http.MethodGet, "/api/v1/session", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := do(e, http.MethodGet, "/api/v1/session", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many requests from this IP, please try again in an hour!", decode(t, rec).Message)

	// Operational endpoints are outside the limiter.
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/health", "").Code)
}

func TestRouter_OperationalEndpoints(t *testing.T) {
	e := newTestRouter(t, 100)

	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/health/ready", "").Code)

	do(e, http.MethodGet, "/api/v1/session", "")
	rec := do(e, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "natours_requests_total")
}
