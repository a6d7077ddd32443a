package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront-payments/internal/middleware"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func signToken(t *testing.T, key string, method jwt.SigningMethod, sub string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(method, jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

func run(t *testing.T, mw echo.MiddlewareFunc, authHeader string) (int, string) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set(echo.HeaderAuthorization, authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen string
	err := mw(func(c echo.Context) error {
		seen = middleware.UserID(c)
		return c.NoContent(http.StatusNoContent)
	})(c)
	if err != nil {
		var he *echo.HTTPError
		require.ErrorAs(t, err, &he)
		return he.Code, seen
	}
	return rec.Code, seen
}

func TestJWTAuth(t *testing.T) {
	mw := middleware.JWTAuth(secret)

	code, user := run(t, mw, "Bearer "+signToken(t, secret, jwt.SigningMethodHS256, "demo-user-001", time.Now().Add(time.Hour)))
	assert.Equal(t, http.StatusNoContent, code)
	assert.Equal(t, "demo-user-001", user)

	cases := map[string]string{
		"missing":      "",
		"not bearer":   "Basic abc",
		"wrong secret": "Bearer " + signToken(t, "other", jwt.SigningMethodHS256, "u1", time.Now().Add(time.Hour)),
		"expired":      "Bearer " + signToken(t, secret, jwt.SigningMethodHS256, "u1", time.Now().Add(-time.Minute)),
		"no subject":   "Bearer " + signToken(t, secret, jwt.SigningMethodHS256, "", time.Now().Add(time.Hour)),
		"wrong alg":    "Bearer " + signToken(t, secret, jwt.SigningMethodHS512, "u1", time.Now().Add(time.Hour)),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			code, user := run(t, mw, header)
			assert.Equal(t, http.StatusUnauthorized, code)
			assert.Empty(t, user)
		})
	}
}

func TestCronKeyAuth(t *testing.T) {
	code, _ := run(t, middleware.CronKeyAuth("cron-key"), "Bearer cron-key")
	assert.Equal(t, http.StatusNoContent, code)

	code, _ = run(t, middleware.CronKeyAuth("cron-key"), "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = run(t, middleware.CronKeyAuth(""), "Bearer ")
	assert.Equal(t, http.StatusUnauthorized, code)
}
