package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/matchpay/pkg/config"
	"github.com/fatflowers/matchpay/pkg/logctx"
	"github.com/fatflowers/matchpay/pkg/types"
)

const secret = "test-jwt-secret"

func init() { gin.SetMode(gin.TestMode) }

func token(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims() Claims {
	return Claims{
		Email: "fan@example.com",
		StandardClaims: jwt.StandardClaims{
			Subject:   "u1",
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
		},
	}
}

func newAuthEngine(jwtSecret string) *gin.Engine {
	cfg := &config.Config{}
	cfg.Auth.JWTSecret = jwtSecret
	log := zap.NewNop().Sugar()
	r := gin.New()
	r.Use(TraceMiddleware(), RequestLoggerMiddleware(log), AuthRequired(cfg, log))
	r.GET("/me", func(c *gin.Context) {
		caller := CallerFrom(c)
		c.JSON(http.StatusOK, gin.H{
			"user_id":  caller.UserID,
			"email":    caller.Email,
			"trace_id": logctx.TraceID(c.Request.Context()),
		})
	})
	return r
}

func get(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	req.Header.Set(HeaderRequestID, "trace-abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired_AcceptsValidToken(t *testing.T) {
	w := get(newAuthEngine(secret), "Bearer "+token(t, jwt.SigningMethodHS256, []byte(secret), validClaims()))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "trace-abc", w.Header().Get(HeaderRequestID))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, map[string]string{"user_id": "u1", "email": "fan@example.com", "trace_id": "trace-abc"}, body)
}

func TestAuthRequired_Rejects(t *testing.T) {
	expired := validClaims()
	expired.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	noSubject := validClaims()
	noSubject.Subject = ""

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"garbage", "Bearer not-a-token"},
		{"wrong key", "Bearer " + token(t, jwt.SigningMethodHS256, []byte("other"), validClaims())},
		{"expired", "Bearer " + token(t, jwt.SigningMethodHS256, []byte(secret), expired)},
		{"no subject", "Bearer " + token(t, jwt.SigningMethodHS256, []byte(secret), noSubject)},
		{"none alg", "Bearer " + token(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, validClaims())},
	}
	r := newAuthEngine(secret)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := get(r, tc.header)
			require.Equal(t, http.StatusUnauthorized, w.Code)
			require.Contains(t, w.Body.String(), `"code":40100`)
		})
	}
}

func TestAuthRequired_NoSecretConfigured(t *testing.T) {
	w := get(newAuthEngine(""), "Bearer "+token(t, jwt.SigningMethodHS256, []byte("x"), validClaims()))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTraceMiddleware_GeneratesID(t *testing.T) {
	r := gin.New()
	r.Use(TraceMiddleware(), RequestLoggerMiddleware(zap.NewNop().Sugar()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Len(t, w.Header().Get(HeaderRequestID), 36)
}

func TestCallerFrom_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	require.Nil(t, CallerFrom(c))
	c.Set(keyCaller, &types.Caller{UserID: "u"})
	require.Equal(t, "u", CallerFrom(c).UserID)
}
