package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"go.uber.org/zap"

	"github.com/fatflowers/matchpay/pkg/apperr"
	"github.com/fatflowers/matchpay/pkg/config"
	"github.com/fatflowers/matchpay/pkg/logctx"
	"github.com/fatflowers/matchpay/pkg/response"
	"github.com/fatflowers/matchpay/pkg/types"
)

const keyCaller = "caller"

var ErrInvalidToken = errors.New("invalid token")

// Claims carried by access tokens. The subject is the user id.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.StandardClaims
}

// ParseToken validates an HS256 token signed with secret.
func ParseToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// AuthRequired validates the bearer token and stores the caller in context.
func AuthRequired(cfg *config.Config, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reject := func(msg string) {
			status, body := response.FromError(apperr.Unauthenticated("%s", msg))
			c.AbortWithStatusJSON(status, body)
		}
		if cfg.Auth.JWTSecret == "" {
			logctx.FromGin(c, base).Errorw("auth_secret_missing")
			reject("authentication unavailable")
			return
		}
		header := c.GetHeader("Authorization")
		if header == "" {
			reject("missing authorization header")
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			reject("invalid authorization format")
			return
		}
		claims, err := ParseToken(cfg.Auth.JWTSecret, parts[1])
		if err != nil {
			logctx.FromGin(c, base).Infow("auth_token_rejected", "err", err)
			reject("invalid or expired token")
			return
		}

		caller := &types.Caller{UserID: claims.Subject, Email: claims.Email}
		c.Set(keyCaller, caller)
		ctx := logctx.WithUserID(c.Request.Context(), caller.UserID)
		reqLogger := logctx.FromGin(c, base).With("user_id", caller.UserID)
		c.Set(string(logctx.KeyLogger), reqLogger)
		c.Request = c.Request.WithContext(logctx.WithLogger(ctx, reqLogger))
		c.Next()
	}
}

// CallerFrom returns the caller stored by AuthRequired, or nil.
func CallerFrom(c *gin.Context) *types.Caller {
	v, ok := c.Get(keyCaller)
	if !ok {
		return nil
	}
	caller, _ := v.(*types.Caller)
	return caller
}
