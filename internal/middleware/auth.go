package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/familyhub/internal/apperr"
	"github.com/lalith-99/familyhub/internal/auth"
)

// Context keys for the authenticated session. Handlers read them through
// the helpers below rather than calling c.Get directly.
const (
	ContextKeyUserID  = "user_id"
	ContextKeyEmail   = "email"
	ContextKeyTokenID = "token_id"
	ContextKeyToken   = "token"
)

// TokenVerifier checks a session token. It must reject revoked tokens,
// not just expired ones.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*auth.Claims, error)
}

// AuthMiddleware rejects requests without a live session token and stores
// the session's claims on the gin context.
//
// Browsers cannot set headers on a WebSocket handshake, so a token in the
// access_token query parameter is accepted as well.
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, msg := bearerToken(c)
		if token == "" {
			abort(c, apperr.New(apperr.CodeUnauthenticated, msg))
			return
		}

		claims, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			if apperr.CodeOf(err) != apperr.CodeUnauthenticated {
				abort(c, err)
				return
			}
			abort(c, apperr.New(apperr.CodeUnauthenticated, apperr.MessageOf(err)))
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyEmail, claims.Email)
		c.Set(ContextKeyTokenID, claims.ID)
		c.Set(ContextKeyToken, token)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (token, problem string) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if q := c.Query("access_token"); q != "" {
			return q, ""
		}
		return "", "missing authorization header"
	}

	scheme, value, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(value) == "" {
		return "", "invalid authorization format, expected: Bearer <token>"
	}
	return strings.TrimSpace(value), ""
}

func abort(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	c.AbortWithStatusJSON(code.HTTPStatus(), gin.H{
		"error": apperr.MessageOf(err),
		"code":  code,
	})
}

func GetUserID(c *gin.Context) string {
	return getString(c, ContextKeyUserID)
}

func GetEmail(c *gin.Context) string {
	return getString(c, ContextKeyEmail)
}

func GetTokenID(c *gin.Context) string {
	return getString(c, ContextKeyTokenID)
}

// GetToken returns the raw token the request was authenticated with.
func GetToken(c *gin.Context) string {
	return getString(c, ContextKeyToken)
}

func getString(c *gin.Context, key string) string {
	val, exists := c.Get(key)
	if !exists {
		return ""
	}
	s, ok := val.(string)
	if !ok {
		return ""
	}
	return s
}
