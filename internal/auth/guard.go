// Package auth is the per-request guard chain: bearer-token
// authentication and role checks, applied after the throttle middleware.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ravikovind/griha-homes/internal/security"
	"github.com/ravikovind/griha-homes/internal/storage"
)

const identityKey = "auth_identity"

// Identity is the resolved caller, attached to the request context so
// handlers never re-query the user row.
type Identity struct {
	UserID uuid.UUID
	Phone  string
	Role   string
}

type TokenVerifier interface {
	VerifyAccess(token string) (*security.Claims, error)
}

type UserResolver interface {
	GetUserByID(ctx context.Context, userID uuid.UUID) (*storage.User, error)
}

type Guard struct {
	Tokens TokenVerifier
	Users  UserResolver
	Logger *slog.Logger
}

func NewGuard(tokens TokenVerifier, users UserResolver, logger *slog.Logger) *Guard {
	return &Guard{Tokens: tokens, Users: users, Logger: logger}
}

// RequireAuth verifies the bearer access token and resolves its subject.
// The token alone is not enough: the user must still exist, be active,
// and not be soft-deleted at request time.
func (g *Guard) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractBearer(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "missing token"})
			return
		}

		claims, err := g.Tokens.VerifyAccess(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "invalid token"})
			return
		}

		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "invalid token"})
			return
		}

		user, err := g.Users.GetUserByID(c.Request.Context(), userID)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				g.Logger.Error("auth subject lookup failed", "error", err)
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "User not found or inactive"})
			return
		}
		if user.Deleted() || user.Status != storage.StatusActive {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "User not found or inactive"})
			return
		}

		c.Set(identityKey, Identity{UserID: user.ID, Phone: user.Phone, Role: user.Role})
		c.Next()
	}
}

// RequireRoles allows only callers whose resolved role is in the set.
// It must run after RequireAuth.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := IdentityFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "missing identity"})
			return
		}
		for _, role := range roles {
			if ident.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"code": "FORBIDDEN", "message": "insufficient role"})
	}
}

func IdentityFromContext(c *gin.Context) (Identity, bool) {
	val, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	ident, ok := val.(Identity)
	return ident, ok
}

func ExtractBearer(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
