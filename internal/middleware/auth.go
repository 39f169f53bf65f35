package middleware

import (
	"context"
	"strings"

	"Food_Share/internal/logging"
	"Food_Share/internal/model"
	"Food_Share/internal/pkg"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	ContextUserIDKey  = "user_id"
	ContextUserKey    = "user"
	ContextTokenIDKey = "token_id"
)

// Authenticator resolves a bearer token to the acting user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, *pkg.Claims, error)
}

// AuthMiddleware rejects the call with 401 unless a valid session token is
// presented, then injects the user.
func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, pkg.Unauthorized("not authorized, no token"))
			return
		}
		scheme, tokenStr, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || tokenStr == "" {
			abort(c, pkg.Unauthorized("invalid authorization format"))
			return
		}

		user, claims, err := auth.Authenticate(c.Request.Context(), strings.TrimSpace(tokenStr))
		if err != nil {
			abort(c, err)
			return
		}

		c.Set(ContextUserIDKey, user.ID)
		c.Set(ContextUserKey, user)
		c.Set(ContextTokenIDKey, claims.ID)
		c.Next()
	}
}

// RequireRole only lets users of role through. It must run after
// AuthMiddleware.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || user.Role != role {
			abort(c, pkg.Unauthorized("not authorized as "+role))
			return
		}
		c.Next()
	}
}

func CurrentUser(c *gin.Context) *model.User {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*model.User)
	return user
}

func abort(c *gin.Context, err error) {
	if pkg.KindOf(err) == pkg.KindInternal {
		logging.FromContext(c, logrus.StandardLogger()).WithError(err).Error("authentication failed")
	}
	c.AbortWithStatusJSON(pkg.KindOf(err).HTTPStatus(), gin.H{"msg": pkg.PublicMessage(err)})
}
