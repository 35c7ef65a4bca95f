package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/trojan-ui/trojan-ui/database/model"
	"github.com/trojan-ui/trojan-ui/web/entity"
	"github.com/trojan-ui/trojan-ui/web/service"

	"github.com/gin-gonic/gin"
)

const userKey = "user"

type TokenParser interface {
	ParseToken(token string) (*service.Claims, error)
}

type UserGetter interface {
	GetUser(ctx context.Context, username string) (*model.User, error)
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// JWTAuth requires a valid bearer token and loads its user, so permission
// changes take effect without waiting for the token to expire.
func JWTAuth(tokens TokenParser, users UserGetter) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, entity.Msg{Msg: "missing token"})
			return
		}
		claims, err := tokens.ParseToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, entity.Msg{Msg: "invalid token"})
			return
		}
		user, err := users.GetUser(c.Request.Context(), claims.Username)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, entity.Msg{Msg: "invalid token"})
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

// RequirePermission aborts with 403 unless the authenticated user holds at
// least the given tier. It must run after JWTAuth.
func RequirePermission(tier int) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := GetLoginUser(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, entity.Msg{Msg: "missing token"})
			return
		}
		if user.Permission < tier {
			c.AbortWithStatusJSON(http.StatusForbidden, entity.Msg{Msg: "permission denied"})
			return
		}
		c.Next()
	}
}

// GetLoginUser returns the user JWTAuth stored on the context, or nil.
func GetLoginUser(c *gin.Context) *model.User {
	if v, ok := c.Get(userKey); ok {
		if user, ok := v.(*model.User); ok {
			return user
		}
	}
	return nil
}
