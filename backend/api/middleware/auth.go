package middleware

import (
	"net/http"
	"strings"

	"filebox/backend/common"
	fberrors "filebox/backend/common/errors"
	"filebox/backend/common/i18n"
	"filebox/backend/model"
	"filebox/backend/service"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserKey   = "user"
	ctxTokenKey  = "token"
	ctxClaimsKey = "claims"
)

// JWTAuth is a middleware that validates JWT tokens
func JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := c.GetString("lang")

		// Get the Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			common.AbortWithErrorStr(c, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		// Check if it's a Bearer token
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			common.AbortWithErrorStr(c, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
			return
		}

		// Validate the token
		tokenString := parts[1]
		claims, err := service.ValidateToken(tokenString)
		if err != nil {
			common.AbortWithErrorStr(c, http.StatusUnauthorized, err.Error())
			return
		}

		// Check if token is blacklisted
		if service.IsTokenInvalidated(c.Request.Context(), tokenString) {
			common.AbortWithErrorStr(c, http.StatusUnauthorized, i18n.Translate(fberrors.ErrTokenInvalidated, lang))
			return
		}

		// 用户已删除（或正在删除）时 token 立即失效
		user, err := model.GetUserById(c.Request.Context(), claims.UserID, lang)
		if err != nil {
			if i18n.IsErrorCode(err, fberrors.ErrUserNotFound) {
				common.AbortWithErrorStr(c, http.StatusUnauthorized, i18n.Translate(fberrors.ErrUnauthorized, lang))
				return
			}
			common.SysError("load user for token: " + err.Error())
			common.AbortWithErrorStr(c, http.StatusInternalServerError, i18n.Translate(fberrors.ErrInternalServer, lang))
			return
		}

		// Set user information in the context
		c.Set("user_id", user.ID)
		c.Set("username", user.Username)
		c.Set(ctxUserKey, user)
		c.Set(ctxTokenKey, tokenString)
		c.Set(ctxClaimsKey, claims)

		c.Next()
	}
}

// CurrentUser returns the user resolved by JWTAuth, or nil.
func CurrentUser(c *gin.Context) *model.User {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*model.User)
	return user
}

// CurrentToken returns the raw bearer token and its claims.
func CurrentToken(c *gin.Context) (string, *service.JWTClaims) {
	claims, _ := c.MustGet(ctxClaimsKey).(*service.JWTClaims)
	return c.GetString(ctxTokenKey), claims
}
