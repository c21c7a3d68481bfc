package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/docuflow/backend/internal/application/services"
	"github.com/docuflow/backend/pkg/auth"
	"github.com/docuflow/backend/pkg/constants"
)

// RequireAuth is a middleware that validates JWT bearer tokens
func RequireAuth(authSvc *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(constants.HeaderAuthorization)
		if authHeader == "" {
			abortUnauthorized(c, "No authorization token provided")
			return
		}

		// Extract token (format: "Bearer <token>")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortUnauthorized(c, "Invalid authorization header format")
			return
		}

		claims, err := authSvc.ValidateToken(parts[1])
		if err != nil {
			abortUnauthorized(c, err.Error())
			return
		}

		c.Set(constants.ContextKeyUser, claims.User)
		c.Next()
	}
}

// RequireAdmin checks that the authenticated user is an administrator
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		userInterface, exists := c.Get(constants.ContextKeyUser)
		if !exists {
			abortUnauthorized(c, "User not authenticated")
			return
		}

		user := userInterface.(auth.UserSession)
		if !user.IsAdmin {
			c.JSON(http.StatusForbidden, gin.H{
				constants.ResponseError: "Forbidden",
				constants.FieldMessage:  "Only administrators can access this resource",
				"code":                  "FORBIDDEN",
				"data":                  nil,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, gin.H{
		constants.ResponseError: "Unauthorized",
		constants.FieldMessage:  message,
		"code":                  "UNAUTHORIZED",
		"data":                  nil,
	})
	c.Abort()
}
