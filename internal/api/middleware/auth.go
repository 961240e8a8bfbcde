// server/internal/api/middleware/auth.go
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"shipshape-api-server/internal/auth"
)

// TokenVerifier is satisfied by auth.InvokerTokens.
type TokenVerifier interface {
	Verify(tokenString, audience, expectedEmail string) (*auth.InvokerClaims, error)
}

// RequireInvoker chỉ cho phép danh tính invoker của scheduler gọi endpoint.
// Token thiếu hoặc sai trả về 401, token của danh tính khác trả về 403.
func RequireInvoker(verifier TokenVerifier, audience, invokerEmail string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format"})
			return
		}

		claims, err := verifier.Verify(tokenString, audience, invokerEmail)
		if err != nil {
			if errors.Is(err, auth.ErrUnexpectedCaller) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Caller is not allowed to invoke this endpoint"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set("invoker_email", claims.Email)
		c.Next()
	}
}
