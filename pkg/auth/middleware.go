package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ServiceAuthMiddleware gates admin routes with a bearer token compared
// against the configured ADMIN_TOKEN. When jwtSecret is non-empty, a bearer
// that fails the static comparison is also tried as a signed admin session
// JWT before being rejected.
func ServiceAuthMiddleware(expectedToken string, jwtSecret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "no authorization header"})
			c.Abort()
			return
		}

		parts := strings.Split(header, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			c.Abort()
			return
		}
		presented := parts[1]

		if err := ValidateServiceToken(presented, expectedToken); err == nil {
			c.Next()
			return
		}

		if len(jwtSecret) > 0 {
			if claims, err := ValidateAdminJWT(presented, jwtSecret); err == nil {
				c.Set("admin_subject", claims.Subject)
				c.Next()
				return
			}
		}

		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid admin credentials"})
		c.Abort()
	}
}
