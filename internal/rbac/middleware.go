package rbac

import (
	"net/http"

	"dialout-picker/internal/auth"

	"github.com/gin-gonic/gin"
)

// RequireConference enforces conference isolation: the token must be scoped
// to the conference this instance dials from.
func RequireConference(alias string) gin.HandlerFunc {
	return func(c *gin.Context) {
		conf, err := auth.Conference(c.Request.Context())
		if err != nil || conf == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "conference required"})
			return
		}
		if conf != alias {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "token is for another conference"})
			return
		}
		c.Next()
	}
}

// RequireAnyRole allows access if the caller has any of the provided roles.
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role, err := auth.Role(c.Request.Context())
		if err != nil || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}
		if _, ok := allowedSet[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
