package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ServiceTokenHeader carries the shared credential of the front-end service. Routes that
// hand out tokens or reveal account state for an arbitrary identity sit behind it.
const ServiceTokenHeader = "X-Service-Token"

// Service admits requests whose ServiceTokenHeader equals token. An empty token admits
// nothing.
func Service(token string) gin.HandlerFunc {
	want := []byte(token)
	return func(c *gin.Context) {
		got := []byte(c.GetHeader(ServiceTokenHeader))
		if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}
		c.Next()
	}
}
