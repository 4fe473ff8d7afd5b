package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"waitline/internal/queue"
	"waitline/internal/response"

	"github.com/gin-gonic/gin"
)

const (
	capabilityKey = "capability"
	claimsKey     = "claims"

	KioskKeyHeader = "X-Kiosk-Key"
)

// StaffMiddleware checks the bearer access token and stores the staff
// member's capability in the request context.
func StaffMiddleware(issuer *Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorResponse{
				Code:    response.CodeNoAuthHeader,
				Message: "Authorization required",
			})
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := issuer.ParseAccess(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorResponse{
				Code:    response.CodeInvalidToken,
				Message: "Invalid or expired token",
			})
			return
		}

		c.Set(claimsKey, claims)
		c.Set(capabilityKey, CapabilityFor(claims.StaffID, claims.Role))
		c.Next()
	}
}

// CapabilityFrom returns the capability set by StaffMiddleware. Requests that
// did not pass through it get an empty capability, which grants nothing.
func CapabilityFrom(c *gin.Context) queue.Capability {
	if v, ok := c.Get(capabilityKey); ok {
		if capability, ok := v.(queue.Capability); ok {
			return capability
		}
	}
	return queue.Capability{}
}

func ClaimsFrom(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}

// KioskMiddleware admits requests carrying one of the configured kiosk keys.
func KioskMiddleware(keys []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(KioskKeyHeader)
		if key == "" || !validKioskKey(keys, key) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorResponse{
				Code:    response.CodeInvalidKioskKey,
				Message: "Unknown kiosk",
			})
			return
		}
		c.Next()
	}
}

func validKioskKey(keys []string, key string) bool {
	for _, k := range keys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			return true
		}
	}
	return false
}
