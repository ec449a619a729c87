package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/basit/mediashare-backend/access"
	"github.com/basit/mediashare-backend/auth"
)

const requesterKey = "requester"

// AuthOptional resolves a requester from a valid bearer token. Requests
// without one, or with an invalid one, continue anonymously.
func AuthOptional(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c.GetHeader("Authorization")); ok {
			if userID, err := auth.ValidateToken(secret, token); err == nil {
				c.Set(requesterKey, access.NewRequester(userID))
			}
		}
		c.Next()
	}
}

// AuthRequired rejects requests without a valid bearer token.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Authorization header is required",
			})
			return
		}
		userID, err := auth.ValidateToken(secret, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Invalid or expired token",
			})
			return
		}
		c.Set(requesterKey, access.NewRequester(userID))
		c.Next()
	}
}

// Requester returns the authenticated requester, or nil for anonymous calls.
func Requester(c *gin.Context) *access.Requester {
	v, ok := c.Get(requesterKey)
	if !ok {
		return nil
	}
	r, _ := v.(*access.Requester)
	return r
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
