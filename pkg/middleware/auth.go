package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/tixgate/tixgate/pkg/response"
)

const (
	// UserIDHeader carries the authenticated user identity set by the gateway
	UserIDHeader = "X-User-ID"
	// ContextKeyUserID is the gin context key for the user ID
	ContextKeyUserID = "user_id"
)

// UserContext extracts the user identity from the request and stores it in
// the gin context. Requests without an identity are rejected.
func UserContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(UserIDHeader)
		if userID == "" {
			c.AbortWithStatusJSON(401, response.NewError("MISSING_USER_ID", "X-User-ID header is required"))
			return
		}
		c.Set(ContextKeyUserID, userID)
		c.Next()
	}
}

// OptionalUserContext stores the user identity if present but does not
// reject anonymous requests.
func OptionalUserContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := c.GetHeader(UserIDHeader); userID != "" {
			c.Set(ContextKeyUserID, userID)
		}
		c.Next()
	}
}

// GetUserID extracts the user ID from gin context
func GetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get(ContextKeyUserID)
	if !exists {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
