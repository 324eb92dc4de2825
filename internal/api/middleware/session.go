package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	SessionCookie = "cart_session"
	sessionKey    = "cart_session_id"
	sessionMaxAge = 30 * 24 * 60 * 60
)

// Session makes sure every request carries a cart session id, issuing a new
// cookie when the client has none or sent a malformed one.
func Session(secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(SessionCookie)
		if err != nil || uuid.Validate(id) != nil {
			id = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(SessionCookie, id, sessionMaxAge, "/", "", secure, true)
		}
		c.Set(sessionKey, id)
		c.Next()
	}
}

// SessionID returns the id set by Session.
func SessionID(c *gin.Context) string {
	return c.GetString(sessionKey)
}
