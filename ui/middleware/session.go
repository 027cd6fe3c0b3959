package middleware

import (
	"log"
	"net/http"
	"time"

	"statwizard/domain/core"

	"github.com/gin-gonic/gin"
)

// SessionKey is the gin context key holding the browser session id.
const SessionKey = "session_id"

// CookieName is the cookie carrying the browser session id.
const CookieName = "statwizard_session"

// EnsureSession is middleware that makes sure every request carries a browser
// session id, issuing a new cookie when the request has none or a bad one.
func EnsureSession(maxAge time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, err := c.Cookie(CookieName); err == nil {
			if id, perr := core.ParseSessionID(raw); perr == nil {
				c.Set(SessionKey, string(id))
				c.Next()
				return
			}
			log.Printf("[EnsureSession] Discarding malformed session cookie")
		}

		id := core.NewSessionID()
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(CookieName, string(id), int(maxAge.Seconds()), "/", "", false, true)
		c.Set(SessionKey, string(id))
		c.Next()
	}
}

// SessionID returns the id set by EnsureSession.
func SessionID(c *gin.Context) core.SessionID {
	return core.SessionID(c.GetString(SessionKey))
}
