package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"chez-meme/controllers"
	"chez-meme/services"
	"chez-meme/utils"
)

// LoadSession exposes a valid admin session to the handlers. It never
// rejects a request.
func LoadSession(sessions *services.SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(services.SessionCookieName)
		if err == nil && token != "" {
			if claims, pErr := sessions.Parse(token); pErr == nil {
				c.Set(controllers.ContextAdminKey, claims)
			}
		}
		c.Next()
	}
}

// RequireAdmin sends browsers to the login page and answers 401 to API calls.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := c.Get(controllers.ContextAdminKey)
		claims, _ := v.(*services.SessionClaims)
		if ok && claims != nil && claims.IsAdmin {
			c.Next()
			return
		}

		if strings.Contains(c.Request.URL.Path, "/api/") || strings.Contains(c.GetHeader("Accept"), "application/json") {
			utils.JSONError(c, http.StatusUnauthorized, "error.unauthorized", "Connexion admin requise.")
			c.Abort()
			return
		}
		c.Redirect(http.StatusSeeOther, "/login?next="+url.QueryEscape(c.Request.URL.RequestURI()))
		c.Abort()
	}
}
