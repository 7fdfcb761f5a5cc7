package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"chez-meme/utils"
)

// Recovery turns a panic into a 500 and reports it with the request context.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				err, ok := r.(error)
				if !ok {
					err = fmt.Errorf("%v", r)
				}
				utils.Log.Critical(err, map[string]interface{}{
					"method": c.Request.Method,
					"path":   c.Request.URL.Path,
					"ip":     c.ClientIP(),
				})
				utils.JSONError(c, http.StatusInternalServerError, "error.internal", "Une erreur interne est survenue.")
				c.Abort()
			}
		}()
		c.Next()
	}
}
