package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"chez-meme/utils"
)

// Logger writes one access line per request. Static assets are skipped.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		if len(path) >= 8 && path[:8] == "/static/" {
			return
		}
		latency := time.Since(start)
		status := c.Writer.Status()
		line := "%s %s %s %d %s"
		args := []interface{}{c.Request.Method, path, c.ClientIP(), status, latency.String()}
		switch {
		case status >= 500:
			utils.Log.Error(line, args...)
		case status >= 400 && status != 401 && status != 404:
			utils.Log.Warn(line, args...)
		default:
			utils.Log.Info(line, args...)
		}
	}
}
