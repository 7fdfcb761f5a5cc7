package utils

import "github.com/gin-gonic/gin"

func JSONSuccess(c *gin.Context, code int, data interface{}) {
	c.JSON(code, gin.H{"success": true, "data": data})
}

// JSONMessage replies with a human readable message the front-end shows as a
// notification, plus optional data.
func JSONMessage(c *gin.Context, code int, message string, data ...interface{}) {
	body := gin.H{"success": true, "message": message}
	if len(data) > 0 && data[0] != nil {
		body["data"] = data[0]
	}
	c.JSON(code, body)
}

func JSONError(c *gin.Context, code int, errCode, message string) {
	c.JSON(code, gin.H{
		"success": false,
		"message": message,
		"error": gin.H{
			"code":    errCode,
			"message": message,
		},
	})
}
