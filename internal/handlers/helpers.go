package handlers

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// respondError пишет ошибку в едином формате {success:false, message, error[, ...extra]}.
func respondError(c *gin.Context, status int, code, message string, extra gin.H) {
	body := gin.H{"success": false, "message": message, "error": code}
	for k, v := range extra {
		body[k] = v
	}
	c.AbortWithStatusJSON(status, body)
}

// humanizeTTL: 10m -> "10 minutes"
func humanizeTTL(d time.Duration) string {
	if d > 0 && d%time.Minute == 0 {
		m := int(d / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	return d.String()
}

func queryInt(c *gin.Context, key string, def, min, max int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
