package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func CORS() gin.HandlerFunc {
	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "Accept-Language"}
	config.ExposeHeaders = []string{"Content-Disposition", "X-Request-Id"}
	config.MaxAge = 12 * time.Hour
	return cors.New(config)
}
