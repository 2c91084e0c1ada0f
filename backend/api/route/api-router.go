package route

import (
	"filebox/backend/api/handler"
	"filebox/backend/api/middleware"
	"filebox/backend/library/metrics"

	"github.com/gin-gonic/gin"
)

func SetApiRouter(route *gin.Engine) {
	apiRouter := route.Group("/")
	apiRouter.Use(middleware.GlobalAPIRateLimit())
	{
		// Public routes (no authentication required)
		apiRouter.POST("/register", middleware.CriticalRateLimit(), middleware.GzipDecodeMiddleware(), handler.Register)
		apiRouter.GET("/user/:id", handler.GetUser)
		apiRouter.POST("/token", middleware.CriticalRateLimit(), handler.CreateToken)
		apiRouter.GET("/ping", handler.Ping)
		apiRouter.GET("/metrics", gin.WrapH(metrics.Handler()))

		authRoute := apiRouter.Group("/")
		authRoute.Use(middleware.JWTAuth())
		{
			authRoute.DELETE("/user/:id/delete", handler.DeleteUser)
			authRoute.POST("/logout", handler.Logout)
			authRoute.GET("/users/me/", handler.GetSelf)

			// File routes
			authRoute.GET("/search", middleware.GzipEncodeMiddleware(), handler.SearchFiles)
			authRoute.GET("/files/list", middleware.GzipEncodeMiddleware(), handler.ListFiles)
			authRoute.GET("/download", handler.Download)
			authRoute.POST("/upload", handler.Upload)
		}
	}
}
