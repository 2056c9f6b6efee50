package routes

import (
	"time"

	"chronolink/config"
	"chronolink/handlers"
	"chronolink/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func SetupRouter(cfg *config.Config, h *handlers.Handler, auth *middleware.Auth, limiter *middleware.IPRateLimiter) *gin.Engine {
	if cfg.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.Use(limiter.Middleware())

	// Health checks for deployment probes.
	router.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ChronoLink API running", "service": "healthy"})
	})
	router.GET("/health", func(c *gin.Context) {
		c.String(200, "OK")
	})

	api := router.Group("/api")

	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", h.Register)
		authRoutes.POST("/login", h.Login)
		authRoutes.GET("/profile", auth.RequireAuth(), h.GetProfile)
		authRoutes.PUT("/profile", auth.RequireAuth(), h.UpdateProfile)
	}

	posts := api.Group("/posts")
	{
		posts.GET("", h.ListPosts)
		posts.GET("/featured", h.GetFeaturedPosts)
		posts.GET("/generation-connection", h.GetGenerationConnection)
		posts.GET("/recommendations", h.GetRecommendations)
		posts.GET("/feed", auth.RequireAuth(), h.GetFeed)
		posts.GET("/:id", h.GetPost)

		posts.POST("", auth.RequireAuth(), h.CreatePost)
		posts.PUT("/:id", auth.RequireAuth(), h.UpdatePost)
		posts.DELETE("/:id", auth.RequireAuth(), h.DeletePost)
		posts.POST("/:id/like", auth.RequireAuth(), h.ToggleLike)
		posts.POST("/:id/comment", auth.RequireAuth(), h.AddComment)

		// Feature flips go through the same update handler; the admin
		// guard is what makes isFeatured writable.
		posts.PUT("/:id/feature", auth.RequireAuth(), middleware.RequireAdmin(), h.UpdatePost)
	}

	users := api.Group("/users")
	{
		users.GET("", h.ListUsers)
		users.GET("/search", h.SearchUsers)
		users.GET("/:id", h.GetUser)
		users.GET("/:id/followers", h.GetFollowers)
		users.GET("/:id/following", h.GetFollowing)

		users.POST("/:id/follow", auth.RequireAuth(), h.FollowUser)
		users.DELETE("/:id/follow", auth.RequireAuth(), h.UnfollowUser)
		users.PUT("/profile", auth.RequireAuth(), h.UpdateProfile)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{"message": "Endpoint not found", "path": c.Request.URL.Path})
	})

	return router
}
