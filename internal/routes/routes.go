package routes

import (
	"ttlcache-api/internal/handlers"
	"ttlcache-api/internal/metrics"
	"ttlcache-api/internal/middleware"
	"ttlcache-api/internal/realtime"
	"ttlcache-api/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps are the services the routes are wired to.
type Deps struct {
	Store   *store.Store
	Hub     *realtime.Hub
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

func SetupRoutes(deps Deps) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	ginRouter := gin.New()
	ginRouter.Use(middleware.RequestLogger(log), gin.Recovery())

	// CORS middleware (for frontend integration)
	ginRouter.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, HEAD, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	ginRouter.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "TTL cache API is running",
		})
	})

	if deps.Metrics != nil {
		ginRouter.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	// Public routes (no authentication required)
	api := ginRouter.Group("/api")
	{
		api.POST("/login", handlers.Login)
	}

	caches := handlers.NewCacheHandler(deps.Store)
	ws := &handlers.WSHandler{Hub: deps.Hub, Log: log}

	// Protected routes (authentication required)
	protectedRoutes := api.Group("")
	protectedRoutes.Use(middleware.JWTAuthMiddleware())
	{
		protectedRoutes.GET("/caches", caches.ListCaches)
		protectedRoutes.DELETE("/caches/:name", caches.ClearCache)
		protectedRoutes.GET("/caches/:name/entries", caches.ListEntries)
		protectedRoutes.PUT("/caches/:name/entries/:key", caches.SetEntry)
		protectedRoutes.GET("/caches/:name/entries/:key", caches.GetEntry)
		protectedRoutes.HEAD("/caches/:name/entries/:key", caches.HasEntry)
		protectedRoutes.DELETE("/caches/:name/entries/:key", caches.DeleteEntry)

		protectedRoutes.GET("/disposals", handlers.GetDisposals)
		protectedRoutes.GET("/users", handlers.GetAllUsers)
		protectedRoutes.GET("/ws", ws.Stream)
	}

	return ginRouter
}
