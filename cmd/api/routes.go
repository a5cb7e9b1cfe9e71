package main

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"propertyhub/internal/auth"
	"propertyhub/internal/handlers"
	"propertyhub/internal/ratelimit"
)

type routerDeps struct {
	corsOrigins []string
	authn       *auth.Authenticator
	limiter     *ratelimit.RateLimiter
	properties  *handlers.PropertyHandler
	bookings    *handlers.BookingHandler
	users       *handlers.UserHandler
	media       *handlers.MediaHandler
	admin       *handlers.AdminHandler
}

func newRouter(d routerDeps) *gin.Engine {
	// Setup Gin router
	r := gin.Default()

	// CORS configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     d.corsOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", healthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/media/:id", d.media.Get)

	limited := d.limiter.Middleware()
	required := d.authn.Required()

	api := r.Group("/api", d.authn.Optional())
	{
		api.GET("/home", d.properties.Home)
		api.GET("/properties", d.properties.List)
		api.GET("/properties/:id", d.properties.Get)
		api.GET("/search", d.properties.Search)
		api.POST("/properties", required, d.properties.Create)
		api.PUT("/properties/:id", required, d.properties.Update)

		// Guests may book with an email address
		api.POST("/bookings", limited, d.bookings.Create)

		api.POST("/auth/register", limited, d.users.Register)
		api.POST("/auth/login", limited, d.users.Login)
		api.POST("/auth/logout", d.users.Logout)
	}

	me := r.Group("/api/me", required)
	{
		me.GET("", d.users.Profile)
		me.PUT("", d.users.UpdateProfile)
		me.GET("/properties", d.properties.Mine)
		me.GET("/bookings", d.bookings.Mine)
		me.GET("/favorites", d.users.Favorites)
		me.POST("/favorites/:id", d.users.AddFavorite)
		me.DELETE("/favorites/:id", d.users.RemoveFavorite)
	}

	admin := r.Group("/api/admin", required, auth.AdminOnly())
	{
		// Statistics
		admin.GET("/stats", d.admin.GetStats)
		admin.GET("/ratelimit/stats", rateLimitStats(d.limiter))

		// Review queue
		admin.GET("/properties/pending", d.admin.PendingProperties)
		admin.POST("/properties/:id/approve", d.admin.ApproveProperty)
		admin.PUT("/properties/:id/pin", d.admin.PinProperty)
		admin.DELETE("/properties/:id", d.admin.RemoveProperty)

		admin.GET("/bookings/pending", d.bookings.Pending)
		admin.POST("/bookings/:id/approve", d.bookings.Approve)

		admin.POST("/users/:id/admin", d.admin.MakeAdmin)

		// Cleanup operations
		admin.GET("/cleanup/logs", d.admin.GetDeleteLogs)

		// Property history
		admin.GET("/properties/:id/history", d.admin.GetPropertyHistory)
		admin.GET("/changes/recent", d.admin.GetRecentChanges)

		// Maintenance jobs
		admin.POST("/search/reindex", d.admin.TriggerReindex)
		admin.POST("/social/renew", d.admin.TriggerTokenRenewal)
	}

	return r
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now(),
	})
}

// rateLimitStats reports the limiter window for ?key=, defaulting to the caller
func rateLimitStats(rl *ratelimit.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, rl.GetStats(c.DefaultQuery("key", c.ClientIP())))
	}
}
