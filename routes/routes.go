package routes

import (
	"context"
	"net/http"
	"time"

	"cart-monitor-service/controllers"

	"github.com/gin-gonic/gin"
)

// HealthChecker reports whether a dependency is reachable.
type HealthChecker func(ctx context.Context) error

func RegisterRoutes(router *gin.Engine, controller *controllers.MonitorController, metrics http.Handler, cacheHealth HealthChecker) {
	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if cacheHealth != nil {
			if err := cacheHealth(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DEGRADED", "service": "cart-monitor-service", "cache": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "OK", "service": "cart-monitor-service"})
	})

	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	monitor := router.Group("/monitor")
	{
		monitor.GET("/carts", controller.MonitorCarts)
		monitor.GET("/status", controller.Status)
	}
}
