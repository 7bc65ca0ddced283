package controllers

import (
	"context"
	"net/http"

	apperrors "cart-monitor-service/common/errors"
	"cart-monitor-service/models"
	"cart-monitor-service/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CartMonitor is the part of the monitor service the HTTP layer needs.
type CartMonitor interface {
	MonitorCarts(ctx context.Context) (*models.MonitorResult, error)
	LastPass() (services.PassStats, bool)
}

type MonitorController struct {
	monitor CartMonitor
	logger  *zap.Logger
}

func NewMonitorController(monitor CartMonitor, logger *zap.Logger) *MonitorController {
	return &MonitorController{monitor: monitor, logger: logger}
}

// MonitorCarts runs one pass and returns {"abandoned_carts": [...]}.
func (mc *MonitorController) MonitorCarts(c *gin.Context) {
	result, err := mc.monitor.MonitorCarts(c.Request.Context())
	if err != nil {
		mc.logger.Error("Monitor carts failed", zap.Error(err))
		_ = c.Error(err)
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Status returns the summary of the most recent pass.
func (mc *MonitorController) Status(c *gin.Context) {
	stats, ok := mc.monitor.LastPass()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no monitoring pass has run yet"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
