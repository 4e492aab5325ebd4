package handlers

import (
	"net/http"
	"time"

	"lonelycare/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HealthCheck 健康检查接口
func (h *Handlers) HealthCheck(c *gin.Context) {
	if h.opts.Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "store not configured"})
		return
	}
	// 检查数据库连接
	if err := h.opts.Store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "database ping failed"})
		return
	}

	status := gin.H{"status": "healthy"}
	if h.opts.Monitor != nil {
		status["passRunning"] = h.opts.Monitor.Running()
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handlers) handleMetrics() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(h.opts.Gatherer, promhttp.HandlerOpts{}))
}

// 设备上报心跳
func (h *Handlers) handleRecordHeartbeat(c *gin.Context) {
	var req struct {
		UserID    string     `json:"userId" binding:"required"`
		Source    string     `json:"source"`
		Timestamp *time.Time `json:"timestamp"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "invalid request", gin.H{"error": err.Error()})
		return
	}
	if req.Source == "" {
		req.Source = "app"
	}
	at := h.opts.Classifier.Now()
	if req.Timestamp != nil {
		at = *req.Timestamp
	}

	hb, err := h.opts.Store.RecordHeartbeat(c.Request.Context(), req.UserID, req.Source, at)
	if err != nil {
		h.opts.Logger.Warn("Record heartbeat failed", zap.String("user_id", req.UserID), zap.Error(err))
		response.Error(c, err)
		return
	}
	response.Created(c, "heartbeat recorded", hb)
}
