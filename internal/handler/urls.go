package handlers

import (
	"lonelycare/internal/alert"
	"lonelycare/internal/cooldown"
	"lonelycare/internal/escalation"
	"lonelycare/internal/interaction"
	"lonelycare/internal/monitor"
	"lonelycare/internal/notifier"
	"lonelycare/internal/store"
	"lonelycare/internal/threshold"
	"lonelycare/pkg/metrics"
	"lonelycare/pkg/middleware"
	"lonelycare/pkg/sse"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type Options struct {
	OwnerID    string
	Languages  []string
	Store      *store.Store
	Hub        *sse.Hub
	Gate       *interaction.Gate
	Takeovers  *notifier.Takeovers
	History    *notifier.History
	Monitor    *monitor.Monitor
	Cooldown   *cooldown.Cooldown
	Thresholds *threshold.Manager
	Escalator  *escalation.Escalator
	Classifier *alert.Manager
	Formatter  *alert.Formatter
	Metrics    *metrics.Metrics
	Gatherer   prometheus.Gatherer
	Limiter    *middleware.RateLimiter
	Logger     *zap.Logger
}

type Handlers struct {
	opts Options
}

func NewHandlers(opts Options) *Handlers {
	if len(opts.Languages) == 0 {
		opts.Languages = []string{"en", "ko"}
	}
	if opts.Classifier == nil {
		opts.Classifier = alert.NewManager(nil)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Handlers{opts: opts}
}

func (h *Handlers) Register(engine *gin.Engine) {
	engine.Use(metrics.Middleware(h.opts.Metrics))

	// Register System Module Routes
	h.registerSystemRoutes(engine)

	r := engine.Group("/api")
	r.Use(middleware.LanguageMiddleware(h.opts.Languages...))
	if h.opts.Limiter != nil {
		r.Use(h.opts.Limiter.Middleware())
	}

	// Register Business Module Routes
	h.registerEventRoutes(r)
	h.registerHeartbeatRoutes(r)
	h.registerMonitorRoutes(r)
}

func (h *Handlers) registerSystemRoutes(r *gin.Engine) {
	r.GET("/health", h.HealthCheck)
	if h.opts.Gatherer != nil {
		r.GET("/metrics", h.handleMetrics())
	}
}

// 推送通道：SSE、交互授权、接管确认
func (h *Handlers) registerEventRoutes(r *gin.RouterGroup) {
	r.GET("/events/:userId", h.handleEvents)

	users := r.Group("users")
	{
		users.POST("/:userId/interaction", h.handleGrantInteraction)

		users.DELETE("/:userId/interaction", h.handleRevokeInteraction)
	}

	takeovers := r.Group("takeovers")
	{
		takeovers.GET("", h.handleListTakeovers)

		takeovers.POST("/:id/ack", h.handleAckTakeover)
	}
}

func (h *Handlers) registerHeartbeatRoutes(r *gin.RouterGroup) {
	r.POST("/heartbeats", middleware.IdempotencyMiddleware(middleware.IdempotencyConfig{}), h.handleRecordHeartbeat)
}

func (h *Handlers) registerMonitorRoutes(r *gin.RouterGroup) {
	mon := r.Group("monitor")
	{
		mon.POST("/run", h.handleRunPass)

		mon.GET("/summary", h.handleLastSummary)
	}

	r.POST("/cooldown/reset", h.handleResetCooldown)
	r.GET("/cooldown", h.handleListCooldown)

	r.GET("/thresholds", h.handleGetThresholds)
	r.POST("/thresholds/invalidate", h.handleInvalidateThresholds)

	r.GET("/emergency/audit", h.handleEmergencyAudit)
	r.GET("/alerts", h.handleListAlerts)
	r.GET("/notifications/history", h.handleNotificationHistory)
	r.GET("/friends/status", h.handleFriendStatus)
}
