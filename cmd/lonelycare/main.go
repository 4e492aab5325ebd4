package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"lonelycare/internal/alert"
	"lonelycare/internal/cooldown"
	"lonelycare/internal/escalation"
	"lonelycare/internal/friend"
	handlers "lonelycare/internal/handler"
	"lonelycare/internal/interaction"
	"lonelycare/internal/models"
	"lonelycare/internal/monitor"
	"lonelycare/internal/notifier"
	"lonelycare/internal/store"
	"lonelycare/internal/threshold"
	"lonelycare/pkg/backup"
	"lonelycare/pkg/cache"
	"lonelycare/pkg/config"
	"lonelycare/pkg/i18n"
	"lonelycare/pkg/logger"
	"lonelycare/pkg/metrics"
	"lonelycare/pkg/middleware"
	"lonelycare/pkg/notification"
	"lonelycare/pkg/scheduler"
	"lonelycare/pkg/sse"
	"lonelycare/pkg/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

const serviceName = "lonelycare"

func main() {
	// 1. 加载配置
	if err := config.Load(); err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	cfg := config.GlobalConfig

	// 2. 初始化日志
	log, err := logger.Init(cfg.Log, serviceName)
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer logger.Sync()

	if cfg.OwnerID == "" {
		log.Fatal("OWNER_ID environment variable is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. 存储与缓存
	db, err := util.OpenDatabase(cfg.DBDriver, cfg.DSN, cfg.Log.Level == "debug")
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	if err := models.AutoMigrate(db); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}
	st := store.New(db)

	kv, err := cache.NewCache(cfg.Cache)
	if err != nil {
		log.Fatal("Failed to create cache", zap.Error(err))
	}
	defer kv.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	tr, err := i18n.NewI18nSupport(cfg.Language)
	if err != nil {
		log.Fatal("Failed to init i18n", zap.Error(err))
	}
	languages := supportedLanguages(cfg.Language, cfg.Languages)

	// 4. 通知渠道
	hub := sse.NewHub(30 * time.Second)
	gate := interaction.NewGate(0, nil)
	takeovers := notifier.NewTakeovers(cfg.TakeoverTimeout, nil, log)
	takeovers.OnExpire = func(tk notifier.Takeover) {
		_, _ = hub.SendToGroupJSON(tk.OwnerID, "takeover_expired", tk)
	}
	defer takeovers.Stop()

	history := notifier.NewHistory(notifier.DefaultHistory, kv, log)
	if err := history.Load(ctx); err != nil {
		log.Warn("Failed to restore notification history", zap.Error(err))
	}

	var pusher notifier.Pusher
	if cfg.PushEndpoint != "" {
		pusher = notification.NewPushClient(notification.PushConfig{
			Endpoint:   cfg.PushEndpoint,
			APIKey:     cfg.PushAPIKey,
			Timeout:    cfg.PushTimeout,
			RetryCount: 1,
		}, log)
	}

	n, err := notifier.New([]notifier.Channel{
		notifier.NewPushChannel(pusher),
		notifier.NewBannerChannel(hub),
		notifier.NewAuditChannel(history),
		notifier.NewAlarmChannel(hub, gate),
		notifier.NewTakeoverChannel(hub, takeovers),
	}, notifier.Options{
		Lang:       cfg.Language,
		Languages:  languages,
		Translator: tr,
		Fallback:   saveUndelivered(st, log),
		Metrics:    m,
		Logger:     log,
	})
	if err != nil {
		log.Fatal("Failed to create notifier", zap.Error(err))
	}
	// 内置文案注册之后再加载，语言文件可以覆盖
	if err := tr.LoadFiles(cfg.I18nFiles...); err != nil {
		log.Fatal("Failed to load i18n files", zap.Error(err))
	}

	// 5. 阈值、冷却、升级
	defaults := alert.Thresholds{
		Warning:   cfg.ThresholdWarningMinutes,
		Danger:    cfg.ThresholdDangerMinutes,
		Emergency: cfg.ThresholdEmergencyMinutes,
	}
	if err := defaults.Validate(); err != nil {
		log.Warn("Configured thresholds rejected, using built-in defaults", zap.Error(err))
		defaults = alert.DefaultThresholds()
	}
	thresholds := threshold.NewManager(st, kv, defaults, log, m)

	cd := cooldown.New(cooldown.Config{
		Duration:           cfg.CooldownDuration,
		Diagnostic:         cfg.CooldownDiagnostic,
		DiagnosticDuration: cfg.CooldownDiagnosticDuration,
		SuppressFlap:       cfg.CooldownSuppressFlap,
	}, kv, nil, log)
	if err := cd.Load(ctx); err != nil {
		log.Warn("Failed to restore cooldown records", zap.Error(err))
	}

	var reporter escalation.Reporter
	if cfg.EmergencyEndpoint != "" {
		reporter = notification.NewEmergencyClient(notification.EmergencyConfig{
			Endpoint: cfg.EmergencyEndpoint,
			APIKey:   cfg.EmergencyAPIKey,
		}, log)
	}
	esc := escalation.New(escalation.Config{
		ReporterID: cfg.OwnerID,
		Guard:      cfg.EscalationGuard,
	}, reporter, st, n, escalation.Options{Cache: kv, Logger: log, Metrics: m})
	if err := esc.Load(ctx); err != nil {
		log.Warn("Failed to restore escalation state", zap.Error(err))
	}

	// 6. 评估调度
	classifier := alert.NewManager(nil)
	mon := monitor.New(monitor.Config{OwnerID: cfg.OwnerID, Schedule: cfg.EvalSchedule}, monitor.Deps{
		Resolver:   friend.NewResolver(st, log),
		Thresholds: thresholds,
		Classifier: classifier,
		Cooldown:   cd,
		Notifier:   n,
		Escalator:  &auditedEscalator{Escalator: esc, store: st, ownerID: cfg.OwnerID, logger: log},
		Recorder:   st,
		Logger:     log,
		Metrics:    m,
	})
	if err := mon.Start(); err != nil {
		log.Fatal("Failed to start monitor", zap.Error(err))
	}
	defer mon.Stop()

	if cfg.BackupSchedule != "" {
		backups := scheduler.NewCron(nil, log)
		if err := backup.Schedule(backups, db, backup.Config{
			Driver:   cfg.DBDriver,
			Dir:      cfg.BackupPath,
			Schedule: cfg.BackupSchedule,
			Keep:     cfg.BackupKeep,
		}, log); err != nil {
			log.Fatal("Failed to schedule backups", zap.Error(err))
		}
		backups.Start()
		defer backups.Stop()
	}

	// 7. HTTP
	gin.SetMode(cfg.Mode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	handlers.NewHandlers(handlers.Options{
		OwnerID:    cfg.OwnerID,
		Languages:  languages,
		Store:      st,
		Hub:        hub,
		Gate:       gate,
		Takeovers:  takeovers,
		History:    history,
		Monitor:    mon,
		Cooldown:   cd,
		Thresholds: thresholds,
		Escalator:  esc,
		Classifier: classifier,
		Formatter:  alert.NewFormatter(tr),
		Metrics:    m,
		Gatherer:   reg,
		Limiter: middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:       cfg.APIRate,
			SkipPaths:  []string{"/api/events/"},
			AddHeaders: true,
		}, nil).WithObserver(m),
		Logger: log,
	}).Register(engine)

	srv := &http.Server{Addr: cfg.Addr, Handler: engine}
	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// 8. 等待信号（优雅关闭）
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("HTTP server error", zap.Error(err))
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown incomplete", zap.Error(err))
	}
	log.Info("Lonelycare service stopped")
}

// supportedLanguages 默认语言排第一，去重
func supportedLanguages(def string, extra []string) []string {
	out := []string{def}
	for _, l := range extra {
		if l != "" && !slices.Contains(out, l) {
			out = append(out, l)
		}
	}
	return out
}
