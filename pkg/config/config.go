package config

import (
	"log"
	"os"
	"time"

	"lonelycare/pkg/cache"
	"lonelycare/pkg/logger"
	"lonelycare/pkg/util"
)

// Config 进程配置，全部来自环境变量（.env.<APP_ENV> / .env 兜底）
type Config struct {
	OwnerID  string `env:"OWNER_ID"`
	Addr     string `env:"ADDR"`
	Mode     string `env:"MODE"`
	DBDriver string `env:"DB_DRIVER"`
	DSN      string `env:"DSN"`
	Language string `env:"LANGUAGE"`
	Log      logger.LogConfig
	Cache    cache.Config

	// 推送文案按这些语言渲染；I18N_FILES 中的语言文件覆盖内置文案
	Languages []string `env:"LANGUAGES"`
	I18nFiles []string `env:"I18N_FILES"`

	ThresholdWarningMinutes   int `env:"THRESHOLD_WARNING_MINUTES"`
	ThresholdDangerMinutes    int `env:"THRESHOLD_DANGER_MINUTES"`
	ThresholdEmergencyMinutes int `env:"THRESHOLD_EMERGENCY_MINUTES"`

	CooldownDuration           time.Duration `env:"COOLDOWN_DURATION"`
	CooldownDiagnostic         bool          `env:"COOLDOWN_DIAGNOSTIC"`
	CooldownDiagnosticDuration time.Duration `env:"COOLDOWN_DIAGNOSTIC_DURATION"`
	CooldownSuppressFlap       bool          `env:"COOLDOWN_SUPPRESS_FLAP"`

	EvalSchedule string `env:"EVAL_SCHEDULE"`

	PushEndpoint string        `env:"PUSH_ENDPOINT"`
	PushAPIKey   string        `env:"PUSH_API_KEY"`
	PushTimeout  time.Duration `env:"PUSH_TIMEOUT"`

	EmergencyEndpoint string        `env:"EMERGENCY_ENDPOINT"`
	EmergencyAPIKey   string        `env:"EMERGENCY_API_KEY"`
	EscalationGuard   time.Duration `env:"ESCALATION_GUARD"`
	TakeoverTimeout   time.Duration `env:"TAKEOVER_TIMEOUT"`

	// ulule/limiter 格式，如 "60-M"
	APIRate string `env:"API_RATE"`

	// sqlite 定时备份，BACKUP_SCHEDULE 为空时关闭
	BackupSchedule string `env:"BACKUP_SCHEDULE"`
	BackupPath     string `env:"BACKUP_PATH"`
	BackupKeep     int    `env:"BACKUP_KEEP"`
}

var GlobalConfig *Config

func Load() error {
	// 1. 根据环境加载 .env 文件
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development" // 默认使用开发环境
	}
	if err := util.LoadEnv(env); err != nil {
		log.Printf("Failed to load .env file: %v", err)
	}

	// 2. 加载全局配置
	GlobalConfig = FromEnv()
	return nil
}

// FromEnv 只读取环境变量，不加载 .env 文件
func FromEnv() *Config {
	return &Config{
		OwnerID:  util.GetEnv("OWNER_ID"),
		Addr:     util.GetEnvDefault("ADDR", ":8080"),
		Mode:     util.GetEnvDefault("MODE", "release"),
		DBDriver: util.GetEnvDefault("DB_DRIVER", "sqlite"),
		DSN:      util.GetEnvDefault("DSN", "lonelycare.db"),
		Language: util.GetEnvDefault("LANGUAGE", "en"),
		Log: logger.LogConfig{
			Level:      util.GetEnvDefault("LOG_LEVEL", "info"),
			Format:     util.GetEnvDefault("LOG_FORMAT", "json"),
			Filename:   util.GetEnv("LOG_FILENAME"),
			MaxSize:    int(util.GetIntEnvDefault("LOG_MAX_SIZE", 100)),
			MaxAge:     int(util.GetIntEnvDefault("LOG_MAX_AGE", 7)),
			MaxBackups: int(util.GetIntEnvDefault("LOG_MAX_BACKUPS", 5)),
		},
		Cache: cache.Config{
			Type:    util.GetEnvDefault("CACHE_TYPE", "gocache"),
			Layered: util.GetBoolEnv("CACHE_LAYERED"),
			Redis: cache.RedisConfig{
				Addr:         util.GetEnvDefault("REDIS_ADDR", "localhost:6379"),
				Password:     util.GetEnv("REDIS_PASSWORD"),
				DB:           int(util.GetIntEnv("REDIS_DB")),
				KeyPrefix:    util.GetEnvDefault("REDIS_KEY_PREFIX", "lonelycare:"),
				PoolSize:     int(util.GetIntEnvDefault("REDIS_POOL_SIZE", 10)),
				MinIdleConns: int(util.GetIntEnvDefault("REDIS_MIN_IDLE_CONNS", 2)),
				DialTimeout:  util.GetDurationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second),
				ReadTimeout:  util.GetDurationEnv("REDIS_READ_TIMEOUT", 3*time.Second),
				WriteTimeout: util.GetDurationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second),
			},
			Local: cache.LocalConfig{
				MaxSize:           int(util.GetIntEnvDefault("CACHE_MAX_SIZE", 10000)),
				DefaultExpiration: util.GetDurationEnv("CACHE_DEFAULT_EXPIRATION", 0),
				CleanupInterval:   util.GetDurationEnv("CACHE_CLEANUP_INTERVAL", 10*time.Minute),
				SnapshotPath:      util.GetEnvDefault("CACHE_SNAPSHOT_PATH", "data/cache.snapshot"),
			},
		},

		Languages: util.GetListEnv("LANGUAGES", "en", "ko"),
		I18nFiles: util.GetListEnv("I18N_FILES"),

		ThresholdWarningMinutes:   int(util.GetIntEnvDefault("THRESHOLD_WARNING_MINUTES", 1440)),
		ThresholdDangerMinutes:    int(util.GetIntEnvDefault("THRESHOLD_DANGER_MINUTES", 2880)),
		ThresholdEmergencyMinutes: int(util.GetIntEnvDefault("THRESHOLD_EMERGENCY_MINUTES", 4320)),

		CooldownDuration:           util.GetDurationEnv("COOLDOWN_DURATION", 2*time.Hour),
		CooldownDiagnostic:         util.GetBoolEnvDefault("COOLDOWN_DIAGNOSTIC", false),
		CooldownDiagnosticDuration: util.GetDurationEnv("COOLDOWN_DIAGNOSTIC_DURATION", time.Minute),
		CooldownSuppressFlap:       util.GetBoolEnvDefault("COOLDOWN_SUPPRESS_FLAP", true),

		EvalSchedule: util.GetEnvDefault("EVAL_SCHEDULE", "@every 5m"),

		PushEndpoint: util.GetEnv("PUSH_ENDPOINT"),
		PushAPIKey:   util.GetEnv("PUSH_API_KEY"),
		PushTimeout:  util.GetDurationEnv("PUSH_TIMEOUT", 10*time.Second),

		EmergencyEndpoint: util.GetEnv("EMERGENCY_ENDPOINT"),
		EmergencyAPIKey:   util.GetEnv("EMERGENCY_API_KEY"),
		EscalationGuard:   util.GetDurationEnv("ESCALATION_GUARD", 24*time.Hour),
		TakeoverTimeout:   util.GetDurationEnv("TAKEOVER_TIMEOUT", 5*time.Minute),

		APIRate: util.GetEnvDefault("API_RATE", "120-M"),

		BackupSchedule: util.GetEnv("BACKUP_SCHEDULE"),
		BackupPath:     util.GetEnvDefault("BACKUP_PATH", "data/backups"),
		BackupKeep:     int(util.GetIntEnvDefault("BACKUP_KEEP", 7)),
	}
}

// ActiveCooldown 当前生效的冷却时长；诊断模式必须显式开启
func (c *Config) ActiveCooldown() time.Duration {
	if c.CooldownDiagnostic {
		return c.CooldownDiagnosticDuration
	}
	return c.CooldownDuration
}
