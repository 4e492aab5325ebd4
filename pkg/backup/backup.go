package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"lonelycare/pkg/errors"
	"lonelycare/pkg/scheduler"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const filePrefix = "lonelycare_backup_"

type Config struct {
	Driver   string
	Dir      string
	Schedule string // cron 表达式，空表示不备份
	Keep     int    // 保留份数，<=0 不清理
}

// Schedule 把备份任务挂到 cron 上
func Schedule(c *scheduler.Cron, db *gorm.DB, cfg Config, logger *zap.Logger) error {
	if cfg.Schedule == "" {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	_, err := c.AddWithCtx(cfg.Schedule, func(ctx context.Context) {
		dst, err := Execute(ctx, db, cfg, time.Now())
		if err != nil {
			logger.Warn("Backup failed", zap.Error(err))
			return
		}
		logger.Info("Backup completed successfully", zap.String("file", dst))
	})
	if err != nil {
		return errors.WrapCode(err, errors.CodeInvalidConfig, "invalid backup schedule")
	}
	return nil
}

// Execute 根据驱动执行一次备份，返回备份文件路径
func Execute(ctx context.Context, db *gorm.DB, cfg Config, now time.Time) (string, error) {
	switch cfg.Driver {
	case "", "sqlite":
		dst := filepath.Join(cfg.Dir, fmt.Sprintf("%s%s.db", filePrefix, now.Format("20060102_150405")))
		if err := BackupSQLiteDatabase(ctx, db, dst); err != nil {
			return "", err
		}
		if err := prune(cfg.Dir, cfg.Keep); err != nil {
			return dst, err
		}
		return dst, nil
	default:
		// mysql/postgres 由数据库侧负责备份
		return "", errors.WithCodef(errors.CodeInvalidConfig, "backup unsupported for DB_DRIVER %s", cfg.Driver)
	}
}

// BackupSQLiteDatabase 用 VACUUM INTO 生成一致性快照，运行中的库也可以安全备份
func BackupSQLiteDatabase(ctx context.Context, db *gorm.DB, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), os.ModePerm); err != nil {
		return errors.Wrapf(err, "failed to create backup directory")
	}
	if err := db.WithContext(ctx).Exec("VACUUM INTO ?", dst).Error; err != nil {
		return errors.WrapCode(err, errors.CodeStoreUnavailable, "sqlite backup")
	}
	return nil
}

func prune(dir string, keep int) error {
	if keep <= 0 {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.Wrapf(err, "list backup directory")
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), filePrefix) {
			names = append(names, e.Name())
		}
	}
	if len(names) <= keep {
		return nil
	}
	// 文件名带时间戳，字典序即时间序
	sort.Strings(names)
	for _, name := range names[:len(names)-keep] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return errors.Wrapf(err, "remove old backup %s", name)
		}
	}
	return nil
}
