package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Cron cron 调度封装：任务 panic 会被恢复，上一次未结束时跳过本次触发
type Cron struct {
	c   *cron.Cron
	loc *time.Location
}

func NewCron(loc *time.Location, logger *zap.Logger) *Cron {
	if loc == nil {
		loc = time.Local
	}
	cl := zapCronLogger{l: logger}
	if logger == nil {
		cl.l = zap.NewNop()
	}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return &Cron{c: c, loc: loc}
}

func (cr *Cron) Start() { cr.c.Start() }

// Stop 停止调度并等待运行中的任务结束
func (cr *Cron) Stop() { ctx := cr.c.Stop(); <-ctx.Done() }

// Add 支持标准 cron 表达式以及 "@every 5m" 这类描述符
func (cr *Cron) Add(expr string, job Job) (cron.EntryID, error) {
	return cr.c.AddFunc(expr, func() { job.Run(context.Background()) })
}

func (cr *Cron) AddWithCtx(expr string, fn func(ctx context.Context)) (cron.EntryID, error) {
	return cr.Add(expr, FuncJob(fn))
}

func (cr *Cron) Entries() []cron.Entry { return cr.c.Entries() }

// zapCronLogger 把 cron 的日志接到 zap
type zapCronLogger struct{ l *zap.Logger }

func (z zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	z.l.Debug("cron: "+msg, zap.Any("kv", keysAndValues))
}

func (z zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	z.l.Error("cron: "+msg, zap.Error(err), zap.Any("kv", keysAndValues))
}
