package scheduler

import (
	"context"
	"sync"
	"time"
)

type Job interface{ Run(ctx context.Context) }

type FuncJob func(ctx context.Context)

func (f FuncJob) Run(ctx context.Context) { f(ctx) }

// Scheduler 一次性延迟任务；Stop 会等待正在执行的任务结束
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{ctx: ctx, cancel: cancel}
}

// Stop 取消后续触发，并等待进行中的任务完成
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

// OnceAfter 在 d 之后执行一次 job；Stop 之后提交的任务直接丢弃
func (s *Scheduler) OnceAfter(d time.Duration, job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.wg.Add(1)
	go s.onceAfter(d, job)
}

func (s *Scheduler) onceAfter(d time.Duration, job Job) {
	defer s.wg.Done()
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-s.ctx.Done():
		return
	case <-timer.C:
		// 任务拿到的是独立的 context：Stop 不打断正在进行的任务
		job.Run(context.WithoutCancel(s.ctx))
	}
}
