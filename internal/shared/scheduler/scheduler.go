package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// JobFunc 定时任务，返回的错误只记录日志
type JobFunc func(ctx context.Context) error

// Scheduler 后台定时任务，与请求处理互不同步
type Scheduler struct {
	cron    *cron.Cron
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

// New 创建调度器，timeout 为单次任务的执行上限
func New(logger *zap.Logger, timeout time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	cl := cronLogger{logger.Sugar()}
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		timeout: timeout,
	}
}

// Register 注册任务，spec 支持标准 cron 表达式与 @every 语法
func (s *Scheduler) Register(name, spec string, fn JobFunc) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.RunNow(name, fn)
	})
	if err != nil {
		return fmt.Errorf("register job %s: %w", name, err)
	}
	s.logger.Info("Scheduled job registered", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// RunNow 立即执行一次，失败只记日志
func (s *Scheduler) RunNow(name string, fn JobFunc) {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := fn(ctx); err != nil {
		s.logger.Error("Scheduled job failed",
			zap.String("job", name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("Scheduled job finished", zap.String("job", name), zap.Duration("elapsed", time.Since(start)))
}

// Start 启动调度
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop 停止调度并等待执行中的任务结束，ctx 到期后取消任务
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out, cancelling running jobs")
	}
	s.cancel()
}

// cronLogger 适配 cron.Logger
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
