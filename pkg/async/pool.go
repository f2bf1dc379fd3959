package async

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"ChatRelay/config"
	"ChatRelay/pkg/ctxmeta"
	"ChatRelay/pkg/logger"

	"github.com/panjf2000/ants/v2"
)

var (
	global   *ants.Pool
	globalMu sync.Mutex
	cfgCopy  config.AsyncConfig
)

// ContextPropagator 从父 ctx 提取需要透传给异步任务的字段，默认只复制 ctxmeta 元数据。
var ContextPropagator = ctxmeta.Detach

// ErrNotInitialized 表示协程池尚未初始化。
var ErrNotInitialized = errors.New("async pool not initialized")

// Pool 返回全局协程池（未初始化时为 nil）。
func Pool() *ants.Pool { return global }

// Build 根据配置创建协程池实例。
func Build(cfg config.AsyncConfig) (*ants.Pool, error) {
	opts := []ants.Option{
		ants.WithMaxBlockingTasks(cfg.MaxBlockingTasks),
		ants.WithExpiryDuration(cfg.ExpiryDuration),
		ants.WithNonblocking(cfg.Nonblocking),
		ants.WithPanicHandler(func(p any) {
			logger.Error(context.Background(), "异步任务 panic",
				logger.Any("panic", p),
				logger.String("stack", string(debug.Stack())),
			)
		}),
	}
	return ants.NewPool(cfg.PoolSize, opts...)
}

// Init 初始化全局协程池，重复调用无副作用。
func Init(cfg config.AsyncConfig) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if global != nil {
		return nil
	}
	p, err := Build(cfg)
	if err != nil {
		return err
	}
	global = p
	cfgCopy = cfg
	return nil
}

// Submit 将任务投递到全局协程池。
func Submit(task func()) error {
	globalMu.Lock()
	p := global
	globalMu.Unlock()
	if p == nil {
		return ErrNotInitialized
	}
	return p.Submit(task)
}

// Release 等待在途任务结束并释放协程池。
func Release() error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if global == nil {
		return nil
	}
	var err error
	if cfgCopy.ReleaseTimeout > 0 {
		err = global.ReleaseTimeout(cfgCopy.ReleaseTimeout)
	} else {
		global.Release()
	}
	global = nil
	return err
}

// RunSafe 以独立超时异步执行 task，panic 与投递失败只记日志。
// task 拿到的 ctx 与调用方生命周期解耦，只继承 trace/user 等元数据。
func RunSafe(ctx context.Context, task func(ctx context.Context), timeout time.Duration) {
	if task == nil {
		return
	}
	if timeout <= 0 {
		timeout = cfgCopy.TaskTimeout
	}
	if timeout <= 0 {
		timeout = time.Minute
	}

	baseCtx := context.Background()
	if ContextPropagator != nil && ctx != nil {
		baseCtx = ContextPropagator(ctx)
	}
	runCtx, cancel := context.WithTimeout(baseCtx, timeout)

	wrap := func() {
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				logger.Error(runCtx, "异步任务 panic",
					logger.Any("panic", r),
					logger.String("stack", string(debug.Stack())),
				)
			}
		}()

		task(runCtx)

		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			logger.Warn(runCtx, "异步任务超时",
				logger.Duration("timeout", timeout),
			)
		}
	}

	if err := Submit(wrap); err != nil {
		cancel()
		logger.Error(baseCtx, "异步任务投递失败",
			logger.ErrorField("error", err),
			logger.Duration("timeout", timeout),
		)
	}
}
