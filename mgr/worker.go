package mgr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"time"
)

// WorkerCtx provides workers with flow control and scoped logging.
type WorkerCtx struct {
	name   string
	logger *slog.Logger

	ctx       context.Context
	cancelCtx context.CancelFunc
}

// Ctx returns the worker context. It is canceled when the worker returns.
func (w *WorkerCtx) Ctx() context.Context {
	return w.ctx
}

// Cancel cancels the worker context.
// Is automatically called after the worker returns.
func (w *WorkerCtx) Cancel() {
	w.cancelCtx()
}

// Done returns the context Done channel.
func (w *WorkerCtx) Done() <-chan struct{} {
	return w.ctx.Done()
}

// IsDone checks whether the worker context is done.
func (w *WorkerCtx) IsDone() bool {
	return w.ctx.Err() != nil
}

// Logger returns the logger used by the worker context.
func (w *WorkerCtx) Logger() *slog.Logger {
	return w.logger
}

// Debug logs at LevelDebug with the worker context.
func (w *WorkerCtx) Debug(msg string, args ...any) {
	w.logger.DebugContext(w.ctx, msg, args...)
}

// Info logs at LevelInfo with the worker context.
func (w *WorkerCtx) Info(msg string, args ...any) {
	w.logger.InfoContext(w.ctx, msg, args...)
}

// Warn logs at LevelWarn with the worker context.
func (w *WorkerCtx) Warn(msg string, args ...any) {
	w.logger.WarnContext(w.ctx, msg, args...)
}

// Error logs at LevelError with the worker context.
func (w *WorkerCtx) Error(msg string, args ...any) {
	w.logger.ErrorContext(w.ctx, msg, args...)
}

// Go starts the given function in a goroutine (as a "worker"). The worker
// has a separate context that is canceled when the function returns, a
// scoped logger and panic catching. Failures are logged, not restarted: all
// workers here are either per-request and single-shot, or own their retry
// loop anyway.
func (m *Manager) Go(name string, fn func(w *WorkerCtx) error) {
	w := m.newWorkerCtx(name)
	m.workerStart()

	go func() {
		defer m.workerDone()
		m.runWorker(w, fn)
	}()
}

// Do directly executes the given function (as a "worker") and returns its
// error. The worker environment matches that of Go.
func (m *Manager) Do(name string, fn func(w *WorkerCtx) error) error {
	w := m.newWorkerCtx(name)
	m.workerStart()
	defer m.workerDone()

	return m.runWorker(w, fn)
}

// Repeat executes the given function periodically in a goroutine (as a
// "worker") until the manager context is canceled.
func (m *Manager) Repeat(name string, period time.Duration, fn func(w *WorkerCtx) error) {
	m.Go(name, func(w *WorkerCtx) error {
		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-w.Done():
				return nil
			case <-ticker.C:
				if err := m.runWorker(m.newWorkerCtx(name), fn); err != nil {
					w.Warn("repeated worker failed", "err", err)
				}
			}
		}
	})
}

func (m *Manager) newWorkerCtx(name string) *WorkerCtx {
	w := &WorkerCtx{
		name:   name,
		logger: m.logger.With("worker", name),
	}
	w.ctx, w.cancelCtx = context.WithCancel(m.ctx)
	return w
}

func (m *Manager) runWorker(w *WorkerCtx, fn func(w *WorkerCtx) error) (err error) {
	defer w.Cancel()

	defer func() {
		panicVal := recover()
		if panicVal != nil {
			err = fmt.Errorf("panic: %v", panicVal)
			fmt.Fprintf(
				os.Stderr,
				"===== PANIC =====\n%v\n\n%s=====  END  =====\n",
				panicVal,
				debug.Stack(),
			)
			w.Error("worker failed", "err", err)
		}
	}()

	err = fn(w)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// A canceled context means the worker finished during shutdown.
		err = nil
	default:
		w.Error("worker failed", "err", err)
	}
	return err
}
