// Package task runs and supervises the background goroutines of a sender
// connection.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-gcode/internal/pool"
	"github.com/arloliu/go-gcode/logger"
)

var (
	// ErrStopped is returned when a task is started on a stopped manager.
	ErrStopped = errors.New("task: manager already stopped")

	// ErrBusy is returned when a task is started while a Wait whose WaitTimeout
	// expired is still waiting for the previous tasks.
	ErrBusy = errors.New("task: previous tasks still running")
)

// startTimeout bounds how long Start waits for a goroutine to come up.
const startTimeout = 5 * time.Second

// Func is one iteration of a task loop. It returns true to keep running, or false
// to stop the goroutine.
type Func func() bool

// Manager manages the lifecycle of the goroutines that serve one connection.
//
// Stop cancels the manager's context so every loop exits before its next
// iteration; Wait blocks until all goroutines have returned and re-arms the
// manager so it can be reused for the next connection.
//
// Example Usage:
//
//	mgr := task.NewManager(ctx, logger)
//
//	_ = mgr.Start("ioLoop", func() bool {
//	    // ... one iteration ...
//	    return true
//	})
//
//	mgr.Stop()
//	mgr.Wait()
type Manager struct {
	pctx   context.Context
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
	count  atomic.Int32
	mu     sync.RWMutex // protect ctx and cancel
	taskMu sync.RWMutex // protect task creation during Wait()
}

// NewManager creates a new Manager with the given parent context and logger.
func NewManager(ctx context.Context, l logger.Logger) *Manager {
	mgr := &Manager{pctx: ctx, logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

// Context returns the context shared by the running tasks.
func (mgr *Manager) Context() context.Context {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	return mgr.ctx
}

// Start starts a new goroutine that calls taskFunc until it returns false or
// the manager is stopped. It returns once the goroutine is running.
//
// Start does not block behind a pending Wait; it returns ErrBusy until the tasks
// that outlived a WaitTimeout have terminated.
func (mgr *Manager) Start(name string, taskFunc Func) error {
	mgr.logger.Debug("start task", "name", name)

	ctx := mgr.Context()
	select {
	case <-ctx.Done():
		return ErrStopped
	default:
	}

	started := make(chan struct{})

	if !mgr.taskMu.TryRLock() {
		return ErrBusy
	}
	mgr.wg.Add(1)
	mgr.taskMu.RUnlock()

	go func() {
		defer mgr.wg.Done()

		mgr.count.Add(1)
		defer func() {
			mgr.count.Add(-1)
			mgr.logger.Debug(fmt.Sprintf("%s task terminated", name), "task_count", mgr.TaskCount())
		}()

		close(started)
		mgr.runTaskLoop(name, taskFunc)
	}()

	if !pool.Wait(started, startTimeout) {
		return fmt.Errorf("task: timeout waiting for %s to start", name)
	}

	return nil
}

// Stop signals all goroutines to exit.
func (mgr *Manager) Stop() {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	mgr.cancel()
}

// Wait waits for all goroutines to terminate.
func (mgr *Manager) Wait() {
	mgr.taskMu.Lock()
	defer mgr.taskMu.Unlock()

	// wait all tasks be terminated
	mgr.wg.Wait()

	// recreate context with lock
	mgr.mu.Lock()
	mgr.cancel()
	mgr.ctx, mgr.cancel = context.WithCancel(mgr.pctx)
	mgr.mu.Unlock()
}

// WaitTimeout is Wait bounded by d. It reports whether all goroutines terminated in time.
//
// When it reports false, the Wait keeps running in the background until the
// goroutines terminate, and Start fails with ErrBusy meanwhile.
func (mgr *Manager) WaitTimeout(d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		mgr.Wait()
		close(done)
	}()

	return pool.Wait(done, d)
}

// TaskCount returns the number of currently running goroutines.
func (mgr *Manager) TaskCount() int {
	return int(mgr.count.Load())
}

// runTaskLoop runs a task function in a loop with context cancellation
func (mgr *Manager) runTaskLoop(name string, taskFunc Func) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task loop", "name", name, "panic", r)
		}
	}()

	for {
		ctx := mgr.Context()
		select {
		case <-ctx.Done():
			return
		default:
			if !taskFunc() {
				return
			}
		}
	}
}
