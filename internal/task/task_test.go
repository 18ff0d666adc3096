package task

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arloliu/go-gcode/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_StartStop(t *testing.T) {
	mgr := NewManager(context.Background(), logger.GetLogger())

	var iterations atomic.Int32
	err := mgr.Start("loop", func() bool {
		iterations.Add(1)
		time.Sleep(time.Millisecond)

		return true
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return iterations.Load() > 3 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, mgr.TaskCount())

	mgr.Stop()
	mgr.Wait()

	assert.Equal(t, 0, mgr.TaskCount())
}

func TestManager_TaskReturnsFalse(t *testing.T) {
	mgr := NewManager(context.Background(), logger.GetLogger())

	var iterations atomic.Int32
	require.NoError(t, mgr.Start("once", func() bool {
		iterations.Add(1)
		return false
	}))

	assert.True(t, mgr.WaitTimeout(time.Second))
	assert.Equal(t, int32(1), iterations.Load())
}

func TestManager_ReuseAfterWait(t *testing.T) {
	mgr := NewManager(context.Background(), logger.GetLogger())

	require.NoError(t, mgr.Start("first", func() bool { return true }))
	mgr.Stop()
	mgr.Wait()

	// Wait re-arms the manager for the next connection
	ran := make(chan struct{})
	require.NoError(t, mgr.Start("second", func() bool {
		close(ran)
		return false
	}))

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("second task did not run")
	}
	mgr.Wait()
}

func TestManager_PanicRecovered(t *testing.T) {
	mgr := NewManager(context.Background(), logger.GetLogger())

	require.NoError(t, mgr.Start("panicky", func() bool {
		panic("boom")
	}))

	assert.True(t, mgr.WaitTimeout(time.Second))
	assert.Equal(t, 0, mgr.TaskCount())
}

func TestManager_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mgr := NewManager(ctx, logger.GetLogger())
	cancel()

	err := mgr.Start("late", func() bool { return true })
	require.ErrorIs(t, err, ErrStopped)
}

func TestManager_WaitTimeout(t *testing.T) {
	mgr := NewManager(context.Background(), logger.GetLogger())

	release := make(chan struct{})
	require.NoError(t, mgr.Start("blocked", func() bool {
		<-release
		return false
	}))

	assert.False(t, mgr.WaitTimeout(20*time.Millisecond))
	close(release)
	assert.True(t, mgr.WaitTimeout(time.Second))
}

func TestManager_StartWhileWaitPending(t *testing.T) {
	mgr := NewManager(context.Background(), logger.GetLogger())

	release := make(chan struct{})
	require.NoError(t, mgr.Start("stuck", func() bool {
		<-release
		return false
	}))
	require.False(t, mgr.WaitTimeout(20*time.Millisecond))

	// the expired wait still holds the manager, Start must not block behind it
	start := time.Now()
	err := mgr.Start("next", func() bool { return false })
	require.ErrorIs(t, err, ErrBusy)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	close(release)
	require.Eventually(t, func() bool {
		return mgr.Start("next", func() bool { return false }) == nil
	}, time.Second, time.Millisecond)
	assert.True(t, mgr.WaitTimeout(time.Second))
}
