package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTriggerSkipsWhileRefreshRunning(t *testing.T) {
	release := make(chan struct{})
	var started, finished atomic.Int32

	p := New(time.Hour, time.Hour, func(ctx context.Context) {
		started.Add(1)
		<-release
		finished.Add(1)
	})

	ctx := context.Background()
	p.trigger(ctx)

	// Wait for the first refresh to actually start.
	deadline := time.After(2 * time.Second)
	for started.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("First refresh never started")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// These land while the first refresh is still running: skipped, not queued.
	p.trigger(ctx)
	p.trigger(ctx)

	close(release)
	for finished.Load() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	// Give any erroneously queued run a chance to start.
	time.Sleep(50 * time.Millisecond)

	if got := started.Load(); got != 1 {
		t.Errorf("Expected exactly 1 refresh, got %d", got)
	}
}

func TestStopDoesNotCancelInFlightRefresh(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	ctxErr := make(chan error, 1)

	var once sync.Once
	p := New(10*time.Millisecond, 5*time.Millisecond, func(ctx context.Context) {
		once.Do(func() {
			close(started)
			<-release
			ctxErr <- ctx.Err()
		})
	})

	p.Start(context.Background())

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("Refresh never started")
	}

	// Stopping while the refresh is mid-flight must not abort it.
	p.Stop()
	close(release)

	select {
	case err := <-ctxErr:
		if err != nil {
			t.Errorf("Stop canceled an in-flight refresh: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Refresh never finished")
	}
}

func TestPollerFiresAtInterval(t *testing.T) {
	var runs atomic.Int32
	p := New(20*time.Millisecond, 5*time.Millisecond, func(ctx context.Context) {
		runs.Add(1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)

	time.Sleep(110 * time.Millisecond)
	cancel()
	p.Stop()

	if got := runs.Load(); got < 2 {
		t.Errorf("Expected at least 2 refreshes in 110ms at 20ms cadence, got %d", got)
	}
}

func TestSensitiveModeShortensInterval(t *testing.T) {
	var runs atomic.Int32
	p := New(time.Hour, 10*time.Millisecond, func(ctx context.Context) {
		runs.Add(1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	// At the normal interval nothing would fire for an hour.
	p.BeginSensitive()
	time.Sleep(100 * time.Millisecond)
	fast := runs.Load()
	if fast < 2 {
		t.Errorf("Expected fast cadence during sensitive flow, got %d runs", fast)
	}

	p.EndSensitive()
	time.Sleep(50 * time.Millisecond)
	p.Stop()

	// After reverting to the hour-long interval the counter settles.
	settled := runs.Load()
	time.Sleep(50 * time.Millisecond)
	if runs.Load() > settled+1 {
		t.Errorf("Expected cadence to revert after EndSensitive, got %d -> %d", settled, runs.Load())
	}
}

func TestStartIsIdempotentAndStopClearsTimer(t *testing.T) {
	var runs atomic.Int32
	p := New(10*time.Millisecond, 5*time.Millisecond, func(ctx context.Context) {
		runs.Add(1)
	})

	ctx := context.Background()
	p.Start(ctx)
	p.Start(ctx) // no-op on a running poller

	time.Sleep(50 * time.Millisecond)
	p.Stop()
	stopped := runs.Load()

	time.Sleep(50 * time.Millisecond)
	if runs.Load() > stopped+1 {
		t.Errorf("Expected no refreshes after Stop, got %d -> %d", stopped, runs.Load())
	}

	// Reset restarts the timer.
	p.Reset(ctx)
	time.Sleep(50 * time.Millisecond)
	p.Stop()
	if runs.Load() <= stopped {
		t.Error("Expected refreshes to resume after Reset")
	}
}
