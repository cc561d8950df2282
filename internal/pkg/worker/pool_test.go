package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"waveline.io/courier/internal/pkg/logger"
)

func init() {
	_ = logger.Init("error", "console")
}

func newTestPools(t *testing.T) *Pools {
	t.Helper()
	pools, err := NewPools(context.Background(), PoolConfig{
		GeneralPoolSize:  4,
		DeliveryPoolSize: 4,
	})
	if err != nil {
		t.Fatalf("NewPools() error = %v", err)
	}
	t.Cleanup(pools.Shutdown)
	return pools
}

func TestPoolSubmit(t *testing.T) {
	pools := newTestPools(t)

	var ran atomic.Bool
	done := make(chan struct{})
	err := pools.General.Submit(context.Background(), func(ctx context.Context) {
		ran.Store(true)
		close(done)
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run within timeout")
	}
	if !ran.Load() {
		t.Error("task did not run")
	}
}

func TestPoolSubmit_CancelledContext(t *testing.T) {
	pools := newTestPools(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pools.General.Submit(ctx, func(ctx context.Context) {
		t.Error("task ran despite cancelled context")
	})
	if err == nil {
		t.Fatal("Submit() with cancelled context should return error")
	}
}

func TestPoolSubmit_PanicRecovery(t *testing.T) {
	pools := newTestPools(t)

	panicked := make(chan struct{})
	err := pools.General.Submit(context.Background(), func(ctx context.Context) {
		defer close(panicked)
		panic("boom")
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	select {
	case <-panicked:
	case <-time.After(2 * time.Second):
		t.Fatal("panicking task did not run")
	}

	// Pool must survive the panic and accept further work
	done := make(chan struct{})
	err = pools.General.Submit(context.Background(), func(ctx context.Context) {
		close(done)
	})
	if err != nil {
		t.Fatalf("Submit() after panic error = %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool unusable after panic")
	}
}

func TestSubmitDetached(t *testing.T) {
	pools := newTestPools(t)

	done := make(chan struct{})
	err := pools.SubmitDetached("delivery", func(ctx context.Context) {
		close(done)
	})
	if err != nil {
		t.Fatalf("SubmitDetached() error = %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("detached task did not run")
	}
}

func TestShutdown_CancelsDetachedTasks(t *testing.T) {
	pools, err := NewPools(context.Background(), PoolConfig{
		GeneralPoolSize:  2,
		DeliveryPoolSize: 2,
	})
	if err != nil {
		t.Fatalf("NewPools() error = %v", err)
	}

	started := make(chan struct{})
	var sawCancel atomic.Bool
	err = pools.SubmitDetached("general", func(ctx context.Context) {
		close(started)
		select {
		case <-ctx.Done():
			sawCancel.Store(true)
		case <-time.After(5 * time.Second):
		}
	})
	if err != nil {
		t.Fatalf("SubmitDetached() error = %v", err)
	}

	<-started
	pools.Shutdown()

	if !sawCancel.Load() {
		t.Error("detached task context was not cancelled on shutdown")
	}
}
