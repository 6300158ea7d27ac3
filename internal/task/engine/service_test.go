package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	logx "pawbot/pkg/logx"
)

func startEngine(t *testing.T, cfg Config) *Service {
	t.Helper()
	s := New(cfg, logx.Nop())
	s.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.Stop(ctx)
	})
	return s
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestTaskTimeoutBoundsRun(t *testing.T) {
	t.Parallel()
	s := startEngine(t, Config{Workers: 1, QueueSize: 4})

	var sawDeadline atomic.Bool
	err := s.Enqueue(Task{
		Name:    "slow",
		Timeout: 20 * time.Millisecond,
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			sawDeadline.Store(errors.Is(ctx.Err(), context.DeadlineExceeded))
			return ctx.Err()
		},
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitFor(t, "failed task", func() bool { return s.Snapshot().Failed == 1 })
	if !sawDeadline.Load() {
		t.Fatalf("task ctx did not hit its deadline")
	}
	if h := s.Snapshot().History; len(h) != 1 || h[0].Attempts != 1 || h[0].ID == "" {
		t.Fatalf("history = %+v", h)
	}
}

func TestRetryHonoursNoRetry(t *testing.T) {
	t.Parallel()
	s := startEngine(t, Config{Workers: 1, QueueSize: 4, RetryMax: 3, RetryBase: time.Millisecond, RetryMaxDelay: 2 * time.Millisecond})

	var flaky, permanent atomic.Int32
	_ = s.Enqueue(Task{Name: "flaky", Run: func(ctx context.Context) error {
		if flaky.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}})
	_ = s.Enqueue(Task{Name: "permanent", Run: func(ctx context.Context) error {
		permanent.Add(1)
		return NoRetry(errors.New("blocked"))
	}})

	waitFor(t, "both tasks", func() bool {
		snap := s.Snapshot()
		return snap.Completed+snap.Failed == 2
	})
	if got := flaky.Load(); got != 3 {
		t.Fatalf("flaky attempts = %d, want 3", got)
	}
	if got := permanent.Load(); got != 1 {
		t.Fatalf("permanent attempts = %d, want 1", got)
	}
}

func TestNoRetryByDefault(t *testing.T) {
	t.Parallel()
	s := startEngine(t, Config{Workers: 1, QueueSize: 4})
	var runs atomic.Int32
	_ = s.Enqueue(Task{Name: "once", Run: func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("send failed")
	}})
	waitFor(t, "failure", func() bool { return s.Snapshot().Failed == 1 })
	if got := runs.Load(); got != 1 {
		t.Fatalf("runs = %d, want 1", got)
	}
}

func TestOverlapSkipAndAlive(t *testing.T) {
	t.Parallel()
	s := startEngine(t, Config{Workers: 1, QueueSize: 4})

	release := make(chan struct{})
	st := &RunState{}
	blocker := Task{Name: "job", State: st, Opt: TaskOptions{Overlap: OverlapSkipIfRunning}, Run: func(ctx context.Context) error {
		<-release
		return nil
	}}
	if err := s.Enqueue(blocker); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := s.Enqueue(blocker); !errors.Is(err, ErrOverlapSkip) {
		t.Fatalf("second Enqueue err = %v, want ErrOverlapSkip", err)
	}

	var ran atomic.Bool
	if err := s.Enqueue(Task{Name: "dead", Alive: func() bool { return false }, Run: func(ctx context.Context) error {
		ran.Store(true)
		return nil
	}}); err != nil {
		t.Fatalf("Enqueue dead: %v", err)
	}
	close(release)

	waitFor(t, "dead task dropped", func() bool { return s.Snapshot().DroppedDead == 1 })
	if ran.Load() {
		t.Fatalf("task with Alive()=false ran")
	}
	waitFor(t, "run state released", func() bool { return !st.Busy() })
}

func TestQueueFullAndStopped(t *testing.T) {
	t.Parallel()
	s := New(Config{Workers: 1, QueueSize: 1}, logx.Nop())
	if err := s.Enqueue(Task{Name: "x", Run: func(context.Context) error { return nil }}); !errors.Is(err, ErrStopped) {
		t.Fatalf("Enqueue before Start err = %v, want ErrStopped", err)
	}
	s.Start(context.Background())
	defer s.Stop(context.Background())

	hold := make(chan struct{})
	defer close(hold)
	started := make(chan struct{})
	_ = s.Enqueue(Task{Name: "hold", Run: func(context.Context) error {
		close(started)
		<-hold
		return nil
	}})
	<-started
	_ = s.Enqueue(Task{Name: "fill", Run: func(context.Context) error { return nil }})
	if err := s.Enqueue(Task{Name: "over", Run: func(context.Context) error { return nil }}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Enqueue err = %v, want ErrQueueFull", err)
	}
}

func TestStopLetsRunningTaskFinish(t *testing.T) {
	t.Parallel()
	s := New(Config{Workers: 1, QueueSize: 2}, logx.Nop())
	s.Start(context.Background())

	started := make(chan struct{})
	var finished atomic.Bool
	_ = s.Enqueue(Task{Name: "deliver", Timeout: time.Second, Run: func(ctx context.Context) error {
		close(started)
		select {
		case <-time.After(30 * time.Millisecond):
			finished.Store(true)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Stop(ctx)
	if !finished.Load() {
		t.Fatalf("running task was interrupted by Stop")
	}
}
