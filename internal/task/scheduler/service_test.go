package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pawbot/internal/task/engine"
	logx "pawbot/pkg/logx"
)

type captureExec struct {
	mu    sync.Mutex
	tasks []engine.Task
}

func (c *captureExec) Enqueue(t engine.Task) error {
	c.mu.Lock()
	c.tasks = append(c.tasks, t)
	c.mu.Unlock()
	return nil
}

func (c *captureExec) last(t *testing.T) engine.Task {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.tasks) == 0 {
		t.Fatalf("no task enqueued")
	}
	return c.tasks[len(c.tasks)-1]
}

func noop(context.Context) error { return nil }

func TestAddDailyIsIdempotent(t *testing.T) {
	t.Parallel()
	s := New(Config{Timezone: "UTC"}, &captureExec{}, logx.Nop())
	s.Start(context.Background())
	defer s.Stop(context.Background())

	added, err := s.AddDaily("reminder:7:08:30:Feed_the_dog", 8, 30, time.Second, noop)
	if err != nil || !added {
		t.Fatalf("first AddDaily = %v, %v; want true, nil", added, err)
	}
	added, err = s.AddDaily("reminder:7:08:30:Feed_the_dog", 8, 30, time.Second, noop)
	if err != nil || added {
		t.Fatalf("second AddDaily = %v, %v; want false, nil", added, err)
	}
	if got := s.Len(); got != 1 {
		t.Fatalf("Len = %d, want 1", got)
	}
	if snap := s.Snapshot(); len(snap.Jobs) != 1 || snap.Jobs[0].At != "08:30" || !snap.Running {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestAddDailyRejectsInvalidTime(t *testing.T) {
	t.Parallel()
	s := New(Config{}, &captureExec{}, logx.Nop())
	tests := []struct{ h, m int }{{24, 0}, {25, 0}, {-1, 0}, {12, 60}, {12, -1}}
	for _, tt := range tests {
		if _, err := s.AddDaily("x", tt.h, tt.m, 0, noop); !errors.Is(err, ErrInvalidTime) {
			t.Fatalf("AddDaily(%d, %d) err = %v, want ErrInvalidTime", tt.h, tt.m, err)
		}
	}
	for _, v := range []string{"25:00", "7", "12:5", "aa:bb"} {
		if _, err := s.AddDailyAt("x", v, 0, noop); !errors.Is(err, ErrInvalidTime) {
			t.Fatalf("AddDailyAt(%q) err = %v, want ErrInvalidTime", v, err)
		}
	}
	if s.Has("x") {
		t.Fatalf("invalid job was registered")
	}
}

func TestRemove(t *testing.T) {
	t.Parallel()
	s := New(Config{}, &captureExec{}, logx.Nop())
	if s.Remove("missing") {
		t.Fatalf("Remove of absent id returned true")
	}
	if _, err := s.AddDailyAt("a", "07:00", 0, noop); err != nil {
		t.Fatalf("AddDailyAt: %v", err)
	}
	if !s.Remove("a") {
		t.Fatalf("Remove returned false for registered id")
	}
	if s.Has("a") || s.Remove("a") {
		t.Fatalf("job still present after Remove")
	}
}

func TestNextUsesLocation(t *testing.T) {
	t.Parallel()
	s := New(Config{Timezone: "UTC"}, &captureExec{}, logx.Nop())
	if _, err := s.AddDaily("a", 6, 15, 0, noop); err != nil {
		t.Fatalf("AddDaily: %v", err)
	}
	next, ok := s.Next("a")
	if !ok {
		t.Fatalf("Next not found")
	}
	next = next.UTC()
	if next.Hour() != 6 || next.Minute() != 15 || next.Second() != 0 {
		t.Fatalf("Next = %v, want 06:15:00 UTC", next)
	}
	if d := time.Until(next); d <= 0 || d > 24*time.Hour {
		t.Fatalf("Next is %v away, want within a day", d)
	}
}

func TestJobsAddedBeforeStartAreArmed(t *testing.T) {
	t.Parallel()
	s := New(Config{Timezone: "UTC"}, &captureExec{}, logx.Nop())
	if _, err := s.AddDaily("early", 1, 2, 0, noop); err != nil {
		t.Fatalf("AddDaily: %v", err)
	}
	s.Start(context.Background())
	defer s.Stop(context.Background())

	s.mu.Lock()
	eid := s.jobs["early"].entryID
	s.mu.Unlock()
	if eid == 0 {
		t.Fatalf("job registered before Start was not armed")
	}
}

func TestTriggerHandsFiringToExecutor(t *testing.T) {
	t.Parallel()
	exec := &captureExec{}
	s := New(Config{}, exec, logx.Nop())
	if s.Trigger("nope") {
		t.Fatalf("Trigger of absent id returned true")
	}
	if _, err := s.AddDaily("a", 9, 0, 15*time.Second, noop); err != nil {
		t.Fatalf("AddDaily: %v", err)
	}
	if !s.Trigger("a") {
		t.Fatalf("Trigger returned false")
	}
	task := exec.last(t)
	if task.Name != "a" || task.Timeout != 15*time.Second || task.Opt.Overlap != engine.OverlapSkipIfRunning {
		t.Fatalf("task = %+v", task)
	}
	if !task.Alive() {
		t.Fatalf("task should be alive while job is registered")
	}
	s.Remove("a")
	if task.Alive() {
		t.Fatalf("task still alive after Remove")
	}
	// Re-adding the identity must not revive the old firing.
	_, _ = s.AddDaily("a", 9, 0, 0, noop)
	if task.Alive() {
		t.Fatalf("stale firing revived by re-add")
	}
}

func TestFiringRunsOnEngine(t *testing.T) {
	t.Parallel()
	eng := engine.New(engine.Config{Workers: 1, QueueSize: 4}, logx.Nop())
	eng.Start(context.Background())
	defer eng.Stop(context.Background())

	s := New(Config{}, eng, logx.Nop())
	done := make(chan struct{})
	if _, err := s.AddDaily("a", 9, 0, time.Second, func(ctx context.Context) error {
		close(done)
		return nil
	}); err != nil {
		t.Fatalf("AddDaily: %v", err)
	}
	s.Trigger("a")
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("firing did not run")
	}
	if snap := s.Snapshot(); snap.Engine == nil || snap.Engine.Workers != 1 {
		t.Fatalf("snapshot engine = %+v", snap.Engine)
	}
}
