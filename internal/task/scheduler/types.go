package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"pawbot/internal/task/engine"
	logx "pawbot/pkg/logx"
)

var ErrInvalidTime = errors.New("invalid time of day")

// Config controls the trigger service.
type Config struct {
	Timezone string // IANA TZ, empty means local time
}

// Executor runs triggered firings. *engine.Service satisfies it.
type Executor interface {
	Enqueue(t engine.Task) error
}

type dailyDef struct {
	id      string
	hour    int
	minute  int
	spec    string
	timeout time.Duration
	job     func(ctx context.Context) error
	entryID cron.EntryID
	state   *engine.RunState
}

type Service struct {
	mu sync.Mutex

	log  logx.Logger
	cfg  Config
	loc  *time.Location
	exec Executor

	parser cron.Parser
	c      *cron.Cron
	jobs   map[string]*dailyDef

	enqMu       sync.Mutex
	lastEnqWarn map[string]time.Time
}

type JobInfo struct {
	ID      string
	Spec    string
	At      string
	Timeout time.Duration
	Next    time.Time
	Prev    time.Time
	Busy    bool
}

type Snapshot struct {
	Running  bool
	Timezone string
	Jobs     []JobInfo

	// Executor diagnostics, when the executor exposes them.
	Engine *engine.Snapshot
}
