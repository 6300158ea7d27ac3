// Package reconcile rebuilds the live job table from persisted reminders.
package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pawbot/internal/reminder"
	"pawbot/internal/storage"
	logx "pawbot/pkg/logx"
)

// Source yields the persisted records.
type Source interface {
	Snapshot() storage.Records
}

// Scheduler is the part of the job table the reconciler drives.
type Scheduler interface {
	AddDaily(id string, hour, minute int, timeout time.Duration, job func(ctx context.Context) error) (bool, error)
	Remove(id string) bool
	IDs() []string
}

// JobFunc builds the action run when a reminder fires.
type JobFunc func(recipient int64, message string) func(ctx context.Context) error

type Report struct {
	Users     int
	Reminders int // persisted reminder entries, valid or not
	Jobs      int // distinct identities
	Added     int
	Skipped   int // already scheduled
	Failed    int
	Invalid   int
	Removed   int // live reminder jobs with no persisted entry
	Duplicate int // identities backed by more than one entry
}

type Reconciler struct {
	src     Source
	sched   Scheduler
	job     JobFunc
	timeout time.Duration
	log     logx.Logger
}

func New(src Source, sched Scheduler, job JobFunc, timeout time.Duration, log logx.Logger) *Reconciler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Reconciler{
		src:     src,
		sched:   sched,
		job:     job,
		timeout: timeout,
		log:     log.With(logx.String("comp", "reconcile")),
	}
}

// Run installs one job per persisted reminder identity and removes reminder
// jobs that no persisted entry backs. A failing entry is logged and skipped.
func (r *Reconciler) Run(ctx context.Context) Report {
	start := time.Now()
	recs := r.src.Snapshot()
	reg := reminder.Build(recs, r.log)

	rep := Report{Users: len(recs), Invalid: len(reg.Invalid())}
	for _, rec := range recs {
		rep.Reminders += len(rec.Reminders)
	}

	want := map[string]struct{}{}
	for _, j := range reg.Jobs() {
		if ctx.Err() != nil {
			r.log.Warn("reconciliation interrupted", logx.Err(ctx.Err()))
			break
		}
		rep.Jobs++
		if j.Count > 1 {
			rep.Duplicate++
		}
		want[string(j.ID)] = struct{}{}

		added, err := r.install(j)
		switch {
		case err != nil:
			rep.Failed++
			r.log.Error("failed to schedule reminder", logx.String("job", string(j.ID)), logx.Err(err))
		case added:
			rep.Added++
		default:
			rep.Skipped++
		}
	}

	if ctx.Err() == nil {
		for _, id := range r.sched.IDs() {
			if !strings.HasPrefix(id, "reminder:") {
				continue
			}
			if _, ok := want[id]; ok {
				continue
			}
			if r.sched.Remove(id) {
				rep.Removed++
				r.log.Info("removed orphan reminder job", logx.String("job", id))
			}
		}
	}

	r.log.Info("reconciliation finished",
		logx.Int("users", rep.Users),
		logx.Int("reminders", rep.Reminders),
		logx.Int("added", rep.Added),
		logx.Int("skipped", rep.Skipped),
		logx.Int("failed", rep.Failed),
		logx.Int("invalid", rep.Invalid),
		logx.Int("removed", rep.Removed),
		logx.Duration("took", time.Since(start)),
	)
	return rep
}

func (r *Reconciler) install(j reminder.Job) (added bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return r.sched.AddDaily(string(j.ID), j.At.Hour, j.At.Minute, r.timeout, r.job(j.Recipient, j.Message))
}
