package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"pawbot/internal/task/engine"
	logx "pawbot/pkg/logx"
)

// AddDaily registers job under id to fire every day at hour:minute.
// It returns added=false without error when id is already registered.
func (s *Service) AddDaily(id string, hour, minute int, timeout time.Duration, job func(ctx context.Context) error) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, errors.New("job id required")
	}
	if job == nil {
		return false, errors.New("job func required")
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return false, fmt.Errorf("%w: %d:%d", ErrInvalidTime, hour, minute)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; ok {
		return false, nil
	}
	d := &dailyDef{
		id:      id,
		hour:    hour,
		minute:  minute,
		spec:    fmt.Sprintf("%d %d * * *", minute, hour),
		timeout: timeout,
		job:     job,
		state:   &engine.RunState{},
	}
	if s.c != nil {
		if err := s.armLocked(d); err != nil {
			return false, fmt.Errorf("register %s: %w", id, err)
		}
	}
	s.jobs[id] = d

	if s.log.Enabled(logx.LevelDebug) {
		s.log.Debug("job registered", logx.String("job", id), logx.String("spec", d.spec), logx.String("next", s.nextLocked(d).Format(time.RFC3339)))
	}
	return true, nil
}

// AddDailyAt is AddDaily with an "HH:MM" time.
func (s *Service) AddDailyAt(id, hhmm string, timeout time.Duration, job func(ctx context.Context) error) (bool, error) {
	h, m, err := parseHHMM(hhmm)
	if err != nil {
		return false, err
	}
	return s.AddDaily(id, h, m, timeout, job)
}

// Remove unregisters id. Future firings are cancelled and a queued firing is
// dropped before it runs; a firing already running completes.
func (s *Service) Remove(id string) bool {
	s.mu.Lock()
	d, ok := s.jobs[strings.TrimSpace(id)]
	if ok {
		if s.c != nil && d.entryID != 0 {
			s.c.Remove(d.entryID)
		}
		d.entryID = 0
		delete(s.jobs, d.id)
	}
	s.mu.Unlock()

	if ok {
		s.log.Debug("job removed", logx.String("job", d.id))
	}
	return ok
}

func (s *Service) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[strings.TrimSpace(id)]
	return ok
}

func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// IDs returns the registered identities in sorted order.
func (s *Service) IDs() []string {
	s.mu.Lock()
	out := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		out = append(out, id)
	}
	s.mu.Unlock()
	sort.Strings(out)
	return out
}

// Next reports the next fire time of id.
func (s *Service) Next(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.jobs[strings.TrimSpace(id)]
	if !ok {
		return time.Time{}, false
	}
	return s.nextLocked(d), true
}

// Trigger fires id once, out of schedule.
func (s *Service) Trigger(id string) bool {
	s.mu.Lock()
	d, ok := s.jobs[strings.TrimSpace(id)]
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.fire(d)
	return true
}

func (s *Service) nextLocked(d *dailyDef) time.Time {
	if s.c != nil && d.entryID != 0 {
		if e := s.c.Entry(d.entryID); !e.Next.IsZero() {
			return e.Next
		}
	}
	sched, err := s.parser.Parse(d.spec)
	if err != nil {
		return time.Time{}
	}
	return sched.Next(time.Now().In(s.loc))
}

// armLocked registers d with the running cron. Call with s.mu held.
func (s *Service) armLocked(d *dailyDef) error {
	eid, err := s.c.AddJob(d.spec, cron.FuncJob(func() { s.fire(d) }))
	if err != nil {
		return err
	}
	d.entryID = eid
	return nil
}

func (s *Service) fire(d *dailyDef) {
	if s.exec == nil {
		return
	}
	err := s.exec.Enqueue(engine.Task{
		Name:    d.id,
		Timeout: d.timeout,
		Run:     d.job,
		Alive:   func() bool { return s.current(d) },
		Opt:     engine.TaskOptions{Overlap: engine.OverlapSkipIfRunning},
		State:   d.state,
	})
	if err != nil {
		s.reportEnqueueError(d.id, err)
	}
}

// current reports whether d is still the registered definition for its id.
func (s *Service) current(d *dailyDef) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[d.id] == d
}

func parseHHMM(v string) (hour int, minute int, err error) {
	v = strings.TrimSpace(v)
	hh, mm, ok := strings.Cut(v, ":")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q, expected HH:MM", ErrInvalidTime, v)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("%w: invalid hour in %q", ErrInvalidTime, v)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || len(mm) != 2 {
		return 0, 0, fmt.Errorf("%w: invalid minute in %q", ErrInvalidTime, v)
	}
	return h, m, nil
}
