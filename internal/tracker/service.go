// Package tracker implements the user-facing mutations: weights and daily
// reminders. Reminder mutations keep the Store and the job table in step.
package tracker

import (
	"context"
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"pawbot/internal/clock"
	"pawbot/internal/notifier"
	"pawbot/internal/reminder"
	"pawbot/internal/storage"
	logx "pawbot/pkg/logx"
)

const defaultDeliveryTimeout = 15 * time.Second

// Scheduler is the subset of the job table the tracker drives.
type Scheduler interface {
	AddDaily(id string, hour, minute int, timeout time.Duration, job func(ctx context.Context) error) (bool, error)
	Remove(id string) bool
	Has(id string) bool
}

// Deliverer sends a rendered reminder to a recipient.
type Deliverer interface {
	Deliver(ctx context.Context, recipient int64, text string) error
}

type Deps struct {
	Store           *storage.Store
	Scheduler       Scheduler
	Clock           clock.Clock
	Deliverer       Deliverer
	DeliveryTimeout time.Duration
	Log             logx.Logger
}

type Service struct {
	store   *storage.Store
	sched   Scheduler
	clock   clock.Clock
	deliver Deliverer
	timeout time.Duration
	log     logx.Logger

	// remMu orders reminder mutations so Store and job table agree.
	remMu sync.Mutex
}

func New(d Deps) *Service {
	if d.Clock == nil {
		d.Clock = clock.Real{}
	}
	if d.DeliveryTimeout <= 0 {
		d.DeliveryTimeout = defaultDeliveryTimeout
	}
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	return &Service{
		store:   d.Store,
		sched:   d.Scheduler,
		clock:   d.Clock,
		deliver: d.Deliverer,
		timeout: d.DeliveryTimeout,
		log:     d.Log.With(logx.String("comp", "tracker")),
	}
}

func (s *Service) DeliveryTimeout() time.Duration { return s.timeout }

// JobFor builds the action run each time a reminder fires.
func (s *Service) JobFor(user int64, message string) func(ctx context.Context) error {
	text := notifier.Format(message)
	return func(ctx context.Context) error {
		if s.deliver == nil {
			return errors.New("no deliverer configured")
		}
		return s.deliver.Deliver(ctx, user, text)
	}
}

// ParseWeight reads the first whitespace-separated token of text.
func ParseWeight(text string) (float64, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0, &ValidationError{Field: "weight", Value: text, Err: ErrInvalidWeight}
	}
	w, err := strconv.ParseFloat(strings.ReplaceAll(fields[0], ",", "."), 64)
	if err != nil || math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
		return 0, &ValidationError{Field: "weight", Value: text, Err: ErrInvalidWeight}
	}
	return w, nil
}

// ParseDate accepts "today" in any case or an ISO calendar date.
func (s *Service) ParseDate(text string) (string, error) {
	v := strings.TrimSpace(text)
	if strings.EqualFold(v, "today") {
		return clock.Today(s.clock), nil
	}
	t, err := time.Parse(clock.DateLayout, v)
	if err != nil {
		return "", &ValidationError{Field: "date", Value: text, Err: ErrInvalidDate}
	}
	return t.Format(clock.DateLayout), nil
}

// AddWeight appends one weight entry. A *PersistenceError means the entry
// was recorded but not yet written.
func (s *Service) AddWeight(ctx context.Context, user int64, date, weightText string) (storage.WeightEntry, error) {
	w, err := ParseWeight(weightText)
	if err != nil {
		return storage.WeightEntry{}, err
	}
	d, err := s.ParseDate(date)
	if err != nil {
		return storage.WeightEntry{}, err
	}
	entry := storage.WeightEntry{Date: d, Weight: w}
	err = s.store.Update(ctx, storage.UserKey(user), func(rec *storage.UserRecord) error {
		rec.Weights = append(rec.Weights, entry)
		return nil
	})
	if err != nil && !IsPersistence(err) {
		return storage.WeightEntry{}, err
	}
	s.log.Info("weight added", logx.Int64("user", user), logx.String("date", d), logx.Float64("weight", w))
	return entry, err
}

// AddReminder validates, records and schedules a daily reminder. Nothing is
// written when validation fails. If the job table refuses the job the Store
// entry is removed again and a *SchedulingError is returned.
func (s *Service) AddReminder(ctx context.Context, user int64, hhmm, message string) (storage.ReminderEntry, error) {
	at, err := reminder.ParseClock(hhmm)
	if err != nil {
		return storage.ReminderEntry{}, &ValidationError{Field: "time", Value: hhmm, Err: ErrInvalidTimeFormat}
	}
	msg := strings.TrimSpace(message)
	if msg == "" {
		return storage.ReminderEntry{}, &ValidationError{Field: "message", Value: message, Err: ErrEmptyMessage}
	}
	entry := storage.ReminderEntry{Time: at.String(), Message: msg}
	id := reminder.IdentityOf(user, entry.Time, entry.Message)
	key := storage.UserKey(user)

	s.remMu.Lock()
	defer s.remMu.Unlock()

	perr := s.store.Update(ctx, key, func(rec *storage.UserRecord) error {
		if reminder.CountIdentity(user, rec.Reminders, id) > 0 {
			return &ValidationError{Field: "reminder", Value: entry.Time + " " + entry.Message, Err: ErrDuplicateReminder}
		}
		rec.Reminders = append(rec.Reminders, entry)
		return nil
	})
	if perr != nil && !IsPersistence(perr) {
		return storage.ReminderEntry{}, perr
	}

	added, serr := s.sched.AddDaily(string(id), at.Hour, at.Minute, s.timeout, s.JobFor(user, entry.Message))
	if serr != nil {
		s.rollback(ctx, key, user, id)
		s.log.Error("failed to schedule reminder", logx.String("job", string(id)), logx.Err(serr))
		return storage.ReminderEntry{}, &SchedulingError{ID: string(id), Err: serr}
	}
	if !added {
		s.log.Debug("reminder job already present", logx.String("job", string(id)))
	}
	s.log.Info("reminder added", logx.Int64("user", user), logx.String("time", entry.Time), logx.String("job", string(id)))
	return entry, perr
}

// rollback drops the last entry with identity id.
func (s *Service) rollback(ctx context.Context, key string, user int64, id reminder.Identity) {
	err := s.store.Update(ctx, key, func(rec *storage.UserRecord) error {
		for i := len(rec.Reminders) - 1; i >= 0; i-- {
			r := rec.Reminders[i]
			if reminder.IdentityOf(user, r.Time, r.Message) == id {
				rec.Reminders = append(rec.Reminders[:i:i], rec.Reminders[i+1:]...)
				return nil
			}
		}
		return errNothingToRollback
	})
	if err != nil && !errors.Is(err, errNothingToRollback) {
		s.log.Warn("rollback not persisted", logx.String("job", string(id)), logx.Err(err))
	}
}

var errNothingToRollback = errors.New("nothing to roll back")

// DeleteReminder removes the reminder at 1-based index. The job is removed
// when no other entry of the user shares its identity.
func (s *Service) DeleteReminder(ctx context.Context, user int64, index int) (storage.ReminderEntry, error) {
	key := storage.UserKey(user)

	s.remMu.Lock()
	defer s.remMu.Unlock()

	var (
		removed   storage.ReminderEntry
		remaining int
	)
	perr := s.store.Update(ctx, key, func(rec *storage.UserRecord) error {
		n := len(rec.Reminders)
		if index < 1 || index > n {
			return &NotFoundError{Index: index, Count: n, Err: ErrIndexOutOfRange}
		}
		i := index - 1
		removed = rec.Reminders[i]
		rec.Reminders = append(rec.Reminders[:i:i], rec.Reminders[i+1:]...)
		remaining = reminder.CountIdentity(user, rec.Reminders, reminder.IdentityOf(user, removed.Time, removed.Message))
		return nil
	})
	if perr != nil && !IsPersistence(perr) {
		return storage.ReminderEntry{}, perr
	}

	id := string(reminder.IdentityOf(user, removed.Time, removed.Message))
	if remaining == 0 {
		if !s.sched.Remove(id) {
			s.log.Debug("no job to remove", logx.String("job", id))
		}
	}
	s.log.Info("reminder deleted", logx.Int64("user", user), logx.Int("index", index), logx.String("job", id))
	return removed, perr
}

// ListReminders returns the user's reminders in insertion order.
func (s *Service) ListReminders(user int64) []storage.ReminderEntry {
	rec, ok := s.store.Get(storage.UserKey(user))
	if !ok {
		return []storage.ReminderEntry{}
	}
	return rec.Reminders
}

// ListWeights returns the user's weights sorted by date. Entries on the same
// date keep insertion order.
func (s *Service) ListWeights(user int64) []storage.WeightEntry {
	rec, ok := s.store.Get(storage.UserKey(user))
	if !ok {
		return []storage.WeightEntry{}
	}
	out := rec.Weights
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Scheduled reports whether the reminder's job is live.
func (s *Service) Scheduled(user int64, r storage.ReminderEntry) bool {
	return s.sched.Has(string(reminder.IdentityOf(user, r.Time, r.Message)))
}
