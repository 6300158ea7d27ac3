package reminder

import (
	"errors"
	"sort"
	"strings"

	"pawbot/internal/storage"
	logx "pawbot/pkg/logx"
)

var ErrEmptyMessage = errors.New("reminder message is empty")

// Entry is one persisted reminder resolved to its schedule parameters.
type Entry struct {
	ID        Identity
	UserKey   string
	Recipient int64
	Index     int // 0-based position in the user's reminder list
	At        Clock
	Message   string
}

// Job is one distinct identity and how many persisted entries back it.
type Job struct {
	ID        Identity
	Recipient int64
	At        Clock
	Message   string
	Count     int
}

// Invalid is a persisted reminder that cannot be scheduled.
type Invalid struct {
	UserKey string
	Index   int
	Time    string
	Message string
	Err     error
}

// Registry is a read-only view of all persisted reminders keyed by identity.
// Rebuild it from a fresh snapshot whenever the records change.
type Registry struct {
	entries []Entry
	jobs    []Job
	byID    map[Identity]int
	invalid []Invalid
}

// Build derives the registry from records. Users are visited in key order and
// reminders in list order. Entries that cannot be scheduled are collected in
// Invalid and logged.
func Build(recs storage.Records, log logx.Logger) *Registry {
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Registry{byID: map[Identity]int{}}

	keys := make([]string, 0, len(recs))
	for k := range recs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		recipient, err := storage.ParseUserKey(key)
		for i, rem := range recs[key].Reminders {
			if err != nil {
				r.reject(log, key, i, rem, err)
				continue
			}
			at, perr := ParseClock(rem.Time)
			if perr != nil {
				r.reject(log, key, i, rem, perr)
				continue
			}
			if strings.TrimSpace(rem.Message) == "" {
				r.reject(log, key, i, rem, ErrEmptyMessage)
				continue
			}
			e := Entry{
				ID:        IdentityOf(recipient, at.String(), rem.Message),
				UserKey:   key,
				Recipient: recipient,
				Index:     i,
				At:        at,
				Message:   rem.Message,
			}
			r.entries = append(r.entries, e)
			if j, ok := r.byID[e.ID]; ok {
				r.jobs[j].Count++
				continue
			}
			r.byID[e.ID] = len(r.jobs)
			r.jobs = append(r.jobs, Job{ID: e.ID, Recipient: recipient, At: at, Message: rem.Message, Count: 1})
		}
	}
	return r
}

func (r *Registry) reject(log logx.Logger, key string, i int, rem storage.ReminderEntry, err error) {
	log.Warn("skipping invalid reminder",
		logx.String("user", key),
		logx.Int("index", i),
		logx.String("time", rem.Time),
		logx.Err(err),
	)
	r.invalid = append(r.invalid, Invalid{UserKey: key, Index: i, Time: rem.Time, Message: rem.Message, Err: err})
}

func (r *Registry) Entries() []Entry { return append([]Entry(nil), r.entries...) }

// Jobs lists each identity once, in first-seen order.
func (r *Registry) Jobs() []Job { return append([]Job(nil), r.jobs...) }

func (r *Registry) Invalid() []Invalid { return append([]Invalid(nil), r.invalid...) }

func (r *Registry) Lookup(id Identity) (Job, bool) {
	j, ok := r.byID[id]
	if !ok {
		return Job{}, false
	}
	return r.jobs[j], true
}

// Duplicates lists identities backed by more than one entry.
func (r *Registry) Duplicates() []Job {
	var out []Job
	for _, j := range r.jobs {
		if j.Count > 1 {
			out = append(out, j)
		}
	}
	return out
}

// CountIdentity counts the reminders in list that map to id for recipient.
func CountIdentity(recipient int64, list []storage.ReminderEntry, id Identity) int {
	n := 0
	for _, rem := range list {
		if IdentityOf(recipient, rem.Time, rem.Message) == id {
			n++
		}
	}
	return n
}
