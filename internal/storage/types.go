package storage

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNotFound = errors.New("storage: no persisted data")
	ErrCorrupt  = errors.New("storage: persisted data is malformed")
	ErrClosed   = errors.New("storage: backend closed")
)

// Config configures storage.
//
// Driver values: "file" (default), "sqlite", "redis".
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
	DialTimeout   time.Duration
}

// Records maps a user key (decimal chat id) to that user's data.
type Records map[string]UserRecord

type UserRecord struct {
	Weights   []WeightEntry   `json:"weights"`
	Reminders []ReminderEntry `json:"reminders"`
}

type WeightEntry struct {
	Date   string  `json:"date"`
	Weight float64 `json:"weight"`
}

type ReminderEntry struct {
	Time    string `json:"time"`
	Message string `json:"message"`
}

// Clone returns a deep copy. Nil slices become empty ones so that encoded
// records always carry both arrays.
func (r UserRecord) Clone() UserRecord {
	out := UserRecord{
		Weights:   make([]WeightEntry, len(r.Weights)),
		Reminders: make([]ReminderEntry, len(r.Reminders)),
	}
	copy(out.Weights, r.Weights)
	copy(out.Reminders, r.Reminders)
	return out
}

func (r Records) Clone() Records {
	out := make(Records, len(r))
	for k, v := range r {
		out[k] = v.Clone()
	}
	return out
}

// UserKey renders a numeric user id as a record key.
func UserKey(id int64) string { return strconv.FormatInt(id, 10) }

// ParseUserKey is the inverse of UserKey.
func ParseUserKey(key string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(key), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("storage: invalid user key %q: %w", key, err)
	}
	return id, nil
}

// PersistenceError reports a failed load or save. The in-memory state is
// unaffected by it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return "storage " + e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }
