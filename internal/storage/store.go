package storage

import (
	"context"
	"errors"
	"sync"

	logx "pawbot/pkg/logx"
)

// Store is the in-memory record map backed by a Backend.
//
// Reads are served from memory. Mutations go through Update, which applies
// the change and writes the full map through before returning. Writes are
// serialized. When a write fails the mutation stays in memory, the store is
// marked dirty and the caller receives a *PersistenceError; Flush retries.
type Store struct {
	log     logx.Logger
	backend Backend

	writeMu sync.Mutex // serializes backend writes

	mu    sync.RWMutex
	recs  Records
	dirty bool
}

func NewStore(b Backend, log logx.Logger) *Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Store{
		log:     log.With(logx.String("comp", "storage")),
		backend: b,
		recs:    Records{},
	}
}

// Load replaces the in-memory map with the backend's contents. It never
// fails: missing or unreadable data yields an empty map and a warning.
func (s *Store) Load(ctx context.Context) Records {
	recs, err := s.backend.Load(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		s.log.Info("no persisted data, starting empty")
		recs = Records{}
	case err != nil:
		s.log.Warn("failed to load persisted data, starting empty", logx.Err(err))
		recs = Records{}
	case recs == nil:
		recs = Records{}
	}

	s.mu.Lock()
	s.recs = recs
	s.dirty = false
	s.mu.Unlock()

	s.log.Info("records loaded", logx.Int("users", len(recs)))
	return recs.Clone()
}

// Save writes the current map to the backend.
func (s *Store) Save(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.saveLocked(ctx)
}

func (s *Store) saveLocked(ctx context.Context) error {
	s.mu.Lock()
	snap := s.recs.Clone()
	s.dirty = false
	s.mu.Unlock()

	if err := s.backend.Save(ctx, snap); err != nil {
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
		s.log.Error("failed to persist records", logx.Err(err))
		return &PersistenceError{Op: "save", Err: err}
	}
	return nil
}

// GetOrCreate returns the user's record, creating an empty one in memory on
// first access.
func (s *Store) GetOrCreate(id string) UserRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		rec = UserRecord{Weights: []WeightEntry{}, Reminders: []ReminderEntry{}}
		s.recs[id] = rec
	}
	return rec.Clone()
}

func (s *Store) Get(id string) (UserRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recs[id]
	if !ok {
		return UserRecord{}, false
	}
	return rec.Clone(), true
}

// Update applies fn to a copy of the user's record. If fn returns an error the
// store is left untouched and that error is returned. Otherwise the copy
// replaces the record and the map is persisted.
func (s *Store) Update(ctx context.Context, id string, fn func(rec *UserRecord) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	rec, ok := s.recs[id]
	if !ok {
		rec = UserRecord{}
	}
	work := rec.Clone()
	if err := fn(&work); err != nil {
		s.mu.Unlock()
		return err
	}
	s.recs[id] = work
	s.mu.Unlock()

	return s.saveLocked(ctx)
}

// Snapshot returns a deep copy of all records.
func (s *Store) Snapshot() Records {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recs.Clone()
}

// Dirty reports whether the last write failed and has not been retried
// successfully.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// Flush retries persistence if the store is dirty.
func (s *Store) Flush(ctx context.Context) error {
	if !s.Dirty() {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if !s.Dirty() {
		return nil
	}
	if err := s.saveLocked(ctx); err != nil {
		return err
	}
	s.log.Info("pending changes persisted")
	return nil
}

func (s *Store) Close() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Close()
}
