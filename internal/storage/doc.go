// Package storage holds the durable per-user records (weights and reminders).
//
// A Store keeps the whole record map in memory and writes it through to a
// Backend on every mutation. Backends:
//   - "file": one JSON document, replaced atomically on save
//   - "sqlite": one row per user (modernc.org/sqlite, no cgo)
//   - "redis": one key holding the JSON document
//
// Loading is fail-soft: a missing or unreadable backend yields an empty map and
// a logged warning. Saving reports failures as *PersistenceError.
package storage
