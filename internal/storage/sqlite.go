package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	logx "pawbot/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Backend, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load skips rows whose columns do not decode; the rest still load. Skipped
// rows are moved to users_corrupt so the next Save cannot erase them.
func (s *sqliteStore) Load(ctx context.Context) (Records, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	recs, bad, err := s.scanUsers(ctx)
	if err != nil {
		return nil, err
	}
	if len(bad) > 0 {
		if err := s.quarantine(ctx, bad); err != nil {
			return nil, fmt.Errorf("quarantine malformed rows: %w", err)
		}
		s.log.Warn("malformed user rows moved to users_corrupt", logx.Int("count", len(bad)))
	}
	return recs, nil
}

func (s *sqliteStore) scanUsers(ctx context.Context) (Records, []string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, weights, reminders FROM users ORDER BY id`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	recs := Records{}
	var bad []string
	for rows.Next() {
		var id, weights, reminders string
		if err := rows.Scan(&id, &weights, &reminders); err != nil {
			return nil, nil, err
		}
		var rec UserRecord
		if err := json.Unmarshal([]byte(weights), &rec.Weights); err != nil {
			s.log.Warn("skipping user row with malformed weights", logx.String("user", id), logx.Err(err))
			bad = append(bad, id)
			continue
		}
		if err := json.Unmarshal([]byte(reminders), &rec.Reminders); err != nil {
			s.log.Warn("skipping user row with malformed reminders", logx.String("user", id), logx.Err(err))
			bad = append(bad, id)
			continue
		}
		recs[id] = rec.Clone()
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return recs, bad, nil
}

func (s *sqliteStore) quarantine(ctx context.Context, ids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO users_corrupt(id, weights, reminders, moved_at)
			 SELECT id, weights, reminders, CURRENT_TIMESTAMP FROM users WHERE id = ?`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Save replaces the table contents in one transaction.
func (s *sqliteStore) Save(ctx context.Context, recs Records) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM users`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO users(id, weights, reminders) VALUES(?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for id, rec := range recs {
		rec = rec.Clone()
		w, err := json.Marshal(rec.Weights)
		if err != nil {
			return err
		}
		r, err := json.Marshal(rec.Reminders)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, id, string(w), string(r)); err != nil {
			return err
		}
	}
	return tx.Commit()
}
