package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "pawbot/pkg/logx"
)

// fileStore keeps all records in one JSON document.
//
// Saves go to <path>.tmp, are fsynced and renamed over <path>, so a crash
// leaves either the old or the new document. A document that fails to decode
// is copied to <path>.corrupt before Load reports ErrCorrupt.
type fileStore struct {
	log  logx.Logger
	path string

	mu     sync.Mutex
	closed bool
}

func openFile(cfg Config, log logx.Logger) (Backend, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &fileStore{log: log, path: path}, nil
}

func (s *fileStore) Load(ctx context.Context) (Records, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return Records{}, nil
	}

	recs, err := decodeRecords(b)
	if err != nil {
		bak := s.path + ".corrupt"
		if werr := os.WriteFile(bak, b, 0o600); werr != nil {
			s.log.Warn("failed to keep corrupt data file", logx.String("path", bak), logx.Err(werr))
		}
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return recs, nil
}

func (s *fileStore) Save(ctx context.Context, recs Records) error {
	_ = ctx
	b, err := encodeRecords(recs)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// encodeRecords renders the document with a 4-space indent.
func encodeRecords(recs Records) ([]byte, error) {
	norm := recs.Clone()
	b, err := json.MarshalIndent(norm, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func decodeRecords(b []byte) (Records, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	var recs Records
	if err := dec.Decode(&recs); err != nil {
		return nil, err
	}
	var extra any
	if err := dec.Decode(&extra); err != io.EOF {
		return nil, errors.New("trailing data after document")
	}
	if recs == nil {
		recs = Records{}
	}
	return recs.Clone(), nil
}
