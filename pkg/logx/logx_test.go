package logx

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriterFieldsAndLevel(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := NewWriter(&buf, "info").With(String("comp", "test"))

	log.Debug("hidden")
	log.Info("shown", Int("n", 3), Err(errors.New("boom")), Err(nil))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line written at info level: %s", out)
	}
	for _, want := range []string{`"comp":"test"`, `"n":3`, `"err":"boom"`, `"message":"shown"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %s missing %s", out, want)
		}
	}
}

func TestZeroAndNopDiscard(t *testing.T) {
	t.Parallel()
	var zero Logger
	if !zero.IsZero() {
		t.Fatalf("zero Logger IsZero = false, want true")
	}
	zero.Info("nothing")
	if Nop().IsZero() {
		t.Fatalf("Nop().IsZero() = true, want false")
	}
}

func TestServiceApplyFollowsLoggers(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "logs", "pawbot.log")
	svc, log := New(Config{Level: "warn", File: FileConfig{Enabled: true, Path: path}})
	defer svc.Close()
	log = log.With(String("comp", "x"))

	log.Info("before")
	svc.Apply(Config{Level: "debug", File: FileConfig{Enabled: true, Path: path}})
	log.Debug("after")

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if strings.Contains(string(b), "before") {
		t.Fatalf("info line written at warn level: %s", b)
	}
	if !strings.Contains(string(b), "after") {
		t.Fatalf("debug line missing after Apply: %s", b)
	}
	if got := svc.Config().Level; got != "debug" {
		t.Fatalf("Config().Level = %q, want debug", got)
	}
}
