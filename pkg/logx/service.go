package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Level   string
	Console bool
	File    FileConfig
}

// FileConfig is the JSON file sink. The file rotates at MaxSizeMB; 0 values
// take lumberjack's defaults (100 MB, keep all, never expire).
type FileConfig struct {
	Enabled    bool
	Path       string // default ./pawbot.log
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

const defaultLogFile = "./pawbot.log"

var globalsOnce sync.Once

func setGlobals() {
	globalsOnce.Do(func() {
		zerolog.ErrorFieldName = "err"
		zerolog.TimeFieldFormat = consoleTimeFormat
	})
}

// Service owns the sinks behind every Logger it hands out. Apply swaps them
// without invalidating those loggers.
type Service struct {
	mu       sync.Mutex
	cfg      Config
	file     *lumberjack.Logger
	fileConf FileConfig

	root atomic.Pointer[zerolog.Logger]
}

// New applies cfg and returns the Service and its root Logger.
func New(cfg Config) (*Service, Logger) {
	setGlobals()
	s := &Service{}
	s.Apply(cfg)
	return s, Logger{svc: s}
}

func (s *Service) current() zerolog.Logger {
	if zl := s.root.Load(); zl != nil {
		return *zl
	}
	return zerolog.Nop()
}

func (s *Service) Logger() Logger { return Logger{svc: s} }

// Config returns the last applied config.
func (s *Service) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *Service) Close() error {
	s.mu.Lock()
	f := s.file
	s.file = nil
	s.mu.Unlock()
	if f != nil {
		return f.Close()
	}
	return nil
}

// Apply rebuilds the sinks. The log file is kept open while its settings are
// unchanged; a directory that cannot be created is reported on stderr and the
// file sink skipped. With no sink enabled output is discarded.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg

	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, newConsoleWriter(os.Stdout))
	}

	fc := cfg.File
	fc.Path = strings.TrimSpace(fc.Path)
	if fc.Enabled && fc.Path == "" {
		fc.Path = defaultLogFile
	}
	if s.file != nil && (!fc.Enabled || fc != s.fileConf) {
		_ = s.file.Close()
		s.file = nil
	}
	if fc.Enabled && s.file == nil {
		if err := os.MkdirAll(filepath.Dir(fc.Path), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "logx: log dir %q: %v\n", filepath.Dir(fc.Path), err)
		} else {
			s.file = &lumberjack.Logger{
				Filename:   fc.Path,
				MaxSize:    fc.MaxSizeMB,
				MaxBackups: fc.MaxBackups,
				MaxAge:     fc.MaxAgeDays,
			}
			s.fileConf = fc
		}
	}
	if s.file != nil {
		writers = append(writers, zerolog.SyncWriter(s.file))
	}

	var zl zerolog.Logger
	switch len(writers) {
	case 0:
		zl = zerolog.Nop()
	case 1:
		zl = zerolog.New(writers[0])
	default:
		zl = zerolog.New(zerolog.MultiLevelWriter(writers...))
	}
	zl = zl.Level(parseLevel(cfg.Level, zerolog.InfoLevel)).With().Timestamp().Logger()
	s.root.Store(&zl)
}

func newConsoleWriter(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: consoleTimeFormat,
		FormatCaller: func(i any) string {
			s, _ := i.(string)
			return s
		},
	}
}

func parseLevel(s string, def zerolog.Level) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return def
	}
}
