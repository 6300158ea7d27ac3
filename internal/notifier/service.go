package notifier

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"pawbot/internal/task/engine"
	kit "pawbot/internal/transport"
	logx "pawbot/pkg/logx"
)

const reminderPrefix = "🔔 Reminder: "

var (
	ErrNoSender    = errors.New("notifier has no sender")
	ErrRateLimited = errors.New("send rate limit exceeds delivery deadline")
)

// Format renders the text delivered for a reminder message.
func Format(message string) string {
	return reminderPrefix + strings.TrimSpace(message)
}

// Service is safe for concurrent use.
type Service struct {
	mu      sync.Mutex
	log     logx.Logger
	sender  kit.Sender
	cfg     Config
	limiter *rate.Limiter

	dmu   sync.Mutex
	dedup map[string]time.Time

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, sender kit.Sender, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		sender: sender,
		log:    log.With(logx.String("comp", "notifier")),
		dedup:  map[string]time.Time{},
	}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 20
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RatePerSec
	}
	if cfg.DedupWindow < 0 {
		cfg.DedupWindow = 0
	}
	if cfg.DedupMaxEntries <= 0 {
		cfg.DedupMaxEntries = 2000
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 100
	}
	s.cfg = cfg
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst)
}

// Deliver sends text to recipient. It waits for a rate-limit token within
// ctx. Unreachable recipients are reported as engine.NoRetry errors.
func (s *Service) Deliver(ctx context.Context, recipient int64, text string) error {
	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	sender := s.sender
	s.mu.Unlock()

	if sender == nil {
		return ErrNoSender
	}

	if cfg.DedupWindow > 0 && !s.dedupAllow(dedupKey(recipient, text), cfg) {
		s.log.Debug("delivery deduplicated", logx.Int64("recipient", recipient))
		s.appendHistory(HistoryItem{At: time.Now(), Recipient: recipient, Text: text, Deduped: true}, cfg.HistorySize)
		return nil
	}

	if err := waitToken(ctx, lim); err != nil {
		return err
	}

	_, err := sender.SendText(ctx, kit.ChatTarget{ChatID: recipient}, text, nil)
	item := HistoryItem{At: time.Now(), Recipient: recipient, Text: text}
	if err != nil {
		item.Error = err.Error()
		s.appendHistory(item, cfg.HistorySize)
		s.forget(dedupKey(recipient, text))
		if errors.Is(err, kit.ErrRecipientUnavailable) {
			return engine.NoRetry(err)
		}
		return err
	}
	s.appendHistory(item, cfg.HistorySize)
	return nil
}

// waitToken takes one send token. When the token is not available before the
// ctx deadline the error carries the wait as a retry hint.
func waitToken(ctx context.Context, lim *rate.Limiter) error {
	r := lim.Reserve()
	delay := r.Delay()
	if delay == 0 {
		return nil
	}
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < delay {
		r.Cancel()
		return engine.RetryAfter(ErrRateLimited, delay)
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return fmt.Errorf("rate limit wait: %w", ctx.Err())
	}
}

// Snapshot returns recent deliveries, oldest first.
func (s *Service) Snapshot() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	return append([]HistoryItem(nil), s.history...)
}

func (s *Service) appendHistory(it HistoryItem, max int) {
	s.hmu.Lock()
	s.history = append(s.history, it)
	if len(s.history) > max {
		s.history = s.history[len(s.history)-max:]
	}
	s.hmu.Unlock()
}

func dedupKey(recipient int64, text string) string {
	h := fnv.New64a()
	_, _ = fmt.Fprintf(h, "%d|", recipient)
	_, _ = h.Write([]byte(text))
	return fmt.Sprintf("%x", h.Sum64())
}

func (s *Service) dedupAllow(key string, cfg Config) bool {
	now := time.Now()
	s.dmu.Lock()
	defer s.dmu.Unlock()

	if until, ok := s.dedup[key]; ok && now.Before(until) {
		return false
	}
	s.dedup[key] = now.Add(cfg.DedupWindow)

	for k, until := range s.dedup {
		if !now.Before(until) {
			delete(s.dedup, k)
		}
	}
	for len(s.dedup) > cfg.DedupMaxEntries {
		var minKey string
		var minT time.Time
		for k, t := range s.dedup {
			if minKey == "" || t.Before(minT) {
				minKey, minT = k, t
			}
		}
		delete(s.dedup, minKey)
	}
	return true
}

// forget lets a failed delivery be attempted again inside the window.
func (s *Service) forget(key string) {
	s.dmu.Lock()
	delete(s.dedup, key)
	s.dmu.Unlock()
}
