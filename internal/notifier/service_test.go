package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"pawbot/internal/task/engine"
	kit "pawbot/internal/transport"
	logx "pawbot/pkg/logx"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeSender) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return kit.MessageRef{}, f.err
	}
	f.sent = append(f.sent, fmt.Sprintf("%d:%s", to.ChatID, text))
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func TestFormat(t *testing.T) {
	t.Parallel()
	if got := Format(" Feed the dog "); got != "🔔 Reminder: Feed the dog" {
		t.Fatalf("Format = %q", got)
	}
}

func TestDeliverSendsAndRecords(t *testing.T) {
	t.Parallel()
	fs := &fakeSender{}
	s := New(Config{}, fs, logx.Nop())
	if err := s.Deliver(context.Background(), 7, Format("Feed the dog")); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if len(fs.sent) != 1 || fs.sent[0] != "7:🔔 Reminder: Feed the dog" {
		t.Fatalf("sent = %q", fs.sent)
	}
	if h := s.Snapshot(); len(h) != 1 || h[0].Recipient != 7 || h[0].Error != "" {
		t.Fatalf("history = %+v", h)
	}
}

func TestDeliverDedupWindow(t *testing.T) {
	t.Parallel()
	fs := &fakeSender{}
	s := New(Config{DedupWindow: time.Minute}, fs, logx.Nop())
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := s.Deliver(ctx, 7, "hi"); err != nil {
			t.Fatalf("Deliver: %v", err)
		}
	}
	_ = s.Deliver(ctx, 8, "hi")
	if len(fs.sent) != 2 {
		t.Fatalf("sent = %q, want one per recipient", fs.sent)
	}
}

func TestDeliverUnavailableIsNoRetry(t *testing.T) {
	t.Parallel()
	fs := &fakeSender{err: fmt.Errorf("%w: blocked", kit.ErrRecipientUnavailable)}
	s := New(Config{}, fs, logx.Nop())
	err := s.Deliver(context.Background(), 7, "hi")
	if !engine.IsNoRetry(err) || !errors.Is(err, kit.ErrRecipientUnavailable) {
		t.Fatalf("Deliver err = %v, want NoRetry(ErrRecipientUnavailable)", err)
	}

	fs.err = errors.New("timeout")
	err = s.Deliver(context.Background(), 7, "hi")
	if err == nil || engine.IsNoRetry(err) {
		t.Fatalf("transient err = %v, want retryable error", err)
	}
}

func TestDeliverHonoursDeadline(t *testing.T) {
	t.Parallel()
	s := New(Config{RatePerSec: 1, Burst: 1}, &fakeSender{}, logx.Nop())
	_ = s.Deliver(context.Background(), 1, "a")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.Deliver(ctx, 1, "b")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Deliver err = %v, want ErrRateLimited", err)
	}
	var ra engine.RetryAfterError
	if !errors.As(err, &ra) || ra.RetryAfter() <= 0 {
		t.Fatalf("Deliver err = %v, want a positive retry hint", err)
	}
}
