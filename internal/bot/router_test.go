package bot

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"pawbot/internal/clock"
	"pawbot/internal/conversation"
	"pawbot/internal/storage"
	"pawbot/internal/tracker"
	kit "pawbot/internal/transport"
	logx "pawbot/pkg/logx"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	menu []kit.BotCommand
}

func (f *fakeSender) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeSender) UpdateMenuCommands(ctx context.Context, cmds []kit.BotCommand) error {
	f.mu.Lock()
	f.menu = cmds
	f.mu.Unlock()
	return nil
}

func (f *fakeSender) last(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatalf("nothing sent")
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeScheduler struct {
	mu   sync.Mutex
	jobs map[string]bool
	fail error
}

func (f *fakeScheduler) AddDaily(id string, hour, minute int, timeout time.Duration, job func(ctx context.Context) error) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return false, f.fail
	}
	if f.jobs[id] {
		return false, nil
	}
	f.jobs[id] = true
	return true, nil
}

func (f *fakeScheduler) Remove(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	ok := f.jobs[id]
	delete(f.jobs, id)
	return ok
}

func (f *fakeScheduler) Has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jobs[id]
}

type harness struct {
	router *Router
	sender *fakeSender
	sched  *fakeScheduler
	store  *storage.Store
	conv   *conversation.Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	b, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "data.json")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	st := storage.NewStore(b, logx.Nop())
	st.Load(context.Background())
	t.Cleanup(func() { _ = st.Close() })

	c := clock.NewFixed(time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC))
	sched := &fakeScheduler{jobs: map[string]bool{}}
	tr := tracker.New(tracker.Deps{Store: st, Scheduler: sched, Clock: c, Log: logx.Nop()})
	sender := &fakeSender{}
	conv := conversation.New(time.Hour, c)
	r := New(Deps{Sender: sender, Tracker: tr, Conv: conv, Log: logx.Nop()})
	return &harness{router: r, sender: sender, sched: sched, store: st, conv: conv}
}

func (h *harness) say(t *testing.T, user int64, text string) string {
	t.Helper()
	h.router.Handle(context.Background(), kit.Update{Message: &kit.Message{ChatID: user, FromID: user, FromName: "Ana", Text: text}})
	return h.sender.last(t)
}

func TestStartListsCommands(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	got := h.say(t, 1, "/start")
	if !strings.HasPrefix(got, "Hi Ana! I'm your dog care bot.") || !strings.Contains(got, "/deletereminder <index>") {
		t.Fatalf("welcome = %q", got)
	}
	if help := h.say(t, 1, "/help@pawbot"); help != got {
		t.Fatalf("help = %q, want welcome text", help)
	}
}

func TestWeightConversation(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	steps := []struct {
		in   string
		want string
	}{
		{in: "/addweight", want: textAskWeight},
		{in: "heavy", want: textInvalidWeight},
		{in: "15 kg", want: textAskDate},
		{in: "yesterday", want: textInvalidDate},
		{in: "today", want: "Successfully recorded your dog's weight: 15.0 on 2024-03-05."},
		{in: "/addweight", want: textAskWeight},
		{in: "12.5", want: textAskDate},
		{in: "2024-01-10", want: "Successfully recorded your dog's weight: 12.5 on 2024-01-10."},
	}
	for _, s := range steps {
		if got := h.say(t, 42, s.in); got != s.want {
			t.Fatalf("%q -> %q, want %q", s.in, got, s.want)
		}
	}
	want := "🐾 Your Dog's Weight History:\n" +
		"- Date: 2024-01-10, Weight: 12.5 kg/lbs\n" +
		"- Date: 2024-03-05, Weight: 15.0 kg/lbs\n"
	if got := h.say(t, 42, "/viewweights"); got != want {
		t.Fatalf("viewweights = %q, want %q", got, want)
	}
	if got := h.say(t, 7, "/viewweights"); got != textNoWeights {
		t.Fatalf("viewweights for other user = %q", got)
	}
}

func TestReminderConversation(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	steps := []struct {
		in   string
		want string
	}{
		{in: "/listreminders", want: textNoReminders},
		{in: "/addreminder", want: textAskTime},
		{in: "25:00", want: textInvalidTime},
		{in: "8:30", want: textAskMessage},
		{in: "Feed the dog", want: "Daily reminder set for 08:30 with message: 'Feed the dog' 🔔"},
		{in: "/addreminder", want: textAskTime},
		{in: "08:30", want: textAskMessage},
		{in: "Feed the dog", want: "You already have a daily reminder at 08:30 with message: 'Feed the dog'."},
		{in: "/addreminder", want: textAskTime},
		{in: "19:00", want: textAskMessage},
		{in: "Walk", want: "Daily reminder set for 19:00 with message: 'Walk' 🔔"},
	}
	for _, s := range steps {
		if got := h.say(t, 7, s.in); got != s.want {
			t.Fatalf("%q -> %q, want %q", s.in, got, s.want)
		}
	}
	want := "⏰ Your Active Reminders:\n" +
		"1. At 08:30: Feed the dog\n" +
		"2. At 19:00: Walk\n" +
		"\nTo delete a reminder, use /deletereminder <number> (e.g., /deletereminder 1)"
	if got := h.say(t, 7, "/listreminders"); got != want {
		t.Fatalf("listreminders = %q, want %q", got, want)
	}
	if len(h.sched.jobs) != 2 {
		t.Fatalf("jobs = %d, want 2", len(h.sched.jobs))
	}
}

func TestDeleteReminderReplies(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.say(t, 7, "/addreminder")
	h.say(t, 7, "08:30")
	h.say(t, 7, "Feed the dog")

	tests := []struct {
		in   string
		want string
	}{
		{in: "/deletereminder", want: textDeleteUsage},
		{in: "/deletereminder one", want: textDeleteNotNumber},
		{in: "/deletereminder 0", want: textDeleteRange},
		{in: "/deletereminder 2", want: textDeleteRange},
		{in: "/deletereminder 1", want: "Reminder 'Feed the dog' at 08:30 deleted successfully!"},
		{in: "/deletereminder 1", want: textDeleteRange},
	}
	for _, tt := range tests {
		if got := h.say(t, 7, tt.in); got != tt.want {
			t.Fatalf("%q -> %q, want %q", tt.in, got, tt.want)
		}
	}
	if len(h.sched.jobs) != 0 {
		t.Fatalf("jobs = %d, want 0", len(h.sched.jobs))
	}
}

func TestCancelEndsConversation(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.say(t, 7, "/addreminder")
	h.say(t, 7, "08:30")
	if got := h.say(t, 7, "/cancel"); got != textCanceled {
		t.Fatalf("cancel = %q", got)
	}
	before := h.sender.count()
	h.router.Handle(context.Background(), kit.Update{Message: &kit.Message{ChatID: 7, FromID: 7, Text: "Feed the dog"}})
	if h.sender.count() != before {
		t.Fatalf("text after cancel got a reply")
	}
	if n := len(h.store.Snapshot()["7"].Reminders); n != 0 {
		t.Fatalf("reminders = %d, want 0", n)
	}
}

func TestSchedulingFailureReply(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.sched.fail = errors.New("engine fault")
	h.say(t, 7, "/addreminder")
	h.say(t, 7, "08:30")
	if got := h.say(t, 7, "Feed the dog"); got != textScheduleFailed {
		t.Fatalf("reply = %q, want %q", got, textScheduleFailed)
	}
	if got := h.conv.Current(7).State; got != conversation.Idle {
		t.Fatalf("state = %s, want idle", got)
	}
}

func TestUnknownCommand(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	if got := h.say(t, 1, "/feed"); got != textUnknown {
		t.Fatalf("reply = %q", got)
	}
}

func TestSaveWarning(t *testing.T) {
	t.Parallel()
	err := &storage.PersistenceError{Op: "save", Err: errors.New("disk full")}
	if got := withSaveWarning("ok", err); got != "ok"+textNotSaved {
		t.Fatalf("withSaveWarning = %q", got)
	}
	if got := withSaveWarning("ok", nil); got != "ok" {
		t.Fatalf("withSaveWarning(nil) = %q", got)
	}
}

func TestMenu(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	if err := h.router.PublishMenu(context.Background()); err != nil {
		t.Fatalf("PublishMenu: %v", err)
	}
	h.sender.mu.Lock()
	menu := h.sender.menu
	h.sender.mu.Unlock()
	if len(menu) != 8 || menu[0].Command != "start" || menu[6].Command != "deletereminder" {
		t.Fatalf("menu = %+v", menu)
	}
	if got := sanitizeCommand("Delete-Reminder Now"); got != "delete_reminder_now" {
		t.Fatalf("sanitizeCommand = %q", got)
	}
}

func TestRunKeepsPerUserOrder(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	updates := make(chan kit.Update, 8)
	for _, text := range []string{"/addweight", "10", "today"} {
		updates <- kit.Update{Message: &kit.Message{ChatID: 3, FromID: 3, Text: text}}
	}
	close(updates)

	if err := h.router.Run(context.Background(), updates); err != nil {
		t.Fatalf("Run: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for h.sender.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := h.sender.last(t); got != "Successfully recorded your dog's weight: 10.0 on 2024-03-05." {
		t.Fatalf("last reply = %q", got)
	}
}
