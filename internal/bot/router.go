// Package bot routes chat updates to commands and conversation steps.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"pawbot/internal/conversation"
	rtsup "pawbot/internal/runtime/supervisor"
	"pawbot/internal/storage"
	kit "pawbot/internal/transport"
	logx "pawbot/pkg/logx"
)

// Tracker is the mutation surface the bot drives.
type Tracker interface {
	AddWeight(ctx context.Context, user int64, date, weightText string) (storage.WeightEntry, error)
	AddReminder(ctx context.Context, user int64, hhmm, message string) (storage.ReminderEntry, error)
	DeleteReminder(ctx context.Context, user int64, index int) (storage.ReminderEntry, error)
	ListReminders(user int64) []storage.ReminderEntry
	ListWeights(user int64) []storage.WeightEntry
}

type Command struct {
	Name        string
	Description string
	Handle      HandlerFunc
}

type Request struct {
	Update  kit.Update
	Chat    kit.ChatTarget
	UserID  int64
	Name    string
	Command string
	Args    []string
	Text    string
	ReqID   string
	Log     logx.Logger
}

type Deps struct {
	Sender  kit.Sender
	Tracker Tracker
	Conv    *conversation.Manager
	Timeout time.Duration // per update
	Workers int
	Log     logx.Logger
}

type Router struct {
	sender  kit.Sender
	tracker Tracker
	conv    *conversation.Manager
	timeout time.Duration
	workers int
	log     logx.Logger

	cmds  map[string]Command
	order []Command
}

func New(d Deps) *Router {
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	if d.Conv == nil {
		d.Conv = conversation.New(0, nil)
	}
	if d.Timeout <= 0 {
		d.Timeout = 30 * time.Second
	}
	if d.Workers <= 0 {
		d.Workers = 4
	}
	r := &Router{
		sender:  d.Sender,
		tracker: d.Tracker,
		conv:    d.Conv,
		timeout: d.Timeout,
		workers: d.Workers,
		log:     d.Log.With(logx.String("comp", "bot.router")),
		cmds:    map[string]Command{},
	}
	r.register(r.builtins()...)
	return r
}

func (r *Router) register(cmds ...Command) {
	for _, c := range cmds {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if name == "" || c.Handle == nil {
			continue
		}
		c.Name = name
		if _, dup := r.cmds[name]; !dup {
			r.order = append(r.order, c)
		}
		r.cmds[name] = c
	}
}

// Menu is the command list published to the chat client.
func (r *Router) Menu() []kit.BotCommand { return buildMenu(r.order) }

// PublishMenu pushes the menu when the sender supports it.
func (r *Router) PublishMenu(ctx context.Context) error {
	up, ok := r.sender.(kit.CommandMenuUpdater)
	if !ok {
		return nil
	}
	return up.UpdateMenuCommands(ctx, r.Menu())
}

// Handle processes one update synchronously.
func (r *Router) Handle(ctx context.Context, up kit.Update) {
	msg := up.Message
	if msg == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)
	user := userOf(msg)
	rid := uuid.NewString()[:8]

	req := &Request{
		Update: up,
		Chat:   kit.ChatTarget{ChatID: msg.ChatID},
		UserID: user,
		Name:   msg.FromName,
		Text:   text,
		ReqID:  rid,
	}

	var h HandlerFunc
	if strings.HasPrefix(text, "/") {
		word, args := splitCommand(text)
		cmd, ok := r.cmds[word]
		if ok {
			req.Command = cmd.Name
			req.Args = args
			h = cmd.Handle
		} else {
			req.Command = word
			h = r.handleUnknown
		}
	} else {
		req.Command = "text"
		h = r.handleText
	}
	req.Log = r.log.With(
		logx.String("rid", rid),
		logx.Int64("chat_id", msg.ChatID),
		logx.Int64("from_id", user),
		logx.String("cmd", req.Command),
	)

	final := Chain(h,
		MWPanicRecover(r.log),
		MWRequestLog(r.log),
		MWTimeout(r.timeout),
	)
	_ = final(ctx, req)
}

// Run dispatches updates until ctx ends or updates is closed. Updates of one
// user are handled in arrival order by the same shard.
func (r *Router) Run(ctx context.Context, updates <-chan kit.Update) error {
	sup := rtsup.New(ctx,
		rtsup.WithLogger(r.log),
		rtsup.WithCancelOnError(false),
	)
	shards := make([]chan kit.Update, r.workers)
	for i := range shards {
		ch := make(chan kit.Update, 64)
		shards[i] = ch
		sup.GoRestart(fmt.Sprintf("shard.%d", i), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case up, ok := <-ch:
					if !ok {
						return nil
					}
					r.Handle(c, up)
				}
			}
		},
			rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second),
			rtsup.WithPublishFirstError(true),
			rtsup.WithStopOnCleanExit(true),
		)
	}
	r.log.Info("dispatcher started", logx.Int("shards", len(shards)))

	// Closing the shards lets workers finish what is queued; the deadline
	// bounds how long that may take.
	defer func() {
		for _, ch := range shards {
			close(ch)
		}
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := sup.Wait(wctx); err != nil {
			r.log.Warn("dispatcher stop timed out", logx.Err(err))
		}
		cancel()
		sup.Cancel()
		r.log.Info("dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			if up.Message == nil {
				continue
			}
			ch := shards[shardOf(userOf(up.Message), len(shards))]
			select {
			case ch <- up:
			default:
				r.log.Warn("shard full, update rejected", logx.Int64("from_id", userOf(up.Message)))
				_, _ = r.sender.SendText(ctx, kit.ChatTarget{ChatID: up.Message.ChatID}, textBusy, nil)
			}
		}
	}
}

func userOf(m *kit.Message) int64 {
	if m.FromID != 0 {
		return m.FromID
	}
	return m.ChatID
}

func shardOf(user int64, n int) int {
	return int(uint64(user) % uint64(n))
}

// splitCommand returns the lower-cased command word without the leading
// slash or @botname suffix, and the remaining fields.
func splitCommand(text string) (string, []string) {
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return "", nil
	}
	word := strings.TrimPrefix(parts[0], "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	return strings.ToLower(word), parts[1:]
}

func (r *Router) reply(ctx context.Context, req *Request, text string) error {
	_, err := r.sender.SendText(ctx, req.Chat, text, &kit.SendOptions{DisablePreview: true})
	return err
}
