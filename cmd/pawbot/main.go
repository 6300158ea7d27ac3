package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"pawbot/internal/app"
	logx "pawbot/pkg/logx"
)

var version = "dev"

type runContext struct {
	ctx    context.Context
	config string
}

var CLI struct {
	Version kong.VersionFlag
	Config  string `help:"Config file (JSON or YAML). Empty uses defaults and PAWBOT_* env." default:"./config.yaml" env:"PAWBOT_CONFIG"`

	Run   RunCmd   `cmd:"" help:"Run the bot." default:"1"`
	Check CheckCmd `cmd:"" help:"Validate the config and the persisted records, then exit."`
}

type RunCmd struct {
	StopTimeout time.Duration `help:"Upper bound for graceful shutdown." default:"15s"`
}

func (c *RunCmd) Run(rc *runContext) error {
	a, err := app.New(rc.config)
	if err != nil {
		return err
	}
	// Start unwinds on its own when it fails.
	if err := a.Start(rc.ctx); err != nil {
		return err
	}

	// a.Done also closes when rc.ctx ends; only an app-side cancel is fatal.
	select {
	case <-rc.ctx.Done():
	case <-a.Done():
	}
	reason := app.StopSIGTERM
	if rc.ctx.Err() == nil {
		reason = app.StopFatalError
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), c.StopTimeout)
	defer cancel()
	_ = a.Stop(stopCtx, reason)
	if reason == app.StopFatalError {
		return a.Err()
	}
	return nil
}

type CheckCmd struct{}

func (c *CheckCmd) Run(rc *runContext) error {
	rep, err := app.Check(rc.ctx, rc.config, logx.NewConsole("warn"))
	if err != nil {
		return err
	}
	fmt.Printf("users: %d\nweights: %d\nreminders: %d\ndaily jobs: %d\n",
		rep.Users, rep.Weights, rep.Reminders, rep.Jobs)
	for _, d := range rep.Duplicates {
		fmt.Printf("duplicate: user %d at %s %q (%d entries)\n", d.Recipient, d.At, d.Message, d.Count)
	}
	for _, inv := range rep.Invalid {
		fmt.Printf("invalid: user %s entry %d time %q: %v\n", inv.UserKey, inv.Index+1, inv.Time, inv.Err)
	}
	if n := len(rep.Invalid); n > 0 {
		return fmt.Errorf("%d reminder(s) cannot be scheduled", n)
	}
	return nil
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("pawbot"),
		kong.Description("Telegram bot that tracks a dog's weight and sends daily reminders."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := kctx.Run(&runContext{ctx: ctx, config: CLI.Config}); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "pawbot: %v\n", err)
		os.Exit(1)
	}
}
