package app

import (
	"context"
	"errors"

	"pawbot/internal/config"
	"pawbot/internal/reminder"
	"pawbot/internal/storage"
	logx "pawbot/pkg/logx"
)

// CheckReport summarises persisted data without starting the bot.
type CheckReport struct {
	Users      int
	Weights    int
	Reminders  int
	Jobs       int
	Invalid    []reminder.Invalid
	Duplicates []reminder.Job
}

// Check validates the config at cfgPath and inspects the records it points
// at. Unlike startup, unreadable data is an error here.
func Check(ctx context.Context, cfgPath string, log logx.Logger) (CheckReport, error) {
	var rep CheckReport
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg, err := config.NewManager(cfgPath).Load()
	if err != nil {
		return rep, err
	}
	backend, err := storage.Open(mapStorage(cfg), log)
	if err != nil {
		return rep, err
	}
	defer backend.Close()

	recs, err := backend.Load(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		recs = storage.Records{}
	case err != nil:
		return rep, err
	}

	reg := reminder.Build(recs, log)
	rep.Users = len(recs)
	for _, u := range recs {
		rep.Weights += len(u.Weights)
		rep.Reminders += len(u.Reminders)
	}
	rep.Jobs = len(reg.Jobs())
	rep.Invalid = reg.Invalid()
	rep.Duplicates = reg.Duplicates()
	return rep, nil
}
