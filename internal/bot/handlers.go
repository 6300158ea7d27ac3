package bot

import (
	"context"
	"errors"
	"strconv"

	"pawbot/internal/conversation"
	"pawbot/internal/reminder"
	"pawbot/internal/tracker"
	logx "pawbot/pkg/logx"
)

func (r *Router) builtins() []Command {
	return []Command{
		{Name: "start", Description: "Show the welcome message", Handle: r.handleStart},
		{Name: "help", Description: "List commands", Handle: r.handleStart},
		{Name: "addweight", Description: "Add a new weight entry", Handle: r.handleAddWeight},
		{Name: "viewweights", Description: "View all recorded weights", Handle: r.handleViewWeights},
		{Name: "addreminder", Description: "Set a new daily reminder", Handle: r.handleAddReminder},
		{Name: "listreminders", Description: "See your current reminders", Handle: r.handleListReminders},
		{Name: "deletereminder", Description: "Delete a reminder by number", Handle: r.handleDeleteReminder},
		{Name: "cancel", Description: "Cancel the current operation", Handle: r.handleCancel},
	}
}

func withSaveWarning(text string, err error) string {
	if tracker.IsPersistence(err) {
		return text + textNotSaved
	}
	return text
}

func (r *Router) handleStart(ctx context.Context, req *Request) error {
	return r.reply(ctx, req, welcomeText(req.Name))
}

func (r *Router) handleUnknown(ctx context.Context, req *Request) error {
	return r.reply(ctx, req, textUnknown)
}

func (r *Router) handleAddWeight(ctx context.Context, req *Request) error {
	if err := r.conv.Begin(req.UserID, conversation.AwaitingWeight); err != nil {
		return err
	}
	return r.reply(ctx, req, textAskWeight)
}

func (r *Router) handleViewWeights(ctx context.Context, req *Request) error {
	list := r.tracker.ListWeights(req.UserID)
	if len(list) == 0 {
		return r.reply(ctx, req, textNoWeights)
	}
	return r.reply(ctx, req, weightsText(list))
}

func (r *Router) handleAddReminder(ctx context.Context, req *Request) error {
	if err := r.conv.Begin(req.UserID, conversation.AwaitingReminderTime); err != nil {
		return err
	}
	return r.reply(ctx, req, textAskTime)
}

func (r *Router) handleListReminders(ctx context.Context, req *Request) error {
	list := r.tracker.ListReminders(req.UserID)
	if len(list) == 0 {
		return r.reply(ctx, req, textNoReminders)
	}
	return r.reply(ctx, req, remindersText(list))
}

func (r *Router) handleDeleteReminder(ctx context.Context, req *Request) error {
	if len(req.Args) == 0 {
		return r.reply(ctx, req, textDeleteUsage)
	}
	n, err := strconv.Atoi(req.Args[0])
	if err != nil {
		return r.reply(ctx, req, textDeleteNotNumber)
	}
	removed, err := r.tracker.DeleteReminder(ctx, req.UserID, n)
	var nf *tracker.NotFoundError
	switch {
	case errors.As(err, &nf):
		return r.reply(ctx, req, textDeleteRange)
	case err != nil && !tracker.IsPersistence(err):
		req.Log.Error("delete reminder failed", logx.Err(err))
		return r.reply(ctx, req, textDeleteFailed)
	}
	return r.reply(ctx, req, withSaveWarning(reminderDeletedText(removed), err))
}

func (r *Router) handleCancel(ctx context.Context, req *Request) error {
	prev := r.conv.Cancel(req.UserID)
	req.Log.Info("conversation canceled", logx.String("state", prev.String()))
	return r.reply(ctx, req, textCanceled)
}

// handleText feeds free text to the step the user is in.
func (r *Router) handleText(ctx context.Context, req *Request) error {
	sess := r.conv.Current(req.UserID)
	switch sess.State {
	case conversation.AwaitingWeight:
		return r.stepWeight(ctx, req)
	case conversation.AwaitingWeightDate:
		return r.stepWeightDate(ctx, req, sess.Draft)
	case conversation.AwaitingReminderTime:
		return r.stepReminderTime(ctx, req)
	case conversation.AwaitingReminderMessage:
		return r.stepReminderMessage(ctx, req, sess.Draft)
	default:
		req.Log.Debug("text outside a conversation ignored")
		return nil
	}
}

func (r *Router) stepWeight(ctx context.Context, req *Request) error {
	w, err := tracker.ParseWeight(req.Text)
	if err != nil {
		_ = r.conv.Transition(req.UserID, conversation.AwaitingWeight, conversation.AwaitingWeight, nil)
		return r.reply(ctx, req, textInvalidWeight)
	}
	err = r.conv.Transition(req.UserID, conversation.AwaitingWeight, conversation.AwaitingWeightDate, func(d *conversation.Draft) {
		d.Weight = w
	})
	if err != nil {
		return err
	}
	return r.reply(ctx, req, textAskDate)
}

func (r *Router) stepWeightDate(ctx context.Context, req *Request, d conversation.Draft) error {
	if d.Weight <= 0 {
		r.conv.Cancel(req.UserID)
		return r.reply(ctx, req, textWeightLost)
	}
	entry, err := r.tracker.AddWeight(ctx, req.UserID, req.Text, strconv.FormatFloat(d.Weight, 'g', -1, 64))
	if errors.Is(err, tracker.ErrInvalidDate) {
		_ = r.conv.Transition(req.UserID, conversation.AwaitingWeightDate, conversation.AwaitingWeightDate, nil)
		return r.reply(ctx, req, textInvalidDate)
	}
	r.conv.Cancel(req.UserID)
	if err != nil && !tracker.IsPersistence(err) {
		req.Log.Error("add weight failed", logx.Err(err))
		return r.reply(ctx, req, textFailed)
	}
	return r.reply(ctx, req, withSaveWarning(weightRecordedText(entry), err))
}

func (r *Router) stepReminderTime(ctx context.Context, req *Request) error {
	at, err := reminder.ParseClock(req.Text)
	if err != nil {
		_ = r.conv.Transition(req.UserID, conversation.AwaitingReminderTime, conversation.AwaitingReminderTime, nil)
		return r.reply(ctx, req, textInvalidTime)
	}
	err = r.conv.Transition(req.UserID, conversation.AwaitingReminderTime, conversation.AwaitingReminderMessage, func(d *conversation.Draft) {
		d.Time = at.String()
	})
	if err != nil {
		return err
	}
	return r.reply(ctx, req, textAskMessage)
}

func (r *Router) stepReminderMessage(ctx context.Context, req *Request, d conversation.Draft) error {
	if d.Time == "" {
		r.conv.Cancel(req.UserID)
		return r.reply(ctx, req, textReminderLost)
	}
	entry, err := r.tracker.AddReminder(ctx, req.UserID, d.Time, req.Text)
	if errors.Is(err, tracker.ErrEmptyMessage) {
		_ = r.conv.Transition(req.UserID, conversation.AwaitingReminderMessage, conversation.AwaitingReminderMessage, nil)
		return r.reply(ctx, req, textEmptyMessage)
	}
	r.conv.Cancel(req.UserID)

	var se *tracker.SchedulingError
	switch {
	case errors.Is(err, tracker.ErrDuplicateReminder):
		return r.reply(ctx, req, reminderDuplicateText(d.Time, req.Text))
	case errors.As(err, &se):
		return r.reply(ctx, req, textScheduleFailed)
	case err != nil && !tracker.IsPersistence(err):
		req.Log.Error("add reminder failed", logx.Err(err))
		return r.reply(ctx, req, textFailed)
	}
	return r.reply(ctx, req, withSaveWarning(reminderSetText(entry), err))
}
