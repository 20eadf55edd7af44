package assistant

import (
	"context"
	log "log/slog"
	"time"
)

// watchReminders moves due reminders into the notice queue. The loop
// announces them at its next idle step.
func (a *Assistant) watchReminders(ctx context.Context) {
	t := time.NewTicker(a.opt.ReminderInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			a.checkReminders(ctx, now)
		}
	}
}

func (a *Assistant) checkReminders(ctx context.Context, now time.Time) {
	due, err := a.opt.Reminders.TakeDueReminders(ctx, now)
	if err != nil {
		log.Warn("Failed to read reminders", "err", err)
		return
	}

	for _, r := range due {
		log.Info("Reminder due", "id", r.ID, "task", r.Task)
		select {
		case a.notices <- "Reminder: " + r.Task + ".":
		case <-ctx.Done():
			return
		}
	}
}

func (a *Assistant) speakNotices(ctx context.Context) {
	for {
		select {
		case n := <-a.notices:
			a.say(ctx, n)
		default:
			return
		}
	}
}
