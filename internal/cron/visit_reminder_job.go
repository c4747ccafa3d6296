package cron

import (
	"context"
	"errors"
	"time"

	"github.com/homevia/homevia-backend/pkg/logger"
)

type visitReminder interface {
	SendDueReminders(ctx context.Context, now time.Time) (int, error)
}

// VisitReminderJob notifies requesters roughly a day ahead of their
// approved visit slot.
type VisitReminderJob struct {
	visits visitReminder
	logg   *logger.Logger
}

func NewVisitReminderJob(visits visitReminder, logg *logger.Logger) (*VisitReminderJob, error) {
	if visits == nil {
		return nil, errors.New("visits service required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &VisitReminderJob{visits: visits, logg: logg}, nil
}

func (j *VisitReminderJob) Name() string { return "visit-reminder" }

func (j *VisitReminderJob) Run(ctx context.Context) error {
	sent, err := j.visits.SendDueReminders(ctx, time.Now().UTC())
	logCtx := j.logg.WithField(ctx, "sent", sent)
	if err != nil {
		j.logg.Error(logCtx, "visit reminder sweep finished with errors", err)
		return err
	}
	j.logg.Info(logCtx, "visit reminder sweep finished")
	return nil
}
