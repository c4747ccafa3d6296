package cron

import (
	"context"
	"errors"
	"time"

	"github.com/homevia/homevia-backend/pkg/logger"
)

type visitExpirer interface {
	ExpireStale(ctx context.Context, now time.Time) (int, error)
}

// VisitExpiryJob sweeps pending visits whose expiry date has passed.
type VisitExpiryJob struct {
	visits visitExpirer
	logg   *logger.Logger
}

func NewVisitExpiryJob(visits visitExpirer, logg *logger.Logger) (*VisitExpiryJob, error) {
	if visits == nil {
		return nil, errors.New("visits service required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &VisitExpiryJob{visits: visits, logg: logg}, nil
}

func (j *VisitExpiryJob) Name() string { return "visit-expiry" }

func (j *VisitExpiryJob) Run(ctx context.Context) error {
	expired, err := j.visits.ExpireStale(ctx, time.Now().UTC())
	logCtx := j.logg.WithField(ctx, "expired", expired)
	if err != nil {
		// the batch commits what it could; surface the per-row failures
		j.logg.Error(logCtx, "visit expiry sweep finished with errors", err)
		return err
	}
	j.logg.Info(logCtx, "visit expiry sweep finished")
	return nil
}
