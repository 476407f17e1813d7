package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/printforge/printforge-backend/pkg/logger"
)

const defaultRematchLimit = 100

// PendingRematchJobParams configure the pending payment rematch job.
type PendingRematchJobParams struct {
	Logger    *logger.Logger
	Payments  pendingRematcher
	OlderThan time.Duration
	Limit     int
}

type pendingRematcher interface {
	RematchPending(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// NewPendingRematchJob builds the job that retries payment events which
// arrived before their order existed.
func NewPendingRematchJob(params PendingRematchJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	if params.OlderThan <= 0 {
		return nil, fmt.Errorf("older-than window required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultRematchLimit
	}
	return &pendingRematchJob{
		logg:      params.Logger,
		payments:  params.Payments,
		olderThan: params.OlderThan,
		limit:     limit,
	}, nil
}

type pendingRematchJob struct {
	logg      *logger.Logger
	payments  pendingRematcher
	olderThan time.Duration
	limit     int
}

func (j *pendingRematchJob) Name() string { return "pending-rematch" }

func (j *pendingRematchJob) Run(ctx context.Context) error {
	matched, err := j.payments.RematchPending(ctx, j.olderThan, j.limit)
	if err != nil {
		return fmt.Errorf("rematch pending payment events: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"older_than": j.olderThan.String(),
		"matched":    matched,
	})
	j.logg.Info(logCtx, "pending payment rematch complete")
	return nil
}
