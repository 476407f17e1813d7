package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/printforge/printforge-backend/pkg/logger"
)

// OrphanFlagJobParams configure the orphaned payment event job.
type OrphanFlagJobParams struct {
	Logger    *logger.Logger
	Payments  orphanMarker
	OrphanAge time.Duration
}

type orphanMarker interface {
	MarkOrphans(ctx context.Context, olderThan time.Duration) (int64, error)
}

// NewOrphanFlagJob builds the job that flags payment events which never
// matched an order.
func NewOrphanFlagJob(params OrphanFlagJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	if params.OrphanAge <= 0 {
		return nil, fmt.Errorf("orphan age required")
	}
	return &orphanFlagJob{
		logg:      params.Logger,
		payments:  params.Payments,
		orphanAge: params.OrphanAge,
	}, nil
}

type orphanFlagJob struct {
	logg      *logger.Logger
	payments  orphanMarker
	orphanAge time.Duration
}

func (j *orphanFlagJob) Name() string { return "orphan-flag" }

func (j *orphanFlagJob) Run(ctx context.Context) error {
	flagged, err := j.payments.MarkOrphans(ctx, j.orphanAge)
	if err != nil {
		return fmt.Errorf("mark orphaned payment events: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"orphan_age": j.orphanAge.String(),
		"flagged":    flagged,
	})
	j.logg.Info(logCtx, "orphan flag pass complete")
	return nil
}
