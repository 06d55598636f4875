package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/ak-rocksdev/hyperbiz-core/internal/aging"
	jobmetrics "github.com/ak-rocksdev/hyperbiz-core/internal/jobs"
)

// AgingRecalculator is the slice of the aging engine the job invokes.
type AgingRecalculator interface {
	RecalculateAll(ctx context.Context, side aging.Side, currency string) error
}

// NewAgingRecalcHandler builds the handler for TaskAgingRecalc. A payload
// without a side fans out to both sides, which is what the cron schedule
// enqueues.
func NewAgingRecalcHandler(logger *slog.Logger, recalc AgingRecalculator, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("aging_recalc")

		var payload AgingRecalcPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			_ = tracker.End(err)
			return asynq.SkipRetry
		}
		if payload.Currency == "" {
			_ = tracker.End(nil)
			return asynq.SkipRetry
		}

		sides := []aging.Side{aging.SideReceivable, aging.SidePayable}
		if payload.Side != "" {
			sides = []aging.Side{aging.Side(payload.Side)}
		}
		for _, side := range sides {
			if err := recalc.RecalculateAll(ctx, side, payload.Currency); err != nil {
				logger.Error("aging recalculation failed",
					slog.String("side", string(side)),
					slog.String("currency", payload.Currency),
					slog.Any("error", err))
				return tracker.End(err)
			}
		}
		return tracker.End(nil)
	}
}
