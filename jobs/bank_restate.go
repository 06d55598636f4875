package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/ak-rocksdev/hyperbiz-core/internal/jobs"
)

// BankRestater re-derives running balances for a bank account under the
// per-account lock.
type BankRestater interface {
	RestateAccount(ctx context.Context, accountID int64) error
}

// NewBankRestateHandler builds the handler for TaskBankRestate.
func NewBankRestateHandler(logger *slog.Logger, restater BankRestater, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("bank_restate")

		var payload BankRestatePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			_ = tracker.End(err)
			return asynq.SkipRetry
		}
		if payload.BankAccountID == 0 {
			_ = tracker.End(nil)
			return asynq.SkipRetry
		}

		if err := restater.RestateAccount(ctx, payload.BankAccountID); err != nil {
			logger.Error("bank restatement failed",
				slog.Int64("bank_account_id", payload.BankAccountID),
				slog.Any("error", err))
			return tracker.End(err)
		}
		return tracker.End(nil)
	}
}
