// Package jobs defines the background task surface: task constructors,
// handlers, and the asynq worker wrapper that runs them.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAgingRecalc rebuilds AR/AP balance snapshots for one currency side.
	TaskAgingRecalc = "aging:recalculate"
	// TaskBankRestate re-derives the running-balance chain of a bank account.
	TaskBankRestate = "bank:restate"
)

// AgingRecalcPayload selects the side and currency to recalculate.
type AgingRecalcPayload struct {
	Side     string `json:"side"`
	Currency string `json:"currency"`
}

// NewAgingRecalcTask constructs an aging recalculation task.
func NewAgingRecalcTask(payload AgingRecalcPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAgingRecalc, data), nil
}

// BankRestatePayload names the account whose balances need re-deriving.
type BankRestatePayload struct {
	BankAccountID int64 `json:"bank_account_id"`
}

// NewBankRestateTask constructs a bank restatement task.
func NewBankRestateTask(payload BankRestatePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBankRestate, data), nil
}
