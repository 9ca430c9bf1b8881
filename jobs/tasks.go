package jobs

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueMaintenance carries long running ledger sweeps.
	QueueMaintenance = "maintenance"
	// TaskBalanceIntegrity verifies customer balances against their movements.
	TaskBalanceIntegrity = "ledger:balance_integrity"

	// ScopeAll sweeps every customer.
	ScopeAll = "all"
)

// BalanceIntegrityPayload configures one integrity sweep. Scope is ScopeAll
// or a single customer id.
type BalanceIntegrityPayload struct {
	Scope  string `json:"scope"`
	Repair bool   `json:"repair"`
}

func (p *BalanceIntegrityPayload) normalize() error {
	p.Scope = strings.ToLower(strings.TrimSpace(p.Scope))
	if p.Scope == "" {
		p.Scope = ScopeAll
	}
	if p.Scope == ScopeAll {
		return nil
	}
	_, err := uuid.Parse(p.Scope)
	return err
}

// NewBalanceIntegrityTask constructs an Asynq task for the integrity sweep.
func NewBalanceIntegrityTask(payload BalanceIntegrityPayload) (*asynq.Task, error) {
	if err := payload.normalize(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBalanceIntegrity, body, asynq.Queue(QueueMaintenance)), nil
}
