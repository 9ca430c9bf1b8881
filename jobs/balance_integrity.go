package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/crediventas/crediventas/internal/jobs"
	"github.com/crediventas/crediventas/internal/ledger"
	"github.com/crediventas/crediventas/internal/shared"
)

// ErrAlreadyRunning is returned when another worker holds the sweep lease.
var ErrAlreadyRunning = errors.New("balance integrity: already running")

const defaultIntegrityLease = 10 * time.Minute

// BalanceReconciler recomputes and rewrites customer balances.
type BalanceReconciler interface {
	Verify(ctx context.Context, customerID uuid.UUID) (ledger.Drift, error)
	Repair(ctx context.Context, customerID uuid.UUID) (ledger.Drift, error)
}

// CustomerLister enumerates the customers to sweep.
type CustomerLister interface {
	ListCustomerIDs(ctx context.Context) ([]uuid.UUID, error)
}

// IntegrityReport summarises one sweep.
type IntegrityReport struct {
	Checked  int
	Drifted  []ledger.Drift
	Repaired int
}

// BalanceIntegrityJob checks that every stored pending balance equals pending
// sales minus payments. Locker may be nil, in which case runs are not
// serialised across workers.
type BalanceIntegrityJob struct {
	Reconciler BalanceReconciler
	Customers  CustomerLister
	Locker     *redislock.Client
	Lease      time.Duration
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

// NewBalanceIntegrityJob constructs the job handler.
func NewBalanceIntegrityJob(reconciler BalanceReconciler, customers CustomerLister, locker *redislock.Client, logger *slog.Logger, metrics *jobmetrics.Metrics) *BalanceIntegrityJob {
	return &BalanceIntegrityJob{
		Reconciler: reconciler,
		Customers:  customers,
		Locker:     locker,
		Lease:      defaultIntegrityLease,
		Logger:     logger,
		Metrics:    metrics,
	}
}

// Handle executes the integrity sweep for an Asynq task.
func (j *BalanceIntegrityJob) Handle(ctx context.Context, task *asynq.Task) error {
	var payload BalanceIntegrityPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("balance integrity payload: %v: %w", err, asynq.SkipRetry)
	}
	if err := payload.normalize(); err != nil {
		return fmt.Errorf("balance integrity scope %q: %v: %w", payload.Scope, err, asynq.SkipRetry)
	}

	_, err := j.Run(ctx, payload)
	if errors.Is(err, ErrAlreadyRunning) {
		j.log().Info("balance integrity skipped, lease held elsewhere", slog.String("scope", payload.Scope))
		return nil
	}
	return err
}

// Run performs one sweep under the integrity lease.
func (j *BalanceIntegrityJob) Run(ctx context.Context, payload BalanceIntegrityPayload) (report IntegrityReport, resultErr error) {
	if j == nil || j.Reconciler == nil || j.Customers == nil {
		return report, errors.New("balance integrity: dependencies not configured")
	}
	if err := payload.normalize(); err != nil {
		return report, ledger.Invalid("scope", "must be %q or a customer id", ScopeAll)
	}

	lock, err := j.obtain(ctx, payload.Scope)
	if err != nil {
		return report, err
	}
	if lock != nil {
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				j.log().Warn("release integrity lease", slog.Any("error", err))
			}
		}()
	}

	tracker := j.Metrics.Track(TaskBalanceIntegrity)
	defer func() {
		resultErr = tracker.End(resultErr)
		if resultErr == nil {
			j.Metrics.RecordIntegrity(len(report.Drifted), report.Repaired)
		}
	}()

	ids, err := j.resolveCustomers(ctx, payload.Scope)
	if err != nil {
		j.log().Error("resolve customers", slog.String("scope", payload.Scope), slog.Any("error", err))
		return report, err
	}

	start := time.Now()
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		drift, err := j.check(ctx, id, payload.Repair)
		if errors.Is(err, shared.ErrNotFound) && payload.Scope == ScopeAll {
			continue
		}
		if err != nil {
			j.log().Error("verify customer balance", slog.String("customer_id", id.String()), slog.Any("error", err))
			return report, err
		}
		report.Checked++
		if drift.Consistent() {
			continue
		}
		report.Drifted = append(report.Drifted, drift)
		if payload.Repair {
			report.Repaired++
		}
		j.log().Warn("customer balance drift",
			slog.String("customer_id", id.String()),
			slog.String("stored", drift.Stored.StringFixed(ledger.MoneyScale)),
			slog.String("expected", drift.Expected.StringFixed(ledger.MoneyScale)),
			slog.Bool("repaired", payload.Repair),
		)
	}

	j.log().Info("balance integrity sweep finished",
		slog.String("scope", payload.Scope),
		slog.Int("checked", report.Checked),
		slog.Int("drifted", len(report.Drifted)),
		slog.Int("repaired", report.Repaired),
		slog.Duration("duration", time.Since(start)),
	)
	return report, nil
}

func (j *BalanceIntegrityJob) check(ctx context.Context, id uuid.UUID, repair bool) (ledger.Drift, error) {
	if repair {
		return j.Reconciler.Repair(ctx, id)
	}
	return j.Reconciler.Verify(ctx, id)
}

func (j *BalanceIntegrityJob) resolveCustomers(ctx context.Context, scope string) ([]uuid.UUID, error) {
	if scope != ScopeAll {
		id, err := uuid.Parse(scope)
		if err != nil {
			return nil, err
		}
		return []uuid.UUID{id}, nil
	}
	return j.Customers.ListCustomerIDs(ctx)
}

func (j *BalanceIntegrityJob) obtain(ctx context.Context, scope string) (*redislock.Lock, error) {
	if j.Locker == nil {
		return nil, nil
	}
	lease := j.Lease
	if lease <= 0 {
		lease = defaultIntegrityLease
	}
	lock, err := j.Locker.Obtain(ctx, shared.IntegrityLockKey(scope), lease, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrAlreadyRunning
	}
	if err != nil {
		return nil, fmt.Errorf("balance integrity: obtain lease: %w", err)
	}
	return lock, nil
}

func (j *BalanceIntegrityJob) log() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
