package reconcile

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/opengov-es/revisor/internal/config"
	"github.com/opengov-es/revisor/internal/model"
	"github.com/opengov-es/revisor/internal/store"
)

// Process exit codes shared by the orchestrator command family.
const (
	ExitOK               = 0
	ExitUpstreamFailed   = 1
	ExitMissingInput     = 2
	ExitGateNotSatisfied = 4
)

// GateMode controls whether a stage's ok status is required to proceed.
type GateMode int

const (
	// GateLenient proceeds past a degraded stage, applying whatever rows
	// are individually ready.
	GateLenient GateMode = iota
	// GateStrict refuses to proceed unless the gated stage reports ok.
	GateStrict
)

func (m GateMode) String() string {
	if m == GateStrict {
		return "strict"
	}
	return "lenient"
}

// OutcomeKind tags what the apply stage ultimately did.
type OutcomeKind string

const (
	OutcomeApplied OutcomeKind = "applied"
	OutcomeSkipped OutcomeKind = "skipped"
	OutcomeFailed  OutcomeKind = "failed"
)

// Outcome is the tagged apply-stage result. Exactly one of the payload
// fields is meaningful for each kind.
type Outcome struct {
	Kind           OutcomeKind  `json:"kind"`
	SkipReason     string       `json:"skip_reason,omitempty"`
	UpstreamStatus model.Health `json:"upstream_status,omitempty"`
	Apply          *ApplyReport `json:"apply,omitempty"`
}

// CycleOptions configures one orchestrated reconciliation cycle.
type CycleOptions struct {
	// Readiness gates the upsert engine on the validator's status.
	Readiness GateMode
}

// CycleTotals summarizes the cycle for the report envelope.
type CycleTotals struct {
	RowsTotal    int `json:"rows_total"`
	RowsReady    int `json:"rows_ready"`
	RowsBlocked  int `json:"rows_blocked"`
	RowsInserted int `json:"rows_inserted"`
	RowsUpdated  int `json:"rows_updated"`
}

// CycleResult is the full cycle report: validate → gate → apply →
// re-report, with before/after coverage snapshots always present so callers
// can diff state even on a skip.
type CycleResult struct {
	RunID       string            `json:"run_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Mode        string            `json:"mode"`
	Status      model.Health      `json:"status"`
	Totals      CycleTotals       `json:"totals"`
	Checks      map[string]bool   `json:"checks"`
	Before      *CoverageReport   `json:"before"`
	Validation  *ValidationReport `json:"validation"`
	Outcome     Outcome           `json:"outcome"`
	After       *CoverageReport   `json:"after"`
	ExitCode    int               `json:"exit_code"`
}

// Cycle runs one reconciliation cycle over a filled-in apply batch. Stages
// never retry; a failing stage is reported with its own status embedded in
// the outcome, never summarized away.
func Cycle(ctx context.Context, st store.Store, cfg config.ReconcileConfig, rows []model.ApplyRow, opts CycleOptions) (*CycleResult, error) {
	log := zap.L().With(zap.String("component", "reconcile.cycle"))
	runLog := NewRunLog(st)

	run, err := runLog.Start(ctx, opts.Readiness.String())
	if err != nil {
		return nil, err
	}

	result := &CycleResult{
		RunID:       run.ID,
		GeneratedAt: time.Now().UTC(),
		Mode:        opts.Readiness.String(),
		Checks:      map[string]bool{},
	}
	result.Totals.RowsTotal = len(rows)

	result.Before, err = Coverage(ctx, st)
	if err != nil {
		return nil, eris.Wrap(err, "cycle: before snapshot")
	}

	catalog, err := store.LoadCatalog(ctx, st)
	if err != nil {
		return nil, eris.Wrap(err, "cycle: load catalog")
	}

	result.Validation = Validate(rows, catalog, cfg)
	result.Totals.RowsReady = result.Validation.Totals.RowsReady
	result.Totals.RowsBlocked = result.Validation.Totals.RowsBlocked
	run.ValidationStatus = result.Validation.Status

	switch {
	case result.Validation.Status == model.HealthFailed:
		// Empty or unreadable batch: the upstream stage failed outright.
		result.Outcome = Outcome{Kind: OutcomeFailed, UpstreamStatus: result.Validation.Status}
		result.Status = model.HealthFailed
		result.ExitCode = ExitUpstreamFailed
		run.Status = model.CycleRunFailed

	case opts.Readiness == GateStrict && result.Validation.Status != model.HealthOK:
		result.Outcome = Outcome{
			Kind:           OutcomeSkipped,
			SkipReason:     "strict-readiness: validation status is " + string(result.Validation.Status),
			UpstreamStatus: result.Validation.Status,
		}
		result.Status = model.HealthDegraded
		result.ExitCode = ExitGateNotSatisfied
		run.Status = model.CycleRunSkipped
		run.SkipReason = result.Outcome.SkipReason

	default:
		ready := result.Validation.ReadyRows()
		apply, applyErr := Apply(ctx, st, ready, time.Now().UTC())
		run.ApplyStatus = apply.Status
		if applyErr != nil {
			result.Outcome = Outcome{Kind: OutcomeFailed, UpstreamStatus: apply.Status, Apply: apply}
			result.Status = model.HealthFailed
			result.ExitCode = ExitUpstreamFailed
			run.Status = model.CycleRunFailed
		} else {
			result.Outcome = Outcome{Kind: OutcomeApplied, Apply: apply}
			result.Totals.RowsInserted = apply.Totals.RowsInserted
			result.Totals.RowsUpdated = apply.Totals.RowsUpdated
			run.Status = model.CycleRunComplete
			run.RowsInserted = apply.Totals.RowsInserted
			run.RowsUpdated = apply.Totals.RowsUpdated
			if result.Validation.Status == model.HealthOK {
				result.Status = model.HealthOK
				result.ExitCode = ExitOK
			} else {
				// Lenient mode applied the ready subset.
				result.Status = model.HealthDegraded
				result.ExitCode = ExitOK
			}
		}
	}

	result.After, err = Coverage(ctx, st)
	if err != nil {
		return nil, eris.Wrap(err, "cycle: after snapshot")
	}

	result.Checks["readiness_gate_passed"] = result.Outcome.Kind != OutcomeSkipped
	result.Checks["apply_committed"] = result.Outcome.Kind == OutcomeApplied
	result.Checks["all_rows_ready"] = result.Validation.Checks["all_rows_ready"]

	if err := runLog.Finish(ctx, run); err != nil {
		log.Error("cycle: record run outcome", zap.Error(err))
	}

	log.Info("cycle complete",
		zap.String("run_id", run.ID),
		zap.String("outcome", string(result.Outcome.Kind)),
		zap.Int("inserted", result.Totals.RowsInserted),
		zap.Int("updated", result.Totals.RowsUpdated),
		zap.Int("exit_code", result.ExitCode),
	)
	return result, nil
}
