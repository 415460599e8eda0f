package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/opengov-es/revisor/internal/model"
	"github.com/opengov-es/revisor/internal/store"
)

// RunLog records orchestrated cycles in the cycle_runs table.
type RunLog struct {
	st store.Store
}

// NewRunLog creates a RunLog backed by the given store.
func NewRunLog(st store.Store) *RunLog {
	return &RunLog{st: st}
}

// Start records the beginning of a cycle and returns the new run row.
func (l *RunLog) Start(ctx context.Context, mode string) (model.CycleRun, error) {
	run := model.CycleRun{
		ID:        uuid.New().String(),
		Mode:      mode,
		Status:    model.CycleRunRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := l.st.InsertCycleRun(ctx, run); err != nil {
		return model.CycleRun{}, eris.Wrap(err, "runlog: start cycle run")
	}
	return run, nil
}

// Finish records the cycle outcome. Failures to write the log are reported
// but must not mask the cycle result, so callers log rather than abort.
func (l *RunLog) Finish(ctx context.Context, run model.CycleRun) error {
	now := time.Now().UTC()
	run.CompletedAt = &now
	return eris.Wrapf(l.st.CompleteCycleRun(ctx, run), "runlog: finish cycle run %s", run.ID)
}

// List returns all recorded cycle runs, most recent first.
func (l *RunLog) List(ctx context.Context) ([]model.CycleRun, error) {
	runs, err := l.st.ListCycleRuns(ctx)
	return runs, eris.Wrap(err, "runlog: list cycle runs")
}
