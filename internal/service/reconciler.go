package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/explore-with-me/internal/capacity"
	"github.com/Shivanand-hulikatti/explore-with-me/internal/repository"
)

// Repair describes one corrected confirmed counter.
type Repair struct {
	EventID string `json:"eventId"`
	Stored  int    `json:"stored"`
	Actual  int    `json:"actual"`
}

// ReconcileReport summarises one reconciliation pass.
type ReconcileReport struct {
	Checked  int      `json:"checked"`
	Repaired []Repair `json:"repaired"`
}

// Reconciler realigns confirmed counters with the CONFIRMED requests they
// count. Candidates are re-checked under the event lock before anything is
// written.
type Reconciler struct {
	store   repository.Store
	tracker *capacity.Tracker
	log     zerolog.Logger
}

// NewReconciler constructs a Reconciler.
func NewReconciler(store repository.Store, tracker *capacity.Tracker, log zerolog.Logger) *Reconciler {
	return &Reconciler{store: store, tracker: tracker, log: log}
}

// Run performs one pass. A busy event is skipped and picked up by the next
// pass.
func (r *Reconciler) Run(ctx context.Context) (ReconcileReport, error) {
	const op = "reconcile confirmed counts"
	ids, err := r.store.EventIDsWithCountDrift(ctx)
	if err != nil {
		return ReconcileReport{}, wrap(op, err)
	}

	report := ReconcileReport{Checked: len(ids), Repaired: []Repair{}}
	for _, id := range ids {
		var (
			rep     Repair
			changed bool
		)
		err := r.store.WithEventLock(ctx, id, func(tx repository.EventTx) error {
			prev, ok, err := r.tracker.Resync(ctx, tx)
			if err != nil {
				return err
			}
			changed = ok
			rep = Repair{EventID: id, Stored: prev, Actual: tx.Event().ConfirmedCount}
			return nil
		})
		switch {
		case errors.Is(err, repository.ErrLockTimeout):
			r.log.Warn().Str("event_id", id).Msg("event busy, skipping reconciliation")
			continue
		case errors.Is(err, repository.ErrNotFound):
			continue
		case err != nil:
			return report, wrap(op, err)
		}
		if changed {
			report.Repaired = append(report.Repaired, rep)
		}
	}

	r.log.Info().Int("checked", report.Checked).Int("repaired", len(report.Repaired)).Msg("reconciliation finished")
	return report, nil
}
