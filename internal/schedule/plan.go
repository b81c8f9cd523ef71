// Package schedule computes checkpoint plans for tasks.
//
// Planning is a pure function of the stored task fields: recomputing the plan
// for the same task always yields identical instants, which is what makes it
// possible to rebuild all timers from storage after a process restart.
package schedule

import (
	"time"

	"github.com/slok/deadliner/internal/model"
)

// Fractions of the total task duration at which checkpoints fire.
const (
	midwayFraction = 0.5
	lateFraction   = 0.9
)

// Plan returns the full ordered checkpoint schedule for a task.
//
// Tasks with checkpoints enabled get two intermediate progress checks at 50%
// and 90% of the duration plus the final completion check at the deadline.
// Otherwise only the final check exists.
func Plan(t model.Task) []model.Checkpoint {
	if !t.CheckpointsEnabled {
		return []model.Checkpoint{
			{TaskID: t.ID, Kind: model.CheckpointKindFinal, FiresAt: t.Deadline},
		}
	}

	return []model.Checkpoint{
		{TaskID: t.ID, Kind: model.CheckpointKindMidway, FiresAt: at(t, midwayFraction)},
		{TaskID: t.ID, Kind: model.CheckpointKindLate, FiresAt: at(t, lateFraction)},
		{TaskID: t.ID, Kind: model.CheckpointKindFinal, FiresAt: t.Deadline},
	}
}

// Upcoming returns the checkpoints of the plan strictly in the future of now.
//
// A task already past its deadline gets an empty result: checkpoints are
// never fired late at scheduling time, late firing is a recovery-only
// behavior decided by the caller.
func Upcoming(t model.Task, now time.Time) []model.Checkpoint {
	if !t.Deadline.After(now) {
		return nil
	}

	var cps []model.Checkpoint
	for _, cp := range Plan(t) {
		if cp.FiresAt.After(now) {
			cps = append(cps, cp)
		}
	}

	return cps
}

func at(t model.Task, fraction float64) time.Time {
	total := t.Deadline.Sub(t.CreatedAt)
	return t.CreatedAt.Add(time.Duration(float64(total) * fraction))
}
