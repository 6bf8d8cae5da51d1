package engine

import (
	"time"

	"github.com/eventpass/backend/internal/models"
)

// activityTracker records each identity's last gated action.
type activityTracker struct {
	last map[models.Identity]time.Time
}

func newActivityTracker() activityTracker {
	return activityTracker{last: make(map[models.Identity]time.Time)}
}

// canAct is true when id has no record or cooldown has fully elapsed.
func (a *activityTracker) canAct(id models.Identity, now time.Time, cooldown time.Duration) bool {
	last, ok := a.last[id]
	if !ok {
		return true
	}
	return now.Sub(last) >= cooldown
}

// readyAt returns when id may act again; zero if it already can.
func (a *activityTracker) readyAt(id models.Identity, cooldown time.Duration) time.Time {
	last, ok := a.last[id]
	if !ok {
		return time.Time{}
	}
	return last.Add(cooldown)
}

func (a *activityTracker) record(id models.Identity, now time.Time) {
	a.last[id] = now
}
