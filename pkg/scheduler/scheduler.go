// Package scheduler answers "is this cron expression due" for the
// scheduled-Bit ticker. Grounded on the teacher's own gronx usage
// (pkg/heartbeat's interval loop generalized to cron by the teacher's
// dependency list already carrying adhocore/gronx). Memory's cron-mode
// autosave carries its own copy of the truncate-to-minute watermark
// check instead of importing this package, since this package imports
// pkg/bit and, through it, pkg/state, which imports pkg/memory.
package scheduler

import (
	"time"

	"github.com/adhocore/gronx"
)

// Scheduler evaluates cron expressions against a moving watermark so a
// fast polling loop fires a given expression at most once per matching
// minute.
type Scheduler struct {
	gron gronx.Gronx
}

// New creates a Scheduler.
func New() *Scheduler {
	return &Scheduler{gron: gronx.New()}
}

// Due reports whether expr has a tick due at now that has not already
// fired as of last. A zero last means "never fired", so the first
// matching minute always reports due. Malformed expressions are
// reported as errors, never silently treated as not due.
func (s *Scheduler) Due(expr string, last, now time.Time) (bool, error) {
	minute := now.Truncate(time.Minute)
	if !last.IsZero() && !minute.After(last.Truncate(time.Minute)) {
		return false, nil
	}
	return s.gron.IsDue(expr, now)
}
