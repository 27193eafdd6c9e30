package memory

import (
	"context"
	"time"

	"github.com/adhocore/gronx"
)

// StartAutoSave arms a periodic save loop at interval, grounded on the
// teacher's tokenRefreshLoop pattern (ticker plus ctx.Done()
// cancellation). Each tick waits for Save to finish before re-arming
// the timer, so writes never overlap. Calling StartAutoSave again
// first stops any previously running loop.
func (m *Memory) StartAutoSave(ctx context.Context, interval time.Duration) {
	m.StopAutoSave()

	loopCtx, cancel := context.WithCancel(ctx)
	stopped := make(chan struct{})
	m.mu.Lock()
	m.autoSave = true
	m.cancel = cancel
	m.stopped = stopped
	m.mu.Unlock()

	go func() {
		defer close(stopped)
		timer := time.NewTimer(interval)
		defer timer.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-timer.C:
				_ = m.Save(loopCtx)
				timer.Reset(interval)
			}
		}
	}()
}

// StartAutoSaveCron arms a cron-scheduled save loop using expr (a
// standard five-field cron expression), evaluated once per second
// with gronx; a minute that has already fired is skipped, so a save
// fires at most once per matching minute. It does not use
// pkg/scheduler, because that package imports pkg/bit, which imports
// pkg/state, which imports this package.
func (m *Memory) StartAutoSaveCron(ctx context.Context, expr string) {
	m.StopAutoSave()

	loopCtx, cancel := context.WithCancel(ctx)
	stopped := make(chan struct{})
	m.mu.Lock()
	m.autoSave = true
	m.cancel = cancel
	m.stopped = stopped
	m.mu.Unlock()

	gron := gronx.New()
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		var lastFired time.Time
		for {
			select {
			case <-loopCtx.Done():
				return
			case now := <-ticker.C:
				if !lastFired.IsZero() && !now.Truncate(time.Minute).After(lastFired.Truncate(time.Minute)) {
					continue
				}
				due, err := gron.IsDue(expr, now)
				if err == nil && due {
					lastFired = now
					_ = m.Save(loopCtx)
				}
			}
		}
	}()
}

// StopAutoSave cancels any running autosave loop and waits for it to
// exit, so callers can rely on no further saves happening once it
// returns.
func (m *Memory) StopAutoSave() {
	m.mu.Lock()
	cancel := m.cancel
	stopped := m.stopped
	m.autoSave = false
	m.cancel = nil
	m.stopped = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stopped != nil {
		<-stopped
	}
}

// AutoSaveEnabled reports whether a save loop is currently armed.
func (m *Memory) AutoSaveEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.autoSave
}
