package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/weavebot/weavebot/pkg/bit"
	"github.com/weavebot/weavebot/pkg/logger"
	"github.com/weavebot/weavebot/pkg/message"
	"github.com/weavebot/weavebot/pkg/state"
)

// Ticker drives the scheduled-Bit trigger: once a second it scans a
// Registry for Bits carrying a non-empty Cron and, when due, runs them
// through Bot.RunBit so a cron-triggered Bit chains into Next exactly
// like a message-triggered one. Grounded on memory's own autosave
// loop shape (ticker plus per-id watermark), generalized from a single
// save target to every registered Bit.
type Ticker struct {
	mu        sync.Mutex
	sched     *Scheduler
	log       *logger.Logger
	bot       state.Bot
	bits      *bit.Registry
	lastFired map[string]time.Time

	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewTicker creates a Ticker bound to bits and bot. log may be nil.
func NewTicker(bot state.Bot, bits *bit.Registry, log *logger.Logger) *Ticker {
	return &Ticker{
		sched:     New(),
		log:       log,
		bot:       bot,
		bits:      bits,
		lastFired: map[string]time.Time{},
	}
}

// Start arms the poll loop. Calling Start again first stops any
// previously running loop, matching Memory's autosave restart
// discipline.
func (t *Ticker) Start(ctx context.Context) {
	t.Stop()

	loopCtx, cancel := context.WithCancel(ctx)
	stopped := make(chan struct{})
	t.mu.Lock()
	t.cancel = cancel
	t.stopped = stopped
	t.mu.Unlock()

	go func() {
		defer close(stopped)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case now := <-ticker.C:
				t.tick(loopCtx, now)
			}
		}
	}()
}

// Stop cancels the poll loop and waits for it to exit.
func (t *Ticker) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	stopped := t.stopped
	t.cancel = nil
	t.stopped = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stopped != nil {
		<-stopped
	}
}

func (t *Ticker) tick(ctx context.Context, now time.Time) {
	for _, b := range t.bits.All() {
		if b.Cron == "" {
			continue
		}
		t.mu.Lock()
		last := t.lastFired[b.ID]
		t.mu.Unlock()

		due, err := t.sched.Due(b.Cron, last, now)
		if err != nil {
			if t.log != nil {
				t.log.WarnCF("scheduler", "invalid cron expression", map[string]interface{}{"id": b.ID, "cron": b.Cron, "error": err.Error()})
			}
			continue
		}
		if !due {
			continue
		}

		t.mu.Lock()
		t.lastFired[b.ID] = now
		t.mu.Unlock()

		msg := message.NewServer(message.NewDirectRoom(), map[string]interface{}{"cron": b.ID})
		st := state.New(msg, t.bot)
		if err := t.bot.RunBit(ctx, b.ID, st); err != nil && t.log != nil {
			t.log.ErrorCF("scheduler", "scheduled bit failed", map[string]interface{}{"id": b.ID, "error": err.Error()})
		}
	}
}
