// Package lifecycle implements the process-wide state machine (C11):
// waiting -> loading -> loaded -> starting -> started -> shutdown,
// plus a re-entrant paused transition. Grounded on the teacher's own
// stopChan/mutex shutdown discipline (pkg/heartbeat's
// hs.stopChan-gated service loop) generalized into a full FSM with
// event notifications so a concurrent shutdown() can await an
// in-flight load()/start() rather than racing it.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/weavebot/weavebot/adapters"
	"github.com/weavebot/weavebot/pkg/adapter"
	"github.com/weavebot/weavebot/pkg/bit"
	"github.com/weavebot/weavebot/pkg/botctx"
	"github.com/weavebot/weavebot/pkg/config"
	"github.com/weavebot/weavebot/pkg/gateway"
	"github.com/weavebot/weavebot/pkg/middleware"
	"github.com/weavebot/weavebot/pkg/scene"
	"github.com/weavebot/weavebot/pkg/scheduler"
)

// Status is one state in the lifecycle FSM.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusLoading  Status = "loading"
	StatusLoaded   Status = "loaded"
	StatusStarting Status = "starting"
	StatusStarted  Status = "started"
	StatusShutdown Status = "shutdown"
	StatusPaused   Status = "paused"
)

// Controller drives the FSM and owns the single botctx.Context created
// during Load, per §4.12 ("exactly one botctx.Context exists per
// running bot process; it is created by lifecycle.Controller.Load").
type Controller struct {
	mu     sync.Mutex
	status Status

	cfg *config.Config
	ctx *botctx.Context

	bitTicker *scheduler.Ticker

	// waiters are notified (closed) on every status transition, so a
	// concurrent call can block on "wait until no longer loading" etc.
	waiters map[Status][]chan struct{}
}

// New creates a Controller in the waiting state.
func New(cfg *config.Config) *Controller {
	return &Controller{status: StatusWaiting, cfg: cfg, waiters: map[Status][]chan struct{}{}}
}

// Status reports the current FSM state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Context returns the bundled botctx.Context, valid from loaded
// onward; nil before the first successful Load.
func (c *Controller) Context() *botctx.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

func (c *Controller) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	waiters := c.waiters[s]
	delete(c.waiters, s)
	c.mu.Unlock()
	for _, w := range waiters {
		close(w)
	}
}

// awaitStatus blocks until the controller reaches s, or ctx is done.
// Callers must not hold c.mu.
func (c *Controller) awaitStatus(ctx context.Context, s Status) error {
	c.mu.Lock()
	if c.status == s {
		c.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	c.waiters[s] = append(c.waiters[s], ch)
	c.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Load wires middleware, the global Path, the Bit registry, and the
// Adapter registry into a fresh botctx.Context, transitioning
// waiting -> loading -> loaded. A failure transitions to shutdown(1)
// per §7's "lifecycle load/start failures trigger shutdown(1)".
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.status != StatusWaiting {
		status := c.status
		c.mu.Unlock()
		return fmt.Errorf("lifecycle: load: invalid transition from %s", status)
	}
	c.mu.Unlock()
	c.setStatus(StatusLoading)

	bc, err := botctx.New(c.cfg)
	if err != nil {
		c.shutdownAfterFailure(ctx)
		return fmt.Errorf("lifecycle: load: %w", err)
	}

	adapters.RegisterBuiltins(bc.Adapters)

	botInfo := adapter.BotInfo{
		Name:    bc.Config.Name,
		Alias:   bc.Config.Alias,
		Config:  bc.Config,
		Log:     bc.Log,
		Receive: gateway.Receive(bc),
	}

	messageAdapter := c.cfg.MessageAdapter
	if messageAdapter == "" {
		messageAdapter = "shell"
	}
	if err := bc.Adapters.LoadMessage(messageAdapter, botInfo); err != nil {
		c.shutdownAfterFailure(ctx)
		return fmt.Errorf("lifecycle: load: message adapter: %w", err)
	}
	if c.cfg.NLUAdapter != "" {
		if err := bc.Adapters.LoadNLU(c.cfg.NLUAdapter, botInfo); err != nil {
			c.shutdownAfterFailure(ctx)
			return fmt.Errorf("lifecycle: load: nlu adapter: %w", err)
		}
	}
	if c.cfg.StorageAdapter != "" {
		if err := bc.Adapters.LoadStorage(c.cfg.StorageAdapter, botInfo); err != nil {
			c.shutdownAfterFailure(ctx)
			return fmt.Errorf("lifecycle: load: storage adapter: %w", err)
		}
	}

	if c.cfg.BitManifest != "" {
		bits, err := bit.LoadManifest(c.cfg.BitManifest)
		if err != nil {
			c.shutdownAfterFailure(ctx)
			return fmt.Errorf("lifecycle: load: bit manifest: %w", err)
		}
		for _, b := range bits {
			if err := bc.Bits.Register(b); err != nil {
				c.shutdownAfterFailure(ctx)
				return fmt.Errorf("lifecycle: load: register bit %q: %w", b.ID, err)
			}
		}
	}

	c.mu.Lock()
	c.ctx = bc
	c.mu.Unlock()
	c.setStatus(StatusLoaded)
	return nil
}

// Start starts the adapter registry and memory autosave, transitioning
// loaded -> starting -> started.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.status != StatusLoaded {
		status := c.status
		c.mu.Unlock()
		return fmt.Errorf("lifecycle: start: invalid transition from %s", status)
	}
	bc := c.ctx
	c.mu.Unlock()
	c.setStatus(StatusStarting)

	if err := bc.Adapters.StartAll(ctx); err != nil {
		c.shutdownAfterFailure(ctx)
		return fmt.Errorf("lifecycle: start: %w", err)
	}
	if store := bc.Adapters.Storage(); store != nil {
		alreadyAttached := bc.Memory().HasStorage()
		if !alreadyAttached {
			bc.AttachStorage(store)
			if err := bc.Memory().Load(ctx); err != nil {
				bc.Logger().ErrorCF("lifecycle", "memory load failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}

	if c.cfg.AutoSave {
		if c.cfg.SaveCron != "" {
			bc.Memory().StartAutoSaveCron(ctx, c.cfg.SaveCron)
		} else {
			bc.Memory().StartAutoSave(ctx, time.Duration(c.cfg.SaveIntervalMS)*time.Millisecond)
		}
	}

	c.mu.Lock()
	c.bitTicker = scheduler.NewTicker(bc, bc.Bits, bc.Log)
	ticker := c.bitTicker
	c.mu.Unlock()
	ticker.Start(ctx)

	c.setStatus(StatusStarted)
	return nil
}

// Shutdown reverses Start/Load in LIFO order: adapters shut down, then
// a final memory save. If shutdown is called while load/start is still
// in flight, it first awaits the loaded/started event so the
// transition stays atomic with respect to the caller, per §4.9's
// "atomic shutdown-awaits-in-flight-loading/starting" rule. A failed
// shutdown is logged, not re-thrown, since the process must still
// exit.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	status := c.status
	c.mu.Unlock()

	switch status {
	case StatusLoading:
		if err := c.awaitStatus(ctx, StatusLoaded); err != nil {
			return err
		}
	case StatusStarting:
		if err := c.awaitStatus(ctx, StatusStarted); err != nil {
			return err
		}
	case StatusShutdown:
		return nil
	case StatusWaiting:
		c.setStatus(StatusShutdown)
		return nil
	}

	c.mu.Lock()
	bc := c.ctx
	if c.bitTicker != nil {
		c.bitTicker.Stop()
		c.bitTicker = nil
	}
	c.mu.Unlock()

	var err error
	if bc != nil {
		bc.Memory().StopAutoSave()
		if shutErr := bc.Adapters.ShutdownAll(ctx); shutErr != nil {
			bc.Logger().ErrorCF("lifecycle", "adapter shutdown error", map[string]interface{}{"error": shutErr.Error()})
			err = shutErr
		}
		if saveErr := bc.Memory().Save(ctx); saveErr != nil {
			bc.Logger().ErrorCF("lifecycle", "final memory save failed", map[string]interface{}{"error": saveErr.Error()})
		}
	}

	c.setStatus(StatusShutdown)
	return err
}

func (c *Controller) shutdownAfterFailure(ctx context.Context) {
	c.mu.Lock()
	bc := c.ctx
	if c.bitTicker != nil {
		c.bitTicker.Stop()
		c.bitTicker = nil
	}
	c.mu.Unlock()
	if bc != nil {
		bc.Memory().StopAutoSave()
		_ = bc.Adapters.ShutdownAll(ctx)
	}
	c.setStatus(StatusShutdown)
}

// Pause transitions started -> paused -> loaded (re-entrant): while
// paused it shuts adapters down without discarding the
// botctx.Context, so a later Start resumes without reloading.
func (c *Controller) Pause(ctx context.Context) error {
	c.mu.Lock()
	if c.status != StatusStarted {
		status := c.status
		c.mu.Unlock()
		return fmt.Errorf("lifecycle: pause: invalid transition from %s", status)
	}
	bc := c.ctx
	if c.bitTicker != nil {
		c.bitTicker.Stop()
		c.bitTicker = nil
	}
	c.mu.Unlock()

	bc.Memory().StopAutoSave()
	c.setStatus(StatusPaused)
	if err := bc.Adapters.ShutdownAll(ctx); err != nil {
		return fmt.Errorf("lifecycle: pause: %w", err)
	}
	c.setStatus(StatusLoaded)
	return nil
}

// Reset returns the controller to waiting and empties the global
// Path, adapter slots, and middleware stacks, per §4.9. It does not
// call Shutdown; callers that want a clean shutdown-then-reset call
// Shutdown first.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx != nil {
		c.ctx.Path.Reset()
		c.ctx.Adapters = adapter.New()
		c.ctx.Bits.Reset()
		c.ctx.Scenes = scene.New(c.ctx.Log, 0)
		c.ctx.HearMW = middleware.New("hear")
		c.ctx.ListenMW = middleware.New("listen")
		c.ctx.UnderstandMW = middleware.New("understand")
		c.ctx.ServeMW = middleware.New("serve")
		c.ctx.ActMW = middleware.New("act")
		c.ctx.RespondMW = middleware.New("respond")
		c.ctx.RememberMW = middleware.New("remember")
	}
	c.ctx = nil
	c.bitTicker = nil
	c.status = StatusWaiting
}
