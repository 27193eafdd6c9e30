// Package botctx bundles the one explicit dependency-injection
// container per running bot process (A3): logger, config, event bus,
// the global Path, the Bit registry, the Adapter registry, Memory, and
// the per-stage Middleware stacks. It exists so nothing in this repo
// reaches for a module-level singleton, per the "cyclic bot import
// graph -> explicit dependency injection" Design Note. Grounded on the
// teacher's own constructor-injected services (e.g. NewAgentRegistry
// taking *config.Config and a provider rather than reading package
// globals).
package botctx

import (
	"context"
	"fmt"

	"github.com/weavebot/weavebot/pkg/adapter"
	"github.com/weavebot/weavebot/pkg/bit"
	"github.com/weavebot/weavebot/pkg/config"
	"github.com/weavebot/weavebot/pkg/eventbus"
	"github.com/weavebot/weavebot/pkg/logger"
	"github.com/weavebot/weavebot/pkg/memory"
	"github.com/weavebot/weavebot/pkg/message"
	"github.com/weavebot/weavebot/pkg/middleware"
	"github.com/weavebot/weavebot/pkg/path"
	"github.com/weavebot/weavebot/pkg/scene"
	"github.com/weavebot/weavebot/pkg/state"
)

// Context is the bundled DI container. Exactly one exists per running
// bot process; it is created by lifecycle.Controller.Load. Tests build
// their own via New rather than reaching for a package-level
// singleton. Log/Bus/Mem are unexported-looking but exported fields
// kept out of state.Bot's method names (Logger/EventBus/Memory) so the
// accessor methods below can carry those names instead.
type Context struct {
	Config *config.Config
	Log    *logger.Logger
	Bus    *eventbus.Bus
	Mem    *memory.Memory

	Path     *path.Path
	Bits     *bit.Registry
	Adapters *adapter.Registry
	Scenes   *scene.Scenes

	HearMW       *middleware.Middleware
	ListenMW     *middleware.Middleware
	UnderstandMW *middleware.Middleware
	ServeMW      *middleware.Middleware
	ActMW        *middleware.Middleware
	RespondMW    *middleware.Middleware
	RememberMW   *middleware.Middleware
}

// New builds a fresh Context from cfg. It wires the global Path, an
// empty Bit and Adapter registry, Memory (storage collaborator
// attached separately once an adapter is loaded, since Memory.New
// takes the Storage interface directly), and one empty Middleware
// stack per thought-process stage.
func New(cfg *config.Config) (*Context, error) {
	if cfg == nil {
		d := config.Defaults()
		cfg = &d
	}

	log := logger.New(logger.ParseLevel(cfg.LogLevel))
	bus := eventbus.New()
	log.OnLogging(func(r logger.Record) {
		bus.Publish("logging", r)
	})

	bc := &Context{
		Config:   cfg,
		Log:      log,
		Bus:      bus,
		Mem:      memory.New(nil),
		Path:     path.New(path.GlobalScope),
		Bits:     bit.New(log),
		Adapters: adapter.New(),
		Scenes:   scene.New(log, 0),

		HearMW:       middleware.New("hear"),
		ListenMW:     middleware.New("listen"),
		UnderstandMW: middleware.New("understand"),
		ServeMW:      middleware.New("serve"),
		ActMW:        middleware.New("act"),
		RespondMW:    middleware.New("respond"),
		RememberMW:   middleware.New("remember"),
	}
	return bc, nil
}

// AttachStorage wires a loaded storage adapter into Memory without
// disturbing any collections already held, since the adapter that
// satisfies Memory's Storage dependency is only known once the Adapter
// registry has loaded one, after Memory itself was constructed.
func (bc *Context) AttachStorage(storage memory.Storage) {
	bc.Mem.SetStorage(storage)
}

// Logger satisfies state.Bot.
func (bc *Context) Logger() *logger.Logger { return bc.Log }

// EventBus satisfies state.Bot.
func (bc *Context) EventBus() *eventbus.Bus { return bc.Bus }

// Memory satisfies state.Bot.
func (bc *Context) Memory() *memory.Memory { return bc.Mem }

// Name satisfies state.Bot, returning the configured, sanitised bot
// name.
func (bc *Context) Name() string { return bc.Config.Name }

// Alias satisfies state.Bot, returning the configured alternate name.
func (bc *Context) Alias() string { return bc.Config.Alias }

// Dispatch satisfies state.Bot by delegating to the adapter registry's
// message slot. Dispatching with no message adapter loaded fails
// loudly rather than silently dropping the envelope.
func (bc *Context) Dispatch(ctx context.Context, env *message.Envelope) error {
	ma := bc.Adapters.Message()
	if ma == nil {
		return fmt.Errorf("botctx: dispatch: no message adapter loaded")
	}
	tctx, cancel := adapter.WithTimeout(ctx, bc.Config)
	defer cancel()
	return adapter.TimeoutError(ma.Dispatch(tctx, env))
}

// RunBit satisfies state.Bot by delegating to the Scenes manager,
// which runs the bit and then registers or discards its follow-up
// scene, so a Bit executed via a plain branch action-string chains
// into Next identically to one executed from inside a scene.
func (bc *Context) RunBit(ctx context.Context, id string, st *state.State) error {
	return bc.Scenes.RunAndChain(ctx, bc.Bits, id, st)
}

// MiddlewareFor returns the stack registered for stage.
func (bc *Context) MiddlewareFor(stage state.Stage) *middleware.Middleware {
	switch stage {
	case state.StageHear:
		return bc.HearMW
	case state.StageListen:
		return bc.ListenMW
	case state.StageUnderstand:
		return bc.UnderstandMW
	case state.StageServe:
		return bc.ServeMW
	case state.StageAct:
		return bc.ActMW
	case state.StageRespond:
		return bc.RespondMW
	case state.StageRemember:
		return bc.RememberMW
	default:
		return nil
	}
}
