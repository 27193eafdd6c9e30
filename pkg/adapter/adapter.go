// Package adapter implements the type-indexed adapter registry (C9):
// message/nlu/storage slots loaded by the name of a registered factory,
// with capability validation and lifecycle fan-out. A filesystem path
// is not resolved: an unregistered name fails to load. Grounded on the
// teacher's pkg/tools/registry.go ToolRegistry (map + mutex +
// Register/Get) and pkg/agent/registry.go AgentRegistry's
// config-driven instantiation, generalized from a single tool slot to
// three typed collaborator slots.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/weavebot/weavebot/pkg/config"
	"github.com/weavebot/weavebot/pkg/logger"
	"github.com/weavebot/weavebot/pkg/message"
	"github.com/weavebot/weavebot/pkg/state"
)

// ErrInvalidAdapter is returned when a loaded module does not satisfy
// the type-specific capability it was registered for.
var ErrInvalidAdapter = errors.New("adapter: invalid adapter")

// ErrAdapterTimeout is the §7 AdapterTimeout error kind: an adapter
// dispatch/process/storage call exceeded config.Config.RequestTimeout.
var ErrAdapterTimeout = errors.New("adapter: timed out")

// WithTimeout bounds ctx by cfg.RequestTimeout milliseconds, the
// configurable ceiling §5 puts on "every adapter dispatch/process
// call". A non-positive RequestTimeout leaves ctx unbounded, so a
// hand-built *config.Config in a test doesn't need to set it.
func WithTimeout(ctx context.Context, cfg *config.Config) (context.Context, context.CancelFunc) {
	if cfg == nil || cfg.RequestTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, time.Duration(cfg.RequestTimeout)*time.Millisecond)
}

// TimeoutError translates err into ErrAdapterTimeout when it is (or
// wraps) context.DeadlineExceeded, and returns it unchanged otherwise.
func TimeoutError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrAdapterTimeout, err)
	}
	return err
}

// Adapter is the base contract every adapter satisfies.
type Adapter interface {
	Name() string
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// MessageAdapter is the required collaborator for inbound/outbound
// chat traffic.
type MessageAdapter interface {
	Adapter
	Dispatch(ctx context.Context, env *message.Envelope) error
}

// NLUAdapter is the optional collaborator for natural language
// understanding. It reports back in the same shape State caches on
// itself, so the understand stage can store the result verbatim.
type NLUAdapter interface {
	Adapter
	Process(ctx context.Context, msg message.Message) (*state.NLUResult, error)
}

// StorageAdapter is the optional collaborator for durable persistence,
// both whole-memory snapshots and ad-hoc structured records.
type StorageAdapter interface {
	Adapter
	SaveMemory(ctx context.Context, data map[string]map[string]interface{}) error
	LoadMemory(ctx context.Context) (map[string]map[string]interface{}, error)
	Keep(ctx context.Context, collection string, record map[string]interface{}) error
	Lose(ctx context.Context, collection string, criteria map[string]interface{}) error
	Find(ctx context.Context, collection string, criteria map[string]interface{}) ([]map[string]interface{}, error)
	FindOne(ctx context.Context, collection string, criteria map[string]interface{}) (map[string]interface{}, bool, error)
}

// Factory builds an Adapter for the running bot, matching the "loaded
// module must expose a factory use(bot) -> Adapter" contract. BotInfo
// is the minimal identity info a factory needs, decoupled from the
// full botctx.Context to avoid an import cycle the way state.Bot does.
type Factory func(bot BotInfo) (Adapter, error)

// ReceiveFunc is how a message adapter hands a decoded inbound event
// back to the running bot: the Gateway wires this to a thought-process
// orchestrator invocation (one State per call), so every vendor
// adapter feeds the same pipeline regardless of transport.
type ReceiveFunc func(ctx context.Context, msg message.Message)

// BotInfo is passed to a Factory when resolving an adapter. Config
// carries the per-vendor credential sub-structs (§4.14); Receive and
// Log let a Factory build a fully wired adapter without reaching for
// a package-level singleton, per the "explicit dependency injection"
// Design Note.
type BotInfo struct {
	Name  string
	Alias string

	Config  *config.Config
	Log     *logger.Logger
	Receive ReceiveFunc
}

// Registry holds the three typed slots.
type Registry struct {
	message MessageAdapter
	nlu     NLUAdapter
	storage StorageAdapter

	factories map[string]Factory
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// RegisterFactory makes name resolvable by LoadMessage/LoadNLU/LoadStorage,
// standing in for "resolvable in the host module system" since Go has
// no dynamic module loading; named factories are registered at process
// build time the way the teacher's own channels are wired in cmd/.
func (r *Registry) RegisterFactory(name string, f Factory) {
	r.factories[name] = f
}

func (r *Registry) resolve(name string, bot BotInfo) (Adapter, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: no factory registered for %q", ErrInvalidAdapter, name)
	}
	a, err := f(bot)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidAdapter, name, err)
	}
	return a, nil
}

// LoadMessage resolves name and installs it as the message slot,
// failing with ErrInvalidAdapter if it does not implement Dispatch.
func (r *Registry) LoadMessage(name string, bot BotInfo) error {
	a, err := r.resolve(name, bot)
	if err != nil {
		return err
	}
	ma, ok := a.(MessageAdapter)
	if !ok {
		return fmt.Errorf("%w: %q does not implement MessageAdapter", ErrInvalidAdapter, name)
	}
	r.message = ma
	return nil
}

// LoadNLU resolves name and installs it as the nlu slot.
func (r *Registry) LoadNLU(name string, bot BotInfo) error {
	a, err := r.resolve(name, bot)
	if err != nil {
		return err
	}
	na, ok := a.(NLUAdapter)
	if !ok {
		return fmt.Errorf("%w: %q does not implement NLUAdapter", ErrInvalidAdapter, name)
	}
	r.nlu = na
	return nil
}

// LoadStorage resolves name and installs it as the storage slot.
func (r *Registry) LoadStorage(name string, bot BotInfo) error {
	a, err := r.resolve(name, bot)
	if err != nil {
		return err
	}
	sa, ok := a.(StorageAdapter)
	if !ok {
		return fmt.Errorf("%w: %q does not implement StorageAdapter", ErrInvalidAdapter, name)
	}
	r.storage = sa
	return nil
}

// Message, NLU, and Storage return the populated slots, or nil if
// never loaded (message defaults to a shell adapter by convention of
// the caller, not this registry).
func (r *Registry) Message() MessageAdapter { return r.message }
func (r *Registry) NLU() NLUAdapter         { return r.nlu }
func (r *Registry) Storage() StorageAdapter { return r.storage }

// populated returns every non-nil slot, in message/nlu/storage order.
func (r *Registry) populated() []Adapter {
	var out []Adapter
	if r.message != nil {
		out = append(out, r.message)
	}
	if r.nlu != nil {
		out = append(out, r.nlu)
	}
	if r.storage != nil {
		out = append(out, r.storage)
	}
	return out
}

// StartAll starts every populated slot, stopping at the first error.
func (r *Registry) StartAll(ctx context.Context) error {
	for _, a := range r.populated() {
		if err := a.Start(ctx); err != nil {
			return fmt.Errorf("adapter %q: start: %w", a.Name(), err)
		}
	}
	return nil
}

// ShutdownAll shuts down every populated slot in LIFO order (storage,
// then nlu, then message), collecting but not aborting on errors.
func (r *Registry) ShutdownAll(ctx context.Context) error {
	slots := r.populated()
	var errs []error
	for i := len(slots) - 1; i >= 0; i-- {
		if err := slots[i].Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("adapter %q: shutdown: %w", slots[i].Name(), err))
		}
	}
	return errors.Join(errs...)
}

// UnloadAll clears every slot without shutting it down (used by
// lifecycle.Reset, which assumes ShutdownAll already ran).
func (r *Registry) UnloadAll() {
	r.message = nil
	r.nlu = nil
	r.storage = nil
}
