package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/weavebot/weavebot/pkg/message"
	"github.com/weavebot/weavebot/pkg/state"
)

type fakeMessageAdapter struct {
	name      string
	started   bool
	shutdown  bool
	dispatched []*message.Envelope
}

func (f *fakeMessageAdapter) Name() string { return f.name }
func (f *fakeMessageAdapter) Start(ctx context.Context) error {
	f.started = true
	return nil
}
func (f *fakeMessageAdapter) Shutdown(ctx context.Context) error {
	f.shutdown = true
	return nil
}
func (f *fakeMessageAdapter) Dispatch(ctx context.Context, env *message.Envelope) error {
	f.dispatched = append(f.dispatched, env)
	return nil
}

type fakeStorageAdapter struct {
	fakeMessageAdapterBase
}

type fakeMessageAdapterBase struct{ name string }

func (f *fakeMessageAdapterBase) Name() string                          { return f.name }
func (f *fakeMessageAdapterBase) Start(ctx context.Context) error       { return nil }
func (f *fakeMessageAdapterBase) Shutdown(ctx context.Context) error    { return nil }

func (f *fakeStorageAdapter) SaveMemory(ctx context.Context, data map[string]map[string]interface{}) error {
	return nil
}
func (f *fakeStorageAdapter) LoadMemory(ctx context.Context) (map[string]map[string]interface{}, error) {
	return nil, nil
}
func (f *fakeStorageAdapter) Keep(ctx context.Context, collection string, record map[string]interface{}) error {
	return nil
}
func (f *fakeStorageAdapter) Lose(ctx context.Context, collection string, criteria map[string]interface{}) error {
	return nil
}
func (f *fakeStorageAdapter) Find(ctx context.Context, collection string, criteria map[string]interface{}) ([]map[string]interface{}, error) {
	return nil, nil
}
func (f *fakeStorageAdapter) FindOne(ctx context.Context, collection string, criteria map[string]interface{}) (map[string]interface{}, bool, error) {
	return nil, false, nil
}

type notAnAdapter struct{ fakeMessageAdapterBase }

func TestLoadMessageInstallsValidAdapter(t *testing.T) {
	r := New()
	fa := &fakeMessageAdapter{name: "shell"}
	r.RegisterFactory("shell", func(bot BotInfo) (Adapter, error) { return fa, nil })

	if err := r.LoadMessage("shell", BotInfo{Name: "bot"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Message() == nil {
		t.Fatal("expected message slot to be populated")
	}
}

func TestLoadMessageRejectsIncapableAdapter(t *testing.T) {
	r := New()
	r.RegisterFactory("storage-only", func(bot BotInfo) (Adapter, error) {
		return &fakeStorageAdapter{fakeMessageAdapterBase{name: "storage-only"}}, nil
	})

	err := r.LoadMessage("storage-only", BotInfo{})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, ErrInvalidAdapter) {
		t.Fatalf("expected ErrInvalidAdapter, got %v", err)
	}
}

func TestLoadUnknownFactoryFails(t *testing.T) {
	r := New()
	if err := r.LoadMessage("missing", BotInfo{}); err == nil {
		t.Fatal("expected an error for an unregistered factory")
	}
}

func TestStartAllShutdownAllAndUnloadAllFanOut(t *testing.T) {
	r := New()
	msg := &fakeMessageAdapter{name: "msg"}
	store := &fakeStorageAdapter{fakeMessageAdapterBase{name: "store"}}
	r.RegisterFactory("msg", func(bot BotInfo) (Adapter, error) { return msg, nil })
	r.RegisterFactory("store", func(bot BotInfo) (Adapter, error) { return store, nil })
	_ = r.LoadMessage("msg", BotInfo{})
	_ = r.LoadStorage("store", BotInfo{})

	if err := r.StartAll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !msg.started {
		t.Fatal("expected message adapter to be started")
	}

	if err := r.ShutdownAll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !msg.shutdown {
		t.Fatal("expected message adapter to be shut down")
	}

	r.UnloadAll()
	if r.Message() != nil || r.Storage() != nil {
		t.Fatal("expected slots to be cleared")
	}
}

func TestNLUAdapterReturnsStateShapedResult(t *testing.T) {
	r := New()
	r.RegisterFactory("nlu", func(bot BotInfo) (Adapter, error) {
		return &fakeNLUAdapter{fakeMessageAdapterBase{name: "nlu"}}, nil
	})
	if err := r.LoadNLU("nlu", BotInfo{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := r.NLU().Process(context.Background(), message.NewText(message.User{ID: "u1"}, message.NewDirectRoom(), "hi"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Intents) != 1 || res.Intents[0].Name != "greet" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

type fakeNLUAdapter struct{ fakeMessageAdapterBase }

func (f *fakeNLUAdapter) Process(ctx context.Context, msg message.Message) (*state.NLUResult, error) {
	return &state.NLUResult{Intents: []state.Intent{{Name: "greet", Score: 0.9}}}, nil
}
