package bit

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/weavebot/weavebot/pkg/eventbus"
	"github.com/weavebot/weavebot/pkg/logger"
	"github.com/weavebot/weavebot/pkg/memory"
	"github.com/weavebot/weavebot/pkg/message"
	"github.com/weavebot/weavebot/pkg/state"
)

type fakeBot struct{ name string }

func (f *fakeBot) Logger() *logger.Logger  { return logger.New(logger.Silent) }
func (f *fakeBot) EventBus() *eventbus.Bus { return eventbus.New() }
func (f *fakeBot) Memory() *memory.Memory  { return memory.New(nil) }
func (f *fakeBot) Name() string            { return f.name }
func (f *fakeBot) Alias() string           { return "" }
func (f *fakeBot) Dispatch(ctx context.Context, env *message.Envelope) error { return nil }
func (f *fakeBot) RunBit(ctx context.Context, id string, st *state.State) error {
	return nil
}

func newState() *state.State {
	msg := message.NewText(message.User{ID: "u1"}, message.NewDirectRoom(), "hi")
	return state.New(msg, &fakeBot{name: "bb"})
}

func TestDoSendsBeforeInvokingCallback(t *testing.T) {
	var sawTextsWhenCallbackRan []string
	b := &Bit{
		ID:   "greet",
		Send: []string{"hello", "there"},
		Callback: func(ctx context.Context, st *state.State) error {
			for _, env := range st.Envelopes() {
				sawTextsWhenCallbackRan = append(sawTextsWhenCallbackRan, env.Texts...)
			}
			return nil
		},
	}
	st := newState()
	if err := b.Do(context.Background(), st); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sawTextsWhenCallbackRan) != 2 {
		t.Fatalf("expected the callback to observe the queued send texts, got %v", sawTextsWhenCallbackRan)
	}
}

func TestRegisterRejectsMissingID(t *testing.T) {
	r := New(logger.New(logger.Silent))
	err := r.Register(&Bit{Send: []string{"hi"}})
	if err == nil {
		t.Fatal("expected an error for a bit with no id")
	}
}

func TestRegisterReplacesDuplicateIDKeepingPosition(t *testing.T) {
	r := New(nil)
	_ = r.Register(&Bit{ID: "a", Send: []string{"1"}})
	_ = r.Register(&Bit{ID: "b", Send: []string{"2"}})
	_ = r.Register(&Bit{ID: "a", Send: []string{"replaced"}})

	all := r.All()
	if len(all) != 2 {
		t.Fatalf("expected 2 bits, got %d", len(all))
	}
	if all[0].ID != "a" || all[0].Send[0] != "replaced" {
		t.Fatalf("expected the replacement to keep its original position, got %+v", all)
	}
}

func TestDoOnMissingIDLogsAndReturnsNilError(t *testing.T) {
	r := New(logger.New(logger.Silent))
	if err := r.Do(context.Background(), "nope", newState()); err != nil {
		t.Fatalf("expected nil error for a missing bit id, got %v", err)
	}
}

func TestLoadManifestParsesBitsYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bits.yaml")
	doc := `
bits:
  - id: order-coffee
    send: ["What size?"]
    listen: "/small|medium|large/i"
    next: [order-coffee-confirm]
  - id: order-coffee-confirm
    send: ["Coming right up."]
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bits, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bits) != 2 {
		t.Fatalf("expected 2 bits, got %d", len(bits))
	}
	if bits[0].ID != "order-coffee" || len(bits[0].Next) != 1 || bits[0].Next[0] != "order-coffee-confirm" {
		t.Fatalf("unexpected first bit: %+v", bits[0])
	}
}

func TestLoadManifestRejectsEntryMissingID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bits.yaml")
	doc := "bits:\n  - send: [\"hi\"]\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := LoadManifest(path); err == nil {
		t.Fatal("expected an error for an entry missing id")
	}
}
