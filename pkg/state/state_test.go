package state

import (
	"context"
	"testing"

	"github.com/weavebot/weavebot/pkg/eventbus"
	"github.com/weavebot/weavebot/pkg/logger"
	"github.com/weavebot/weavebot/pkg/memory"
	"github.com/weavebot/weavebot/pkg/message"
)

type fakeBot struct {
	log        *logger.Logger
	bus        *eventbus.Bus
	mem        *memory.Memory
	dispatched []*message.Envelope
	ranBit     string
}

func (f *fakeBot) Logger() *logger.Logger     { return f.log }
func (f *fakeBot) EventBus() *eventbus.Bus    { return f.bus }
func (f *fakeBot) Memory() *memory.Memory     { return f.mem }
func (f *fakeBot) Name() string               { return "bb" }
func (f *fakeBot) Alias() string              { return "" }
func (f *fakeBot) Dispatch(ctx context.Context, env *message.Envelope) error {
	f.dispatched = append(f.dispatched, env)
	return nil
}
func (f *fakeBot) RunBit(ctx context.Context, id string, st *State) error {
	f.ranBit = id
	return nil
}

func newFakeBot() *fakeBot {
	return &fakeBot{log: logger.New(logger.Info), bus: eventbus.New(), mem: memory.New(nil)}
}

func TestWriteQueuesEnvelope(t *testing.T) {
	bot := newFakeBot()
	st := New(message.NewText(message.User{ID: "u1"}, message.NewDirectRoom(), "hi"), bot)

	st.Write("hello there")
	if len(st.Envelopes()) != 1 {
		t.Fatalf("expected 1 queued envelope, got %d", len(st.Envelopes()))
	}
}

func TestDispatchEnvelopesDrainsQueue(t *testing.T) {
	bot := newFakeBot()
	st := New(message.NewText(message.User{ID: "u1"}, message.NewDirectRoom(), "hi"), bot)
	st.Respond("ok")

	if err := st.DispatchEnvelopes(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bot.dispatched) != 1 {
		t.Fatalf("expected 1 dispatched envelope, got %d", len(bot.dispatched))
	}
	if len(st.Envelopes()) != 0 {
		t.Fatal("expected envelope queue to be drained")
	}
}

func TestRecordMatchAndHasMatch(t *testing.T) {
	bot := newFakeBot()
	st := New(message.NewText(message.User{ID: "u1"}, message.NewDirectRoom(), "hi"), bot)

	if st.HasMatch() {
		t.Fatal("expected no match yet")
	}
	st.RecordMatch(Matched{BranchID: "b1", Stage: StageListen, Captured: "hi"})
	if !st.HasMatch() {
		t.Fatal("expected a recorded match")
	}
	if len(st.Matched()) != 1 || st.Matched()[0].BranchID != "b1" {
		t.Fatalf("unexpected matched records: %+v", st.Matched())
	}
}

func TestSetDoneStopsFurtherStages(t *testing.T) {
	bot := newFakeBot()
	st := New(message.NewText(message.User{ID: "u1"}, message.NewDirectRoom(), "hi"), bot)

	if st.Done() {
		t.Fatal("expected not done initially")
	}
	st.SetDone()
	if !st.Done() {
		t.Fatal("expected done after SetDone")
	}
}
