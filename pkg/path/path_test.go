package path

import (
	"testing"

	"github.com/weavebot/weavebot/pkg/branch"
	"github.com/weavebot/weavebot/pkg/state"
)

func TestAddAndGetPreservesRegistrationOrder(t *testing.T) {
	p := New(GlobalScope)
	id1, _ := p.Text("/one/i", nil, branch.WithID("b1"))
	id2, _ := p.Text("/two/i", nil, branch.WithID("b2"))
	id3, _ := p.Text("/three/i", nil, branch.WithID("b3"))

	got := p.Get(state.StageListen)
	if len(got) != 3 {
		t.Fatalf("expected 3 branches, got %d", len(got))
	}
	if got[0].ID() != id1 || got[1].ID() != id2 || got[2].ID() != id3 {
		t.Fatalf("expected registration order %v/%v/%v, got %v/%v/%v",
			id1, id2, id3, got[0].ID(), got[1].ID(), got[2].ID())
	}
}

func TestDuplicateIDReplacesKeepingPosition(t *testing.T) {
	p := New(GlobalScope)
	p.Text("/one/i", nil, branch.WithID("dup"))
	p.Text("/two/i", nil, branch.WithID("other"))
	p.Text("/replacement/i", nil, branch.WithID("dup"))

	got := p.Get(state.StageListen)
	if len(got) != 2 {
		t.Fatalf("expected 2 branches after replace, got %d", len(got))
	}
	if got[0].ID() != "dup" {
		t.Fatalf("expected the replaced branch to keep its original position, got order %v", got)
	}
}

func TestResetPreservesServe(t *testing.T) {
	p := New(GlobalScope)
	p.Text("/hi/i", nil)
	p.Server(map[string]interface{}{"event": "x"}, nil)

	p.Reset()

	if p.Count(state.StageListen) != 0 {
		t.Fatal("expected listen to be emptied")
	}
	if p.Count(state.StageServe) != 1 {
		t.Fatal("expected serve to be preserved")
	}
}

func TestForcedKeepsOnlyForceFlaggedBranches(t *testing.T) {
	p := New(GlobalScope)
	p.Text("/a/i", nil, branch.WithForce(true), branch.WithID("forced"))
	p.Text("/b/i", nil, branch.WithID("not-forced"))

	remaining := p.Forced(state.StageListen)
	if remaining != 1 {
		t.Fatalf("expected 1 remaining forced branch, got %d", remaining)
	}
	got := p.Get(state.StageListen)
	if len(got) != 1 || !got[0].Force() {
		t.Fatalf("expected only the forced branch to remain, got %+v", got)
	}
}

func TestRemoveDropsBranchFromStage(t *testing.T) {
	p := New(GlobalScope)
	p.Text("/a/i", nil, branch.WithID("a"))
	p.Text("/b/i", nil, branch.WithID("b"))

	p.Remove(state.StageListen, "a")

	got := p.Get(state.StageListen)
	if len(got) != 1 || got[0].ID() != "b" {
		t.Fatalf("expected only %q to remain, got %v", "b", got)
	}
}
