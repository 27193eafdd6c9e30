// Package thoughtprocess implements the stage orchestrator (C7): it
// drives one inbound Message through hear -> listen -> understand/
// serve -> act -> respond -> remember, invoking each stage's
// Middleware stack and, inside Complete, that stage's branch-matching
// algorithm against the global Path and any live scoped scene.
// Grounded on the teacher's pkg/agent/loop.go AgentLoop.Run sequential
// stage driver, generalized from a single loop body into the seven-
// stage table this repo's data model calls for.
package thoughtprocess

import (
	"context"
	"time"

	"github.com/weavebot/weavebot/pkg/adapter"
	"github.com/weavebot/weavebot/pkg/botctx"
	"github.com/weavebot/weavebot/pkg/branch"
	"github.com/weavebot/weavebot/pkg/memory"
	"github.com/weavebot/weavebot/pkg/message"
	"github.com/weavebot/weavebot/pkg/path"
	"github.com/weavebot/weavebot/pkg/state"
)

// Run drives msg through every stage in table order and returns the
// final State. It never returns a non-nil error for branch/middleware
// failures within a stage (those are logged and annotated on State
// instead, per the "orchestration errors are non-aborting" rule);
// the only errors surfaced here come from a stage's Middleware stack
// itself panicking or a piece returning a MiddlewareError.
func Run(ctx context.Context, bc *botctx.Context, msg message.Message) (*state.State, error) {
	st := state.New(msg, bc)

	if err := runHear(ctx, bc, st); err != nil {
		return st, err
	}
	if st.Done() {
		return st, nil
	}

	switch msg.Kind {
	case message.KindText, message.KindEnter, message.KindLeave, message.KindTopic:
		if err := runListen(ctx, bc, msg, st); err != nil {
			return st, err
		}
		if st.Done() {
			return st, nil
		}
		if msg.Kind == message.KindText && len(msg.TextContent()) >= bc.Config.NLUMinLength && !st.HasMatch() {
			if err := runUnderstand(ctx, bc, msg, st); err != nil {
				return st, err
			}
		}
	case message.KindServer:
		if err := runServe(ctx, bc, msg, st); err != nil {
			return st, err
		}
	}
	if st.Done() {
		return st, nil
	}

	if !st.HasMatch() && !msg.IsCatchAll() {
		if err := runAct(ctx, bc, msg, st); err != nil {
			return st, err
		}
	}
	if st.Done() {
		return st, nil
	}

	if len(st.Envelopes()) > 0 {
		if err := runRespond(ctx, bc, st); err != nil {
			return st, err
		}
	}
	if st.Done() {
		return st, nil
	}

	if err := runRemember(ctx, bc, msg, st); err != nil {
		return st, err
	}
	return st, nil
}

func runHear(ctx context.Context, bc *botctx.Context, st *state.State) error {
	st.Stage = state.StageHear
	bc.Bus.Publish("hear", st)
	return bc.HearMW.Run(ctx, st, nil)
}

func runListen(ctx context.Context, bc *botctx.Context, msg message.Message, st *state.State) error {
	st.Stage = state.StageListen
	bc.Bus.Publish("listen", st)
	return bc.ListenMW.Run(ctx, st, func(ctx context.Context, st *state.State) error {
		evaluateStage(ctx, bc, msg, st, state.StageListen)
		publishMatchOutcome(bc, st, state.StageListen)
		return nil
	})
}

func runUnderstand(ctx context.Context, bc *botctx.Context, msg message.Message, st *state.State) error {
	st.Stage = state.StageUnderstand
	bc.Bus.Publish("understand", st)
	return bc.UnderstandMW.Run(ctx, st, func(ctx context.Context, st *state.State) error {
		if nlu := bc.Adapters.NLU(); nlu != nil && st.NLU == nil {
			tctx, cancel := adapter.WithTimeout(ctx, bc.Config)
			res, err := nlu.Process(tctx, msg)
			cancel()
			if err != nil {
				bc.Logger().ErrorCF("thoughtprocess", "nlu process failed", map[string]interface{}{"error": adapter.TimeoutError(err).Error()})
			} else {
				st.NLU = res
			}
		}
		evaluateStage(ctx, bc, msg, st, state.StageUnderstand)
		publishMatchOutcome(bc, st, state.StageUnderstand)
		return nil
	})
}

func runServe(ctx context.Context, bc *botctx.Context, msg message.Message, st *state.State) error {
	st.Stage = state.StageServe
	bc.Bus.Publish("serve", st)
	return bc.ServeMW.Run(ctx, st, func(ctx context.Context, st *state.State) error {
		runBranchList(ctx, bc, msg, st, state.StageServe, bc.Path.Get(state.StageServe), bc.Path)
		publishMatchOutcome(bc, st, state.StageServe)
		return nil
	})
}

// runAct wraps the original, unmatched Message as a CatchAllMessage
// and re-evaluates it against the global act Path, per the act
// trigger: "no match from listen+understand+serve AND message not
// itself a CatchAllMessage."
func runAct(ctx context.Context, bc *botctx.Context, msg message.Message, st *state.State) error {
	st.Stage = state.StageAct
	wrapped := message.WrapCatchAll(msg)
	return bc.ActMW.Run(ctx, st, func(ctx context.Context, st *state.State) error {
		runBranchList(ctx, bc, wrapped, st, state.StageAct, bc.Path.Get(state.StageAct), bc.Path)
		return nil
	})
}

func runRespond(ctx context.Context, bc *botctx.Context, st *state.State) error {
	st.Stage = state.StageRespond
	bc.Bus.Publish("respond", st)
	return bc.RespondMW.Run(ctx, st, func(ctx context.Context, st *state.State) error {
		return st.DispatchEnvelopes(ctx)
	})
}

func runRemember(ctx context.Context, bc *botctx.Context, msg message.Message, st *state.State) error {
	st.Stage = state.StageRemember
	bc.Bus.Publish("remember", st)
	return bc.RememberMW.Run(ctx, st, func(ctx context.Context, st *state.State) error {
		rememberParticipants(ctx, bc, msg, st)
		return nil
	})
}

// evaluateStage runs stage's branch-matching algorithm: a live scoped
// scene (if any) takes precedence over the global Path. Once a scene
// has been consulted, Path.Forced narrows it to its force-flagged
// branches only (the rest were single-turn alternatives, now spent);
// if any force-flagged branches remain, the global Path's own forced
// branches for this stage are evaluated too, so a standing escape
// branch like "cancel" still applies mid-scene.
func evaluateStage(ctx context.Context, bc *botctx.Context, msg message.Message, st *state.State, stage state.Stage) {
	if scoped := bc.Scenes.Lookup(msg.User, msg.Room); scoped != nil {
		branches := scoped.Get(stage)
		if len(branches) > 0 {
			runBranchList(ctx, bc, msg, st, stage, branches, scoped)
			if remaining := scoped.Forced(stage); remaining > 0 {
				runBranchList(ctx, bc, msg, st, stage, forcedOnly(bc.Path.Get(stage)), bc.Path)
			}
			return
		}
	}
	runBranchList(ctx, bc, msg, st, stage, bc.Path.Get(stage), bc.Path)
}

// runBranchList evaluates branches in registration order, skipping
// non-force branches once the stage already has a match (first match
// wins unless force). A matched branch's execution error is logged
// and recorded as a follow-up Matched entry rather than aborting the
// stage. A matched Once branch is removed from owner so it cannot
// match again.
func runBranchList(ctx context.Context, bc *botctx.Context, msg message.Message, st *state.State, stage state.Stage, branches []branch.Branch, owner *path.Path) {
	for _, b := range branches {
		if stageHasMatch(st, stage) && !b.Force() {
			continue
		}
		outcome := b.Matches(ctx, msg, st)
		if !outcome.Matched {
			continue
		}
		if err := b.Execute(ctx, st); err != nil {
			bc.Logger().ErrorCF("thoughtprocess", "branch execute failed", map[string]interface{}{
				"branch": b.ID(),
				"stage":  string(stage),
				"error":  err.Error(),
			})
			st.RecordMatch(state.Matched{BranchID: b.ID(), Stage: stage, CallErr: err})
		}
		if b.Once() {
			owner.Remove(stage, b.ID())
		}
	}
}

func stageHasMatch(st *state.State, stage state.Stage) bool {
	for _, m := range st.Matched() {
		if m.Stage == stage {
			return true
		}
	}
	return false
}

func forcedOnly(branches []branch.Branch) []branch.Branch {
	var out []branch.Branch
	for _, b := range branches {
		if b.Force() {
			out = append(out, b)
		}
	}
	return out
}

func publishMatchOutcome(bc *botctx.Context, st *state.State, stage state.Stage) {
	if stageHasMatch(st, stage) {
		bc.Bus.Publish("match", st)
	} else {
		bc.Bus.Publish("nomatch", st)
	}
}

// rememberParticipants updates the in-memory users/rooms collections
// with who was just seen, then, if a storage adapter is loaded,
// persists a structured interaction record through it.
func rememberParticipants(ctx context.Context, bc *botctx.Context, msg message.Message, st *state.State) {
	mem := bc.Memory()
	if msg.User.ID != "" && msg.User.ID != message.SystemUserID {
		_ = mem.Set(msg.User.ID, map[string]interface{}{
			"name":     msg.User.Name,
			"lastSeen": time.Now(),
		}, memory.CollectionUsers)
	}
	if msg.Room.ID != "" && msg.Room.ID != message.DirectRoomID {
		_ = mem.Set(msg.Room.ID, map[string]interface{}{
			"name":     msg.Room.Name,
			"lastSeen": time.Now(),
		}, memory.CollectionRooms)
	}

	store := bc.Adapters.Storage()
	if store == nil {
		return
	}
	record := map[string]interface{}{
		"userId":    msg.User.ID,
		"roomId":    msg.Room.ID,
		"kind":      string(msg.Kind),
		"text":      msg.TextContent(),
		"matched":   len(st.Matched()),
		"timestamp": msg.Timestamp,
	}
	tctx, cancel := adapter.WithTimeout(ctx, bc.Config)
	defer cancel()
	if err := store.Keep(tctx, "interactions", record); err != nil {
		bc.Logger().ErrorCF("thoughtprocess", "keep interaction failed", map[string]interface{}{"error": adapter.TimeoutError(err).Error()})
	}
}
