package websocket

import (
	"context"
	"testing"

	"github.com/weavebot/weavebot/pkg/message"
)

func TestDispatchWithNoConnectionErrors(t *testing.T) {
	a := &Adapter{conns: make(map[string]*conn)}
	env := &message.Envelope{Room: message.Room{ID: "room-1"}, Texts: []string{"hi"}}

	if err := a.Dispatch(context.Background(), env); err == nil {
		t.Fatal("expected an error dispatching to a room with no live connection")
	}
}

func TestRememberAndForgetConn(t *testing.T) {
	a := &Adapter{conns: make(map[string]*conn)}
	c := &conn{}

	a.rememberConn("room-1", c)
	if a.conns["room-1"] != c {
		t.Fatal("expected rememberConn to register the connection under its room")
	}

	a.forgetConn(c)
	if _, ok := a.conns["room-1"]; ok {
		t.Fatal("expected forgetConn to remove every mapping to the connection")
	}
}

func TestForgetConnOnlyRemovesMatchingEntries(t *testing.T) {
	a := &Adapter{conns: make(map[string]*conn)}
	c1, c2 := &conn{}, &conn{}
	a.rememberConn("room-1", c1)
	a.rememberConn("room-2", c2)

	a.forgetConn(c1)

	if _, ok := a.conns["room-1"]; ok {
		t.Error("expected room-1's connection to be forgotten")
	}
	if a.conns["room-2"] != c2 {
		t.Error("expected room-2's connection to be untouched")
	}
}
