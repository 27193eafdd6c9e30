// Package message is the data model for inbound events: the Message
// variants, User, and Room. It generalizes the teacher's flat
// bus.InboundMessage into the tagged-variant family the thought process
// needs to tell a text message apart from a room-enter event or a
// server-originated event.
package message

import (
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the Message variants.
type Kind string

const (
	KindText     Kind = "text"
	KindEnter    Kind = "enter"
	KindLeave    Kind = "leave"
	KindTopic    Kind = "topic"
	KindServer   Kind = "server"
	KindCatchAll Kind = "catch_all"
)

// SystemUserID and DirectRoomID are the synthetic identities used when a
// message has no real user (ServerMessage) or no real room (a DM-style
// channel that doesn't model rooms).
const (
	SystemUserID = "system"
	DirectRoomID = "direct"
)

// User is a stable chat participant, deduplicated by ID across the whole
// process.
type User struct {
	ID       string
	Name     string
	RoomID   string // optional room affinity
	Metadata map[string]string
}

// Room is a stable chat room/channel, deduplicated by ID.
type Room struct {
	ID       string
	Name     string
	Metadata map[string]string
}

// NewSystemUser returns the synthetic user attached to server-originated
// messages, which per the data model invariant must still reference a
// User even though no human sent them.
func NewSystemUser() User {
	return User{ID: SystemUserID, Name: "system"}
}

// NewDirectRoom returns the synthetic room for channels that have no
// concept of a room distinct from the user (most 1:1 DM adapters).
func NewDirectRoom() Room {
	return Room{ID: DirectRoomID, Name: "direct"}
}

// Message is the common envelope every variant embeds: a unique id, a
// timestamp, and the User/Room the event is attributed to.
type Message struct {
	ID        string
	Kind      Kind
	Timestamp time.Time
	User      User
	Room      Room

	// Text carries TextMessage content, or the display topic string for
	// TopicMessage.
	Text string

	// Payload carries the arbitrary structured body of a ServerMessage.
	Payload map[string]interface{}

	// Wrapped is set only for CatchAllMessage: it points back at the
	// original, unmatched Message the act stage is re-evaluating.
	Wrapped *Message
}

func newBase(kind Kind, user User, room Room) Message {
	return Message{
		ID:        uuid.NewString(),
		Kind:      kind,
		Timestamp: time.Now(),
		User:      user,
		Room:      room,
	}
}

// NewText builds a TextMessage.
func NewText(user User, room Room, text string) Message {
	m := newBase(KindText, user, room)
	m.Text = text
	return m
}

// NewEnter builds an EnterMessage.
func NewEnter(user User, room Room) Message {
	return newBase(KindEnter, user, room)
}

// NewLeave builds a LeaveMessage.
func NewLeave(user User, room Room) Message {
	return newBase(KindLeave, user, room)
}

// NewTopic builds a TopicMessage.
func NewTopic(user User, room Room, topic string) Message {
	m := newBase(KindTopic, user, room)
	m.Text = topic
	return m
}

// NewServer builds a ServerMessage: it carries no real user, per the data
// model invariant it is attributed to the synthetic system user, and an
// arbitrary structured payload rather than chat text.
func NewServer(room Room, payload map[string]interface{}) Message {
	m := newBase(KindServer, NewSystemUser(), room)
	m.Payload = payload
	return m
}

// WrapCatchAll wraps an unmatched Message for re-evaluation at the act
// stage, per §4.6 of SPEC_FULL.md.
func WrapCatchAll(original Message) Message {
	m := newBase(KindCatchAll, original.User, original.Room)
	wrapped := original
	m.Wrapped = &wrapped
	return m
}

// IsCatchAll reports whether m is a CatchAllMessage.
func (m Message) IsCatchAll() bool { return m.Kind == KindCatchAll }

// TextContent returns the text to match against for TextMessage,
// TopicMessage, and (by unwrapping) CatchAllMessage-wrapped text
// messages; other kinds return "".
func (m Message) TextContent() string {
	switch m.Kind {
	case KindText, KindTopic:
		return m.Text
	case KindCatchAll:
		if m.Wrapped != nil {
			return m.Wrapped.TextContent()
		}
	}
	return ""
}
