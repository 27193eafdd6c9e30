package message

import "fmt"

// Method tags an Envelope with how it should be delivered. Once set to
// a non-empty value it cannot be changed to a different one, per the
// "method tag can be set once" invariant in the data model.
type Method string

const (
	MethodUnset Method = ""
	MethodSend  Method = "send"
	MethodReply Method = "reply"
	MethodReact Method = "react"
	MethodEmote Method = "emote"
	MethodTopic Method = "topic"
)

// Envelope is one outgoing payload accumulated by a branch callback and
// later drained through the message adapter's Dispatch.
type Envelope struct {
	User    User
	Room    Room
	Texts   []string
	Payload map[string]interface{}
	method  Method
}

// NewEnvelope targets an Envelope at a user/room.
func NewEnvelope(user User, room Room) *Envelope {
	return &Envelope{User: user, Room: room}
}

// Write appends text to the envelope.
func (e *Envelope) Write(text ...string) {
	e.Texts = append(e.Texts, text...)
}

// SetMethod assigns the delivery method. Calling it again with a
// different, already-set method returns an error.
func (e *Envelope) SetMethod(m Method) error {
	if e.method != MethodUnset && e.method != m {
		return fmt.Errorf("envelope: method already set to %q, cannot change to %q", e.method, m)
	}
	e.method = m
	return nil
}

// Method reports the envelope's delivery method, defaulting to
// MethodSend when never explicitly set.
func (e *Envelope) Method() Method {
	if e.method == MethodUnset {
		return MethodSend
	}
	return e.method
}
