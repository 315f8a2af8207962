package chat

import "encoding/json"

// Payload is the closed set of peer-visible payloads a live connection may
// receive. Implementations marshal themselves to their wire shape.
type Payload interface {
	payload()
}

// ConnectionEstablished replays a group's stored history; sent exactly once,
// right after authorization succeeds and before any live traffic.
type ConnectionEstablished struct {
	Chats []MessageView
}

func (ConnectionEstablished) payload() {}

func (p ConnectionEstablished) MarshalJSON() ([]byte, error) {
	chats := p.Chats
	if chats == nil {
		chats = []MessageView{}
	}
	return json.Marshal(struct {
		Type    string        `json:"type"`
		Message string        `json:"message"`
		Chats   []MessageView `json:"chats"`
	}{Type: "connection_established", Message: "connected", Chats: chats})
}

// MessageBroadcast carries one persisted message to every live group peer.
type MessageBroadcast struct {
	Chat MessageView
}

func (MessageBroadcast) payload() {}

func (p MessageBroadcast) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string      `json:"type"`
		Chat MessageView `json:"chat"`
	}{Type: "chat_message", Chat: p.Chat})
}

// Notice is an untagged, point-to-point advisory: the authorization rejection
// on connect, or a persistence failure reported back to the sender only.
type Notice struct {
	Message string `json:"message"`
}

func (Notice) payload() {}

// Inbound is the only accepted client payload; an absent or empty Message is
// silently dropped.
type Inbound struct {
	Message string `json:"message"`
}
