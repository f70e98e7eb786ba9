// Package relay declares the wire-level event names and payload types
// exchanged with clients.
package relay

import "encoding/json"

// Inbound event names sent by clients.
const (
	EventCreateRoom  = "createRoom"
	EventJoinRoom    = "joinRoom"
	EventLeaveRoom   = "leaveRoom"
	EventSendMessage = "sendMessage"
)

// Outbound event names emitted to clients.
const (
	EventRoomCreated    = "roomCreated"
	EventJoinedRoom     = "joinedRoom"
	EventNotification   = "notification"
	EventErrorMsg       = "errorMsg"
	EventReceiveMessage = "receiveMessage"
)

// Envelope is the frame shared by both directions: an event name plus an
// event-specific payload. The payload stays raw until the event name is known.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinRequest is the payload of a joinRoom event.
type JoinRequest struct {
	RoomCode string `json:"roomCode"`
	Username string `json:"username,omitempty"`
}

// ChatMessage is the payload of a sendMessage event and, without the room
// code, of the receiveMessage event fanned out to peers. Ts is kept opaque:
// clients stamp it and peers render it, the server never interprets it.
type ChatMessage struct {
	RoomCode string          `json:"roomCode,omitempty"`
	Username string          `json:"username,omitempty"`
	Text     string          `json:"text"`
	Ts       json.RawMessage `json:"ts,omitempty"`
}

// JoinedRoom is the payload confirming a successful join, carrying the
// room's retained history for the late joiner.
type JoinedRoom struct {
	RoomCode string   `json:"roomCode"`
	History  []string `json:"history"`
}

// EncodeEnvelope marshals an outbound event into its wire frame.
func EncodeEnvelope(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// FormatHistoryEntry renders one retained history line. Entries are stored
// pre-rendered so late joiners receive exactly what live members saw.
func FormatHistoryEntry(username, text string) string {
	if username == "" {
		return text
	}
	return "<strong>" + username + "</strong>: " + text
}
