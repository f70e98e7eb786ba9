// Package relay implements per-connection session dispatch: translating
// inbound client events into registry mutations and outbound emissions.
package relay

import (
	"encoding/json"
	"errors"

	"go.uber.org/zap"
)

// User-visible strings. Clients render these verbatim.
const (
	msgInvalidRoomCode = "Invalid room code."
	msgRoomNotFound    = "Room not found."
	msgJoinFailed      = "Server error while joining."
	msgUserLeft        = "A user left the room."
	anonymousName      = "Someone"
)

// Emitter delivers one event to the connection that owns the session.
// Delivery is best-effort and must not block.
type Emitter interface {
	Emit(event string, payload any)
}

// Broadcaster delivers one event to every current member of a room, skipping
// excludeID when it is non-empty. Delivery is best-effort fan-out with no
// acknowledgement; ordering is FIFO per room for a single originating call
// sequence.
type Broadcaster interface {
	BroadcastToRoom(roomCode, event string, payload any, excludeID string)
}

// Session dispatches one connection's inbound events. It owns no transport
// state: the connection is referenced only by its identifier, and all output
// flows through the Emitter and Broadcaster it was built with.
type Session struct {
	connID   string
	registry *Registry
	emitter  Emitter
	caster   Broadcaster
	logger   *zap.Logger
}

// NewSession creates a session for one connection.
func NewSession(connID string, registry *Registry, emitter Emitter, caster Broadcaster, logger *zap.Logger) *Session {
	return &Session{
		connID:   connID,
		registry: registry,
		emitter:  emitter,
		caster:   caster,
		logger:   logger,
	}
}

// ConnID returns the identifier of the connection this session serves.
func (s *Session) ConnID() string {
	return s.connID
}

// HandleEvent routes one inbound envelope. Failures never escape the session:
// a panic while joining surfaces to the requester as a generic error message,
// and a panic while sending is logged and dropped, so one connection's
// failure cannot affect other connections or rooms.
func (s *Session) HandleEvent(env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("event handling failed",
				zap.String("event", env.Event),
				zap.String("conn", s.connID),
				zap.Any("panic", r))
			if env.Event == EventJoinRoom {
				s.emitter.Emit(EventErrorMsg, msgJoinFailed)
			}
		}
	}()

	switch env.Event {
	case EventCreateRoom:
		s.handleCreateRoom()
	case EventJoinRoom:
		s.handleJoinRoom(env.Data)
	case EventLeaveRoom:
		s.handleLeaveRoom(env.Data)
	case EventSendMessage:
		s.handleSendMessage(env.Data)
	default:
		s.logger.Debug("ignoring unknown event",
			zap.String("event", env.Event),
			zap.String("conn", s.connID))
	}
}

// handleCreateRoom registers a fresh room, joins the creator to it, and
// confirms the code to the requester only.
func (s *Session) handleCreateRoom() {
	code := s.registry.CreateRoom()
	if _, err := s.registry.JoinRoom(s.connID, code); err != nil {
		// The room was registered one line above; this cannot fail.
		s.logger.Error("creator join failed", zap.String("room", code), zap.Error(err))
		return
	}
	s.emitter.Emit(EventRoomCreated, code)
	s.logger.Info("room created", zap.String("room", code), zap.String("conn", s.connID))
}

// handleJoinRoom validates the request, joins the room, replays history to
// the joiner, and announces the arrival to the other members.
func (s *Session) handleJoinRoom(data json.RawMessage) {
	var req JoinRequest
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			s.emitter.Emit(EventErrorMsg, msgInvalidRoomCode)
			return
		}
	}

	history, err := s.registry.JoinRoom(s.connID, req.RoomCode)
	switch {
	case errors.Is(err, ErrInvalidRoomCode):
		s.emitter.Emit(EventErrorMsg, msgInvalidRoomCode)
	case errors.Is(err, ErrRoomNotFound):
		s.emitter.Emit(EventErrorMsg, msgRoomNotFound)
	case err != nil:
		s.logger.Error("join failed",
			zap.String("room", req.RoomCode),
			zap.String("conn", s.connID),
			zap.Error(err))
		s.emitter.Emit(EventErrorMsg, msgJoinFailed)
	default:
		s.emitter.Emit(EventJoinedRoom, JoinedRoom{RoomCode: req.RoomCode, History: history})
		name := req.Username
		if name == "" {
			name = anonymousName
		}
		s.caster.BroadcastToRoom(req.RoomCode, EventNotification, name+" joined the room.", s.connID)
	}
}

// handleLeaveRoom removes the connection from the room and notifies the
// remaining members. The payload is the bare room code; a missing or empty
// code is a silent no-op. The notification deliberately does not name the
// leaver.
func (s *Session) handleLeaveRoom(data json.RawMessage) {
	var code string
	if len(data) == 0 || json.Unmarshal(data, &code) != nil || code == "" {
		return
	}

	s.registry.LeaveRoom(s.connID, code)
	s.caster.BroadcastToRoom(code, EventNotification, msgUserLeft, s.connID)
}

// handleSendMessage fans a chat message out to the other members of the room
// and records the rendered entry in the room's history. Missing room code or
// text drops the message silently.
func (s *Session) handleSendMessage(data json.RawMessage) {
	if len(data) == 0 {
		return
	}

	var msg ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Debug("dropping malformed message",
			zap.String("conn", s.connID),
			zap.Error(err))
		return
	}
	if msg.RoomCode == "" || msg.Text == "" {
		return
	}

	out := ChatMessage{Username: msg.Username, Text: msg.Text, Ts: msg.Ts}
	s.caster.BroadcastToRoom(msg.RoomCode, EventReceiveMessage, out, s.connID)
	s.registry.RecordMessage(msg.RoomCode, FormatHistoryEntry(msg.Username, msg.Text))
}

// HandleDisconnect removes the connection from every room it occupies. Peers
// are not notified; only an explicit leaveRoom announces a departure.
func (s *Session) HandleDisconnect() {
	s.registry.RemoveConnection(s.connID)
}
