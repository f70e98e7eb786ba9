// Package server exposes HTTP handlers, including WebSocket upgrades, the
// status endpoint, and the built-in test page.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// statusResponse is the payload served by the status endpoint.
type statusResponse struct {
	Status string `json:"status"`
	Msg    string `json:"msg"`
}

// NewWebSocketHandler returns the handler for WebSocket upgrade requests,
// bound to the given hub. It validates that the request uses the GET method,
// enforces the origin policy, upgrades the connection, and registers the new
// client with the hub, which launches its pump goroutines.
func NewWebSocketHandler(hub *Hub, cfg *Config, logger *zap.Logger) http.HandlerFunc {
	policy := newOriginPolicy(cfg.AllowedOrigins, logger)
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     policy.check,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.String("addr", r.RemoteAddr), zap.Error(err))
			return
		}

		client := NewClient(conn, hub, r.RemoteAddr, cfg, logger)
		hub.register <- client
	}
}

// StatusHandler reports service liveness as a small JSON payload.
func StatusHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(statusResponse{
		Status: "ok",
		Msg:    "Live Chat Backend running.",
	})
}

// TestPageHandler serves an HTML page for exercising the room protocol from a
// browser: create or join a room, send messages, and watch the peer traffic.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write([]byte(testPageHTML))
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Live Relay Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; max-width: 640px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        input[type="text"] { padding: 5px; margin-right: 6px; }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        button:hover { background-color: #005a87; }
        .system { color: gray; font-style: italic; }
        .error { color: #b00020; }
    </style>
</head>
<body>
    <h1>Live Relay Test</h1>

    <div>
        <input type="text" id="username" placeholder="Username">
        <button onclick="createRoom()">Create room</button>
    </div>
    <div style="margin-top: 8px">
        <input type="text" id="roomCode" placeholder="Room code" maxlength="6">
        <button onclick="joinRoom()">Join</button>
        <button onclick="leaveRoom()">Leave</button>
    </div>

    <div id="messages"></div>

    <div>
        <input type="text" id="messageInput" placeholder="Type a message..." style="width: 400px">
        <button onclick="sendMessage()">Send</button>
    </div>

    <script>
        const ws = new WebSocket('ws://' + location.host + '/ws');
        let currentRoom = null;
        const messagesDiv = document.getElementById('messages');

        function addLine(text, cls) {
            const el = document.createElement('div');
            if (cls) el.className = cls;
            el.innerHTML = text;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function send(event, data) {
            ws.send(JSON.stringify({ event: event, data: data }));
        }

        ws.onopen = () => addLine('Connected.', 'system');
        ws.onclose = () => addLine('Disconnected.', 'system');

        ws.onmessage = (e) => {
            for (const line of e.data.split('\n')) {
                const frame = JSON.parse(line);
                switch (frame.event) {
                case 'roomCreated':
                    currentRoom = frame.data;
                    document.getElementById('roomCode').value = currentRoom;
                    addLine('Room created: ' + currentRoom, 'system');
                    break;
                case 'joinedRoom':
                    currentRoom = frame.data.roomCode;
                    addLine('Joined ' + currentRoom, 'system');
                    for (const entry of frame.data.history) addLine(entry);
                    break;
                case 'notification':
                    addLine(frame.data, 'system');
                    break;
                case 'errorMsg':
                    addLine(frame.data, 'error');
                    break;
                case 'receiveMessage':
                    const m = frame.data;
                    addLine(m.username ? '<strong>' + m.username + '</strong>: ' + m.text : m.text);
                    break;
                }
            }
        };

        function createRoom() { send('createRoom'); }

        function joinRoom() {
            send('joinRoom', {
                roomCode: document.getElementById('roomCode').value.toUpperCase(),
                username: document.getElementById('username').value
            });
        }

        function leaveRoom() {
            if (currentRoom) {
                send('leaveRoom', currentRoom);
                addLine('Left ' + currentRoom, 'system');
                currentRoom = null;
            }
        }

        function sendMessage() {
            const input = document.getElementById('messageInput');
            const text = input.value.trim();
            if (!text || !currentRoom) return;
            const username = document.getElementById('username').value;
            send('sendMessage', { roomCode: currentRoom, username: username, text: text, ts: Date.now() });
            addLine(username ? '<strong>' + username + '</strong>: ' + text : text);
            input.value = '';
        }

        document.getElementById('messageInput').addEventListener('keypress', (e) => {
            if (e.key === 'Enter') sendMessage();
        });
    </script>
</body>
</html>`
