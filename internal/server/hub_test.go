package server

import (
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/liverelay/liverelay/internal/relay"
)

// newHubFixture builds a hub plus clients wired straight into its map so the
// fan-out path can be exercised without live connections or pump goroutines.
func newHubFixture(t *testing.T, clientCount int) (*Hub, []*Client) {
	t.Helper()

	registry := relay.NewRegistry()
	t.Cleanup(registry.Close)

	hub := NewHub(registry, zap.NewNop())
	cfg := NewConfig()

	clients := make([]*Client, clientCount)
	for i := range clients {
		clients[i] = NewClient(nil, hub, "127.0.0.1:0", cfg, zap.NewNop())
		hub.clients[clients[i].id] = clients[i]
	}
	return hub, clients
}

func TestBroadcastToRoomDeliversToMembersExceptSender(t *testing.T) {
	hub, clients := newHubFixture(t, 3)
	sender, peer, outsider := clients[0], clients[1], clients[2]

	code := hub.registry.CreateRoom()
	for _, c := range []*Client{sender, peer} {
		if _, err := hub.registry.JoinRoom(c.id, code); err != nil {
			t.Fatalf("JoinRoom failed: %v", err)
		}
	}

	hub.BroadcastToRoom(code, relay.EventNotification, "hello", sender.id)

	select {
	case frame := <-peer.send:
		if !strings.Contains(string(frame), `"notification"`) || !strings.Contains(string(frame), "hello") {
			t.Errorf("unexpected frame delivered to peer: %s", frame)
		}
	default:
		t.Fatal("room member received no frame")
	}

	if len(sender.send) != 0 {
		t.Error("sender must be excluded from its own broadcast")
	}
	if len(outsider.send) != 0 {
		t.Error("non-member received a room broadcast")
	}
}

func TestBroadcastToRoomWithoutExclusion(t *testing.T) {
	hub, clients := newHubFixture(t, 2)

	code := hub.registry.CreateRoom()
	for _, c := range clients {
		if _, err := hub.registry.JoinRoom(c.id, code); err != nil {
			t.Fatalf("JoinRoom failed: %v", err)
		}
	}

	hub.BroadcastToRoom(code, relay.EventNotification, "to all", "")

	for i, c := range clients {
		if len(c.send) != 1 {
			t.Errorf("client %d received %d frames, want 1", i, len(c.send))
		}
	}
}

func TestBroadcastToUnknownRoomIsHarmless(t *testing.T) {
	hub, clients := newHubFixture(t, 1)

	hub.BroadcastToRoom("NOSUCH", relay.EventNotification, "void", "")

	if len(clients[0].send) != 0 {
		t.Error("broadcast to unknown room delivered a frame")
	}
}

func TestBroadcastDropsClientWithFullBuffer(t *testing.T) {
	hub, clients := newHubFixture(t, 1)
	stuck := clients[0]

	code := hub.registry.CreateRoom()
	if _, err := hub.registry.JoinRoom(stuck.id, code); err != nil {
		t.Fatalf("JoinRoom failed: %v", err)
	}

	for i := 0; i < cap(stuck.send); i++ {
		stuck.send <- []byte("filler")
	}

	hub.BroadcastToRoom(code, relay.EventNotification, "overflow", "")

	if _, exists := hub.clients[stuck.id]; exists {
		t.Error("client with full send buffer was not removed from the hub")
	}
	if members := hub.registry.Members(code); len(members) != 0 {
		t.Errorf("dropped client still occupies the room: %v", members)
	}
	if !stuck.closed {
		t.Error("dropped client was not marked closed")
	}
}

func TestSafeSendToUnregisteredClient(t *testing.T) {
	hub, clients := newHubFixture(t, 1)
	client := clients[0]
	delete(hub.clients, client.id)

	if hub.safeSend(client, []byte("x")) {
		t.Error("safeSend succeeded for an unregistered client")
	}
}

func TestEmitDeliversToOwnConnection(t *testing.T) {
	_, clients := newHubFixture(t, 2)
	client, other := clients[0], clients[1]

	client.Emit(relay.EventErrorMsg, "Room not found.")

	select {
	case frame := <-client.send:
		if !strings.Contains(string(frame), "Room not found.") {
			t.Errorf("unexpected frame: %s", frame)
		}
	default:
		t.Fatal("Emit delivered nothing to the owning connection")
	}

	if len(other.send) != 0 {
		t.Error("Emit leaked to another connection")
	}
}

func TestClientIDsAreUnique(t *testing.T) {
	_, clients := newHubFixture(t, 10)

	seen := make(map[string]struct{})
	for _, c := range clients {
		if _, dup := seen[c.ID()]; dup {
			t.Fatalf("duplicate connection id %q", c.ID())
		}
		seen[c.ID()] = struct{}{}
	}
}
