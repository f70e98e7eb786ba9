// Package relay implements the transport-agnostic core of the live relay:
// room codes, the room registry, and per-connection session dispatch.
//
// The package never touches the network. Connections are referenced by opaque
// string identifiers, and everything a session emits goes through the Emitter
// and Broadcaster interfaces so the core can be exercised without a transport.
package relay
