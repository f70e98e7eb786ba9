// Package server implements the WebSocket transport for the live relay: the
// hub that owns connections and fans events out to rooms, per-connection
// clients with read/write pumps, and the HTTP surface around them.
//
// The implementation is organized into specialized files for configuration,
// hub management, clients, routing, and HTTP handlers to keep the codebase
// maintainable and testable as the project grows. Room semantics live in the
// relay package; this package only moves frames.
package server
