// Package relay defines the error taxonomy shared by the registry and
// session handling.
package relay

import "errors"

var (
	// ErrInvalidRoomCode indicates a join request whose room code was missing
	// or empty. It never reaches a registry lookup.
	ErrInvalidRoomCode = errors.New("invalid room code")

	// ErrRoomNotFound indicates that no active room carries the requested code.
	ErrRoomNotFound = errors.New("room not found")
)
