// Package server wires HTTP handlers into a ServeMux for the relay
// application via routing helpers.
package server

import (
	"net/http"

	"go.uber.org/zap"
)

// SetupRoutes configures and returns an HTTP ServeMux with all application
// routes: the status endpoint, the WebSocket endpoint, and the test page.
func SetupRoutes(hub *Hub, cfg *Config, logger *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", StatusHandler)
	mux.HandleFunc("/ws", NewWebSocketHandler(hub, cfg, logger))
	mux.HandleFunc("/test", TestPageHandler)
	return mux
}
