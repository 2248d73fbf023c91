// Package server implements the transports and HTTP surface of the lobby
// relay: the newline-delimited TCP listener, the WebSocket endpoint that
// speaks the same line protocol, health, room discovery and metrics routes.
//
// The implementation is organized into specialized files for configuration,
// connection tracking, each transport, routing and HTTP handlers. All room
// semantics live in package lobby; this package only moves lines between
// sockets and the lobby dispatcher.
package server
