// Package server implements the HTTP and WebSocket transport for the
// Whismur direct-message service.
//
// The implementation is organized into specialized files for configuration,
// hub management, clients, event dispatch, routing, and HTTP handlers to
// keep the codebase maintainable and testable as the project grows. The
// session and conversation semantics live in internal/chat; this package
// only frames events, gates unauthenticated connections, and moves bytes.
package server
