// Package chat implements the core session and conversation state machine
// for the Whismur direct-message server.
//
// The package owns identity registration and authentication, deterministic
// two-party conversation addressing, presence tracking, message routing, and
// read-receipt aggregation. It is pure in-memory state with no knowledge of
// the transport; delivery to live connections happens through the Delivery
// interface implemented by the WebSocket hub.
package chat
