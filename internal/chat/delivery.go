// Package chat declares the outbound delivery boundary between the core
// and the transport.
package chat

import "github.com/google/uuid"

// Push event names sent from the server to clients.
const (
	EventPrivateMessage    = "privateMessage"
	EventMessageSeenUpdate = "messageSeenUpdate"
	EventTyping            = "typing"
	EventYourDisplayName   = "yourDisplayName"
)

// Delivery is implemented by the transport hub. Deliver targets a single
// connection; Broadcast fans out to every live connection except the
// excluded ones.
//
// Typing and seen updates currently broadcast to all connections rather
// than to the conversation's two participants. That mirrors the original
// behavior; a conversation-scoped variant would be a new method here, with
// no caller changes beyond the Receipt Aggregator and typing handler.
type Delivery interface {
	Deliver(connID uuid.UUID, event string, payload any)
	Broadcast(event string, payload any, exclude ...uuid.UUID)
}
