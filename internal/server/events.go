// Package server defines the JSON event envelope and payload shapes
// exchanged with clients over the WebSocket.
package server

import (
	"encoding/json"

	"github.com/whismur/whismur/internal/chat"
)

// Client-to-server event names.
const (
	eventAuthenticate      = "authenticate"
	eventChatMessage       = "chatMessage"
	eventStartDM           = "startDM"
	eventSeen              = "seen"
	eventChangeDisplayName = "changeDisplayName"
	eventTyping            = "typing"

	// eventAck carries the acknowledgment for a request that asked for one.
	eventAck = "ack"
)

// Envelope is the wire frame for every event in both directions. Ack is a
// client-chosen correlation id; when non-zero the server answers with an
// "ack" frame carrying the same number.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   int64           `json:"ack,omitempty"`
}

// AuthRequest is the authenticate payload. IsSignup selects registration
// over login.
type AuthRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	IsSignup bool   `json:"isSignup"`
}

// AuthAck is the authenticate acknowledgment.
type AuthAck struct {
	Success     bool   `json:"success"`
	DisplayName string `json:"displayName,omitempty"`
	Error       string `json:"error,omitempty"`
}

// StartDMRequest is the startDM payload.
type StartDMRequest struct {
	TargetDisplayName string `json:"targetDisplayName"`
}

// StartDMAck is the startDM acknowledgment: the canonical key, the full
// history, and the peer's display name.
type StartDMAck struct {
	Success           bool           `json:"success"`
	DMKey             string         `json:"dmKey,omitempty"`
	Messages          []chat.Message `json:"messages"`
	TargetDisplayName string         `json:"targetDisplayName,omitempty"`
	Error             string         `json:"error,omitempty"`
}

// SeenRequest is the seen payload.
type SeenRequest struct {
	MessageID int64 `json:"messageId"`
}

// TypingRequest is the typing payload.
type TypingRequest struct {
	IsTyping bool `json:"isTyping"`
}

// encodeEvent marshals a server push frame.
func encodeEvent(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// encodeAck marshals the acknowledgment frame for request ackID.
func encodeAck(ackID int64, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: eventAck, Ack: ackID, Data: data})
}
