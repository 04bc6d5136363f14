// Package server routes inbound client events into the chat core and maps
// core errors onto the acknowledgment contract.
package server

import (
	"encoding/json"
	"errors"

	"github.com/whismur/whismur/internal/chat"
)

// errorMessage maps a core error to the string clients see in a
// {success:false, error} acknowledgment.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, chat.ErrUsernameTaken):
		return "Username taken"
	case errors.Is(err, chat.ErrInvalidFormat):
		return "Name must be 3-20 characters and password at least 4"
	case errors.Is(err, chat.ErrInvalidCredentials):
		return "Invalid username or password"
	case errors.Is(err, chat.ErrUserNotFound):
		return "User not found"
	case errors.Is(err, chat.ErrSelfDM):
		return "You cannot message yourself"
	default:
		return "Request failed"
	}
}

// dispatch parses an inbound frame and routes it. Everything except
// authenticate requires a prior successful authentication on this
// connection; gated events are dropped before reaching the core.
func (c *Client) dispatch(raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.log.Warn("invalid event frame", "err", err)
		return
	}

	if env.Event == eventAuthenticate {
		c.handleAuthenticate(env)
		return
	}

	if !c.authenticated {
		c.log.Warn("dropping event from unauthenticated connection", "event", env.Event)
		return
	}

	switch env.Event {
	case eventChatMessage:
		c.handleChatMessage(env)
	case eventStartDM:
		c.handleStartDM(env)
	case eventSeen:
		c.handleSeen(env)
	case eventChangeDisplayName:
		c.handleChangeDisplayName(env)
	case eventTyping:
		c.handleTyping(env)
	default:
		c.log.Warn("unknown event", "event", env.Event)
	}
}

func (c *Client) handleAuthenticate(env Envelope) {
	var req AuthRequest
	if err := json.Unmarshal(env.Data, &req); err != nil {
		c.ack(env.Ack, AuthAck{Success: false, Error: "Malformed request"})
		return
	}

	displayName, err := c.hub.core.Authenticate(c.id, req.Username, req.Password, req.IsSignup)
	if err != nil {
		c.ack(env.Ack, AuthAck{Success: false, Error: errorMessage(err)})
		return
	}

	c.authenticated = true
	c.ack(env.Ack, AuthAck{Success: true, DisplayName: displayName})
}

// handleChatMessage routes a message from the connection's current
// conversation. Blank text and a missing conversation context are dropped
// without any signal to the caller.
func (c *Client) handleChatMessage(env Envelope) {
	var text string
	if err := json.Unmarshal(env.Data, &text); err != nil {
		c.log.Warn("malformed chatMessage payload", "err", err)
		return
	}
	_, _ = c.hub.core.SendMessage(c.id, text)
}

func (c *Client) handleStartDM(env Envelope) {
	var req StartDMRequest
	if err := json.Unmarshal(env.Data, &req); err != nil {
		c.ack(env.Ack, StartDMAck{Success: false, Error: "Malformed request"})
		return
	}

	dm, err := c.hub.core.StartDM(c.id, req.TargetDisplayName)
	if err != nil {
		c.ack(env.Ack, StartDMAck{Success: false, Error: errorMessage(err)})
		return
	}

	messages := dm.Messages
	if messages == nil {
		messages = []chat.Message{}
	}
	c.ack(env.Ack, StartDMAck{
		Success:           true,
		DMKey:             dm.Key,
		Messages:          messages,
		TargetDisplayName: dm.Target,
	})
}

func (c *Client) handleSeen(env Envelope) {
	var req SeenRequest
	if err := json.Unmarshal(env.Data, &req); err != nil {
		c.log.Warn("malformed seen payload", "err", err)
		return
	}
	c.hub.core.MarkSeen(c.id, req.MessageID)
}

// handleChangeDisplayName has no acknowledgment; the core pushes
// yourDisplayName on success and failures are dropped.
func (c *Client) handleChangeDisplayName(env Envelope) {
	var newName string
	if err := json.Unmarshal(env.Data, &newName); err != nil {
		c.log.Warn("malformed changeDisplayName payload", "err", err)
		return
	}
	if _, err := c.hub.core.Rename(c.id, newName); err != nil {
		c.log.Info("rename rejected", "err", err)
	}
}

func (c *Client) handleTyping(env Envelope) {
	var req TypingRequest
	if err := json.Unmarshal(env.Data, &req); err != nil {
		c.log.Warn("malformed typing payload", "err", err)
		return
	}
	c.hub.core.Typing(c.id, req.IsTyping)
}

// ack sends an acknowledgment frame when the request carried a correlation
// id; fire-and-forget requests get nothing.
func (c *Client) ack(ackID int64, payload any) {
	if ackID == 0 {
		return
	}
	data, err := encodeAck(ackID, payload)
	if err != nil {
		c.log.Error("failed to encode ack", "err", err)
		return
	}
	c.hub.safeSend(c, data)
}
