// Package chat implements the message router: minting ids, appending to
// the conversation log, and presence-conditioned delivery.
package chat

import (
	"strings"

	"github.com/google/uuid"
)

// DM is the result of opening a conversation: the canonical key, a
// snapshot of the history, and the other participant's display name.
// Messages are copied out by value; receipts recorded after the snapshot
// do not retro-update it.
type DM struct {
	Key      string
	Messages []Message
	Target   string
}

// MessageRouter accepts outbound messages from a connection's current
// conversation context and routes them. Message ids are global across all
// conversations and strictly increasing.
type MessageRouter struct {
	identities *IdentityRegistry
	convs      *ConversationRegistry
	presence   *PresenceTracker
	receipts   *ReceiptAggregator
	delivery   Delivery

	nextID int64
}

// NewMessageRouter wires the router to the registries it writes through.
func NewMessageRouter(
	identities *IdentityRegistry,
	convs *ConversationRegistry,
	presence *PresenceTracker,
	receipts *ReceiptAggregator,
	delivery Delivery,
) *MessageRouter {
	return &MessageRouter{
		identities: identities,
		convs:      convs,
		presence:   presence,
		receipts:   receipts,
		delivery:   delivery,
	}
}

// Send routes a message from the connection's current conversation. It
// returns ErrNoActiveConversation when no conversation is selected and
// ErrEmptyText when the text is blank after trimming; the transport drops
// both silently. On success the message is appended to the log, delivered
// to the recipient when online, and always echoed to the sender so the
// client sees the server-assigned id and timestamp.
func (r *MessageRouter) Send(connID uuid.UUID, text string) (*Message, error) {
	ctx, exists := r.presence.Context(connID)
	if !exists || ctx.CurrentKey == "" {
		return nil, ErrNoActiveConversation
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	r.nextID++
	msg := newMessage(r.nextID, ctx.DisplayName, text, ctx.CurrentKey)
	r.convs.Append(ctx.CurrentKey, msg)
	r.receipts.Track(msg)

	if recipient := r.recipientOf(ctx); recipient != "" {
		if target, online := r.presence.ConnectionFor(recipient); online && target != connID {
			r.delivery.Deliver(target, EventPrivateMessage, msg)
		}
	}
	r.delivery.Deliver(connID, EventPrivateMessage, msg)

	return msg, nil
}

// recipientOf picks the conversation participant other than the sender.
// Participants carry the names the key was minted under, so after a rename
// the first name that differs from the sender's current one wins.
func (r *MessageRouter) recipientOf(ctx *ConnectionContext) string {
	conv := r.convs.GetOrCreate(ctx.CurrentKey)
	for _, name := range conv.Participants {
		if name != ctx.DisplayName {
			return name
		}
	}
	return ""
}

// StartDM opens (or resumes) the conversation between the caller and
// target, makes it the connection's current context, and returns the key
// plus full history. Fails with ErrUserNotFound for unregistered targets
// and ErrSelfDM when the target is the caller.
func (r *MessageRouter) StartDM(connID uuid.UUID, targetDisplayName string) (*DM, error) {
	ctx, exists := r.presence.Context(connID)
	if !exists || ctx.DisplayName == "" {
		return nil, ErrUnauthenticated
	}

	target, found := r.identities.Lookup(targetDisplayName)
	if !found {
		return nil, ErrUserNotFound
	}
	if target.Handle == normalizeHandle(ctx.DisplayName) {
		return nil, ErrSelfDM
	}

	key := ConversationKey(ctx.DisplayName, target.DisplayName)
	r.convs.GetOrCreate(key)
	r.presence.SetContext(connID, key)

	history := r.convs.History(key)
	messages := make([]Message, len(history))
	for i, msg := range history {
		messages[i] = *msg
	}

	return &DM{
		Key:      key,
		Messages: messages,
		Target:   target.DisplayName,
	}, nil
}
