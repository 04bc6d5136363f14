// Package chat assembles the registries, router, and aggregator behind a
// single facade the transport dispatches into.
package chat

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// TypingUpdate is the transient payload broadcast while a user types.
type TypingUpdate struct {
	User     string `json:"user"`
	IsTyping bool   `json:"isTyping"`
}

// NameUpdate carries a connection's display name after a successful rename.
type NameUpdate struct {
	Name string `json:"name"`
}

// Core is the server-side state machine. All state lives in the injected
// registries, so tests build isolated instances; nothing here is a package
// singleton.
//
// Every inbound event is serialized under one mutex. The reference system
// ran a single-threaded event loop, and several read-modify-write
// sequences (handle-free check then insert, conversation get-or-create)
// rely on that serialization; the mutex reproduces it under concurrent
// connection readers. No operation blocks while holding the lock —
// delivery only enqueues onto buffered per-client channels.
type Core struct {
	mu         sync.Mutex
	identities *IdentityRegistry
	convs      *ConversationRegistry
	presence   *PresenceTracker
	receipts   *ReceiptAggregator
	router     *MessageRouter
	delivery   Delivery
	log        *slog.Logger
}

// NewCore builds a core with fresh, empty registries.
func NewCore(delivery Delivery, log *slog.Logger) *Core {
	identities := NewIdentityRegistry()
	convs := NewConversationRegistry()
	presence := NewPresenceTracker()
	receipts := NewReceiptAggregator(delivery)

	return &Core{
		identities: identities,
		convs:      convs,
		presence:   presence,
		receipts:   receipts,
		router:     NewMessageRouter(identities, convs, presence, receipts, delivery),
		delivery:   delivery,
		log:        log,
	}
}

// Connect creates the session context for a newly opened connection.
func (c *Core) Connect(connID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.presence.Open(connID)
	c.log.Debug("connection opened", "conn", connID)
}

// Authenticate signs the connection in, registering a new user first when
// isSignup is set. On success the user's connection id is updated, the
// presence binding displaces any previous connection for the identity, and
// the authoritative display name is returned.
func (c *Core) Authenticate(connID uuid.UUID, username, secret string, isSignup bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		user *User
		err  error
	)
	if isSignup {
		user, err = c.identities.Register(username, secret)
	} else {
		user, err = c.identities.Authenticate(username, secret)
	}
	if err != nil {
		c.log.Info("authentication failed", "username", username, "signup", isSignup, "err", err)
		return "", err
	}

	user.ConnID = connID
	c.presence.Bind(connID, user.DisplayName)
	c.log.Info("authenticated", "user", user.DisplayName, "conn", connID, "signup", isSignup)
	return user.DisplayName, nil
}

// SendMessage routes text from the connection's current conversation.
// Failures are returned for the transport to drop silently.
func (c *Core) SendMessage(connID uuid.UUID, text string) (*Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg, err := c.router.Send(connID, text)
	if err != nil {
		c.log.Debug("message dropped", "conn", connID, "err", err)
		return nil, err
	}
	c.log.Debug("message routed", "id", msg.ID, "from", msg.From, "dm", msg.ConversationKey)
	return msg, nil
}

// StartDM opens the conversation with the target and selects it as the
// connection's current context.
func (c *Core) StartDM(connID uuid.UUID, targetDisplayName string) (*DM, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.router.StartDM(connID, targetDisplayName)
}

// MarkSeen records a read receipt for the message on behalf of the
// connection's identity. Unauthenticated connections and unknown message
// ids are a no-op.
func (c *Core) MarkSeen(connID uuid.UUID, messageID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, exists := c.presence.Context(connID)
	if !exists || ctx.DisplayName == "" {
		return
	}
	c.receipts.MarkSeen(ctx.DisplayName, messageID)
}

// Rename changes the connection's display name and pushes the new name
// back to it. Existing conversation keys keep the old name.
func (c *Core) Rename(connID uuid.UUID, newDisplayName string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, exists := c.presence.Context(connID)
	if !exists || ctx.DisplayName == "" {
		return "", ErrUnauthenticated
	}

	user, found := c.identities.Lookup(ctx.DisplayName)
	if !found {
		return "", ErrUserNotFound
	}

	oldName := user.DisplayName
	if err := c.identities.Rename(user, newDisplayName); err != nil {
		return "", err
	}
	c.presence.Rename(connID, oldName, user.DisplayName)

	c.delivery.Deliver(connID, EventYourDisplayName, NameUpdate{Name: user.DisplayName})
	c.log.Info("renamed", "from", oldName, "to", user.DisplayName)
	return user.DisplayName, nil
}

// Typing broadcasts a transient typing signal to every other connection.
// No state is kept.
func (c *Core) Typing(connID uuid.UUID, isTyping bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, exists := c.presence.Context(connID)
	if !exists || ctx.DisplayName == "" {
		return
	}
	c.delivery.Broadcast(EventTyping, TypingUpdate{User: ctx.DisplayName, IsTyping: isTyping}, connID)
}

// Disconnect tears down the connection's session state. Messages already
// appended to conversation logs are unaffected.
func (c *Core) Disconnect(connID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.presence.Unbind(connID)
	c.log.Debug("connection closed", "conn", connID)
}
