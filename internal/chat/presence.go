// Package chat implements the presence tracker: which identity a live
// connection represents and which conversation it is viewing.
package chat

import "github.com/google/uuid"

// ConnectionContext is the per-connection session state. DisplayName is
// empty until authentication succeeds; CurrentKey is empty until the
// connection opens a conversation.
type ConnectionContext struct {
	ConnID      uuid.UUID
	DisplayName string
	CurrentKey  string
}

// PresenceTracker maps live connections to identities and identities to
// their current delivery target. Presence is best effort: a user's record
// keeps a stale connection id after disconnect, and only the maps here
// decide whether delivery is attempted.
type PresenceTracker struct {
	contexts map[uuid.UUID]*ConnectionContext
	byName   map[string]uuid.UUID // display name -> live connection
}

// NewPresenceTracker returns an empty tracker.
func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{
		contexts: make(map[uuid.UUID]*ConnectionContext),
		byName:   make(map[string]uuid.UUID),
	}
}

// Open creates the context for a freshly opened connection.
func (t *PresenceTracker) Open(connID uuid.UUID) {
	t.contexts[connID] = &ConnectionContext{ConnID: connID}
}

// Bind records that connID now represents displayName. A user
// authenticating from a new connection displaces any previous one as the
// delivery target; last authenticated wins. A connection re-authenticating
// as someone else releases the identity it held before, so the old name
// stops routing here.
func (t *PresenceTracker) Bind(connID uuid.UUID, displayName string) {
	ctx, exists := t.contexts[connID]
	if !exists {
		ctx = &ConnectionContext{ConnID: connID}
		t.contexts[connID] = ctx
	}
	if prev := ctx.DisplayName; prev != "" && prev != displayName {
		if bound, ok := t.byName[prev]; ok && bound == connID {
			delete(t.byName, prev)
		}
	}
	ctx.DisplayName = displayName
	t.byName[displayName] = connID
}

// SetContext records which conversation the connection is viewing.
func (t *PresenceTracker) SetContext(connID uuid.UUID, conversationKey string) {
	if ctx, exists := t.contexts[connID]; exists {
		ctx.CurrentKey = conversationKey
	}
}

// Rename moves the identity binding from the old display name to the new
// one for a connection that stays live through the rename.
func (t *PresenceTracker) Rename(connID uuid.UUID, oldName, newName string) {
	if bound, exists := t.byName[oldName]; exists && bound == connID {
		delete(t.byName, oldName)
	}
	t.byName[newName] = connID
	if ctx, exists := t.contexts[connID]; exists {
		ctx.DisplayName = newName
	}
}

// Unbind tears down the connection's context on disconnect. The identity
// binding is removed only if it still points at this connection, so a
// displaced login does not knock out its successor.
func (t *PresenceTracker) Unbind(connID uuid.UUID) {
	ctx, exists := t.contexts[connID]
	if !exists {
		return
	}
	delete(t.contexts, connID)
	if ctx.DisplayName == "" {
		return
	}
	if bound, ok := t.byName[ctx.DisplayName]; ok && bound == connID {
		delete(t.byName, ctx.DisplayName)
	}
}

// Context returns the session state for a connection.
func (t *PresenceTracker) Context(connID uuid.UUID) (*ConnectionContext, bool) {
	ctx, exists := t.contexts[connID]
	return ctx, exists
}

// ConnectionFor resolves the current delivery target for a display name,
// or reports the user offline.
func (t *PresenceTracker) ConnectionFor(displayName string) (uuid.UUID, bool) {
	connID, exists := t.byName[displayName]
	return connID, exists
}
