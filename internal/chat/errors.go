// Package chat defines the sentinel errors shared by the core components.
package chat

import "errors"

var (
	// ErrInvalidFormat reports a display name or secret that violates the
	// length or character constraints.
	ErrInvalidFormat = errors.New("invalid name or password format")

	// ErrUsernameTaken reports a signup attempt for a handle that is
	// already registered, regardless of display-name casing.
	ErrUsernameTaken = errors.New("username taken")

	// ErrInvalidCredentials reports a failed login. The same error covers
	// unknown handles and wrong secrets to avoid user enumeration.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserNotFound reports a DM target whose display name is not
	// registered.
	ErrUserNotFound = errors.New("user not found")

	// ErrSelfDM reports an attempt to open a conversation with oneself.
	ErrSelfDM = errors.New("cannot message yourself")

	// ErrNoActiveConversation reports a message sent by a connection that
	// has not selected a conversation. The transport drops it silently;
	// the error exists so tests can assert on the outcome directly.
	ErrNoActiveConversation = errors.New("no active conversation")

	// ErrEmptyText reports a message whose text is blank after trimming.
	// Dropped silently by the transport, like ErrNoActiveConversation.
	ErrEmptyText = errors.New("empty message text")

	// ErrUnauthenticated reports an operation on a connection that has not
	// completed authentication.
	ErrUnauthenticated = errors.New("connection not authenticated")
)
