// Package chat implements the conversation registry: canonical two-party
// keys and the ordered message log per conversation.
package chat

import "strings"

// keyDelimiter separates the two participant names inside a conversation
// key. Display-name validation excludes it, so keys parse unambiguously.
const keyDelimiter = ":"

// Conversation is a two-party message thread. Participants are the display
// names the key was minted under; a later rename does not rewrite them.
type Conversation struct {
	Key          string
	Participants [2]string

	messages []*Message
}

// ConversationKey returns the canonical key for a DM between the two named
// participants: the names sorted lexicographically and joined with a colon.
// The key is invariant under argument order.
func ConversationKey(nameA, nameB string) string {
	if nameA > nameB {
		nameA, nameB = nameB, nameA
	}
	return nameA + keyDelimiter + nameB
}

// ConversationRegistry owns every conversation, keyed by canonical key.
// Conversations are created lazily and never deleted.
type ConversationRegistry struct {
	conversations map[string]*Conversation
}

// NewConversationRegistry returns an empty registry.
func NewConversationRegistry() *ConversationRegistry {
	return &ConversationRegistry{conversations: make(map[string]*Conversation)}
}

// GetOrCreate returns the conversation for key, creating an empty one on
// first use. Idempotent.
func (r *ConversationRegistry) GetOrCreate(key string) *Conversation {
	if conv, exists := r.conversations[key]; exists {
		return conv
	}

	a, b, _ := strings.Cut(key, keyDelimiter)
	conv := &Conversation{
		Key:          key,
		Participants: [2]string{a, b},
	}
	r.conversations[key] = conv
	return conv
}

// Append adds a message to the end of the conversation's log.
func (r *ConversationRegistry) Append(key string, m *Message) {
	conv := r.GetOrCreate(key)
	conv.messages = append(conv.messages, m)
}

// History returns the conversation's full ordered log. The slice is a copy;
// the messages themselves are shared.
func (r *ConversationRegistry) History(key string) []*Message {
	conv, exists := r.conversations[key]
	if !exists {
		return nil
	}
	return append([]*Message(nil), conv.messages...)
}
