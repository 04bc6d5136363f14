// Package chat defines the message payload type shared by the conversation
// log, the router, and the receipt aggregator.
package chat

import "time"

// Message is a single direct message. Once appended to a conversation log
// everything but the viewer set is immutable: the id, sender, text, and
// timestamp never change. The viewer set grows through the receipt
// aggregator and always contains at least the sender; SeenCount mirrors
// its size so serialized messages carry the receipt state.
type Message struct {
	ID              int64     `json:"id"`
	From            string    `json:"from"`
	Text            string    `json:"text"`
	Timestamp       time.Time `json:"timestamp"`
	ConversationKey string    `json:"dmKey"`
	SeenCount       int       `json:"seenCount"`

	viewers map[string]struct{}
}

func newMessage(id int64, from, text, key string) *Message {
	return &Message{
		ID:              id,
		From:            from,
		Text:            text,
		Timestamp:       time.Now(),
		ConversationKey: key,
		SeenCount:       1,
		viewers:         map[string]struct{}{from: {}},
	}
}

// markViewed adds viewer to the message's viewer set and reports whether the
// set changed. Re-marking by the same viewer is a no-op.
func (m *Message) markViewed(viewer string) bool {
	if _, ok := m.viewers[viewer]; ok {
		return false
	}
	m.viewers[viewer] = struct{}{}
	m.SeenCount = len(m.viewers)
	return true
}

// ViewerCount returns how many participants have seen the message,
// counting the sender.
func (m *Message) ViewerCount() int {
	return len(m.viewers)
}
