// Package chat implements the receipt aggregator: per-message viewer sets
// and seen-count fan-out.
package chat

// ReceiptAggregator tracks which participants have acknowledged viewing
// each message. It indexes every routed message by id so a seen event can
// resolve its target directly.
type ReceiptAggregator struct {
	byID     map[int64]*Message
	delivery Delivery
}

// SeenUpdate is the payload broadcast when a message's viewer count
// changes (or is re-confirmed).
type SeenUpdate struct {
	MessageID int64 `json:"messageId"`
	Count     int   `json:"count"`
}

// NewReceiptAggregator returns an empty aggregator pushing updates through
// delivery.
func NewReceiptAggregator(delivery Delivery) *ReceiptAggregator {
	return &ReceiptAggregator{
		byID:     make(map[int64]*Message),
		delivery: delivery,
	}
}

// Track registers a freshly routed message so later seen events can find it.
func (a *ReceiptAggregator) Track(m *Message) {
	a.byID[m.ID] = m
}

// MarkSeen records that viewer has seen the message and broadcasts the
// updated count to every connection. Unknown ids are a no-op. Idempotent:
// a repeat mark by the same viewer leaves the count unchanged.
//
// The broadcast goes to all connections, not just the conversation's two
// participants; see Delivery.
func (a *ReceiptAggregator) MarkSeen(viewer string, messageID int64) {
	m, exists := a.byID[messageID]
	if !exists {
		return
	}
	m.markViewed(viewer)
	a.delivery.Broadcast(EventMessageSeenUpdate, SeenUpdate{
		MessageID: m.ID,
		Count:     m.ViewerCount(),
	})
}
