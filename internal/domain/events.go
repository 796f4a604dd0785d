package domain

import "time"

// Socket event names pushed to live connections.
const EventNewMessage = "newMessage"

// SocketEvent is the envelope written to a receiver's live connection.
type SocketEvent struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// NewMessageEvent wraps a created message for fan-out delivery.
func NewMessageEvent(msg *MessageResponse) *SocketEvent {
	return &SocketEvent{Event: EventNewMessage, Payload: msg}
}

// Audit actions recorded on the message-events stream.
const (
	ActionMessageSent    = "message.sent"
	ActionMessageRead    = "message.read"
	ActionMessageDeleted = "message.deleted"
)

// MessageEvent is the audit record produced for each message lifecycle
// transition. Keyed by conversation ID so per-conversation ordering is
// preserved on a partitioned topic.
type MessageEvent struct {
	Action         string    `json:"action"`
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	SenderID       string    `json:"sender_id"`
	ReceiverID     string    `json:"receiver_id"`
	MessageType    string    `json:"message_type,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}
