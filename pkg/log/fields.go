package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor (matches pkg/middleware/auth.go keys)
	FieldUserID   = "user_id"
	FieldUsername = "username"

	// Messaging
	FieldSenderID       = "sender_id"
	FieldReceiverID     = "receiver_id"
	FieldConversationID = "conversation_id"
	FieldMessageID      = "message_id"

	// Service
	FieldService = "service"
)
