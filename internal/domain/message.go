package domain

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MessageType enumerates the supported message payload kinds.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeFile  MessageType = "file"
)

var ErrEmptyContent = errors.New("message content is empty")

// MessageContent is a tagged variant over the message payload. Exactly one
// of Text or URL is meaningful, selected by Type. Constructing through
// TextContent/ImageContent/FileContent rules out the ambiguous
// both-fields-set state.
type MessageContent struct {
	Type MessageType
	Text string
	URL  string
}

// TextContent builds a text payload.
func TextContent(text string) MessageContent {
	return MessageContent{Type: MessageTypeText, Text: text}
}

// ImageContent builds an image payload referencing an uploaded object URL.
func ImageContent(url string) MessageContent {
	return MessageContent{Type: MessageTypeImage, URL: url}
}

// FileContent builds a file payload referencing an uploaded object URL.
func FileContent(url string) MessageContent {
	return MessageContent{Type: MessageTypeFile, URL: url}
}

// Validate checks that the populated field matches the tag.
func (c MessageContent) Validate() error {
	switch c.Type {
	case MessageTypeText:
		if c.Text == "" {
			return ErrEmptyContent
		}
	case MessageTypeImage, MessageTypeFile:
		if c.URL == "" {
			return ErrEmptyContent
		}
	default:
		return ErrEmptyContent
	}
	return nil
}

// Message is the direct-message document. The stored text is forced empty
// for image and file messages; there is no conversation foreign key, history
// is matched by the symmetric sender/receiver pairing.
type Message struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	SenderID    primitive.ObjectID `bson:"senderId" json:"senderId"`
	ReceiverID  primitive.ObjectID `bson:"receiverId" json:"receiverId"`
	Message     string             `bson:"message" json:"message"`
	Image       string             `bson:"image,omitempty" json:"image,omitempty"`
	MessageType MessageType        `bson:"messageType" json:"messageType"`
	IsRead      bool               `bson:"isRead" json:"isRead"`
	IsEdited    bool               `bson:"isEdited" json:"isEdited"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// NewMessage builds a message document from a validated content variant.
func NewMessage(senderID, receiverID primitive.ObjectID, content MessageContent, now time.Time) *Message {
	m := &Message{
		SenderID:    senderID,
		ReceiverID:  receiverID,
		MessageType: content.Type,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	switch content.Type {
	case MessageTypeText:
		m.Message = content.Text
	case MessageTypeImage, MessageTypeFile:
		m.Image = content.URL
	}
	return m
}

// MessageResponse is a message as returned by the API, with participant
// summaries populated where the endpoint calls for them.
type MessageResponse struct {
	ID          string       `json:"_id"`
	SenderID    string       `json:"senderId"`
	ReceiverID  string       `json:"receiverId"`
	Sender      *UserSummary `json:"sender,omitempty"`
	Receiver    *UserSummary `json:"receiver,omitempty"`
	Message     string       `json:"message"`
	Image       string       `json:"image,omitempty"`
	MessageType MessageType  `json:"messageType"`
	IsRead      bool         `json:"isRead"`
	IsEdited    bool         `json:"isEdited"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// ToResponse converts a Message to its API projection without participant
// summaries. The service layer populates Sender/Receiver as needed.
func (m *Message) ToResponse() *MessageResponse {
	return &MessageResponse{
		ID:          m.ID.Hex(),
		SenderID:    m.SenderID.Hex(),
		ReceiverID:  m.ReceiverID.Hex(),
		Message:     m.Message,
		Image:       m.Image,
		MessageType: m.MessageType,
		IsRead:      m.IsRead,
		IsEdited:    m.IsEdited,
		CreatedAt:   m.CreatedAt,
	}
}

// SendMessageRequest is the request body for POST /api/messages/send/:receiverId.
// Image, when present, is a data-URI or base64 payload handed to the storage
// collaborator; it takes precedence over Message.
type SendMessageRequest struct {
	Message string `json:"message"`
	Image   string `json:"image"`
}

// CanMessageResponse is the eligibility projection for UI gating.
type CanMessageResponse struct {
	CanMessage bool   `json:"canMessage"`
	Message    string `json:"message"`
}
