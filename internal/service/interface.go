package service

import (
	"context"
	"errors"

	"github.com/waynekhien/social-media/internal/domain"
)

var (
	// ErrUserNotFound signals that a referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrMessageNotFound signals that a referenced message does not exist.
	ErrMessageNotFound = errors.New("message not found")
	// ErrNotMutualFollow rejects a send between users who do not follow
	// each other back.
	ErrNotMutualFollow = errors.New("users do not follow each other")
	// ErrNotParticipant rejects history access by a non-participant.
	ErrNotParticipant = errors.New("caller is not a conversation participant")
	// ErrNotReceiver rejects mark-read by anyone but the receiver.
	ErrNotReceiver = errors.New("only the receiver can mark a message read")
	// ErrNotSender rejects deletion by anyone but the sender.
	ErrNotSender = errors.New("only the sender can delete a message")
	// ErrEmptyMessage rejects a send carrying neither text nor image.
	ErrEmptyMessage = errors.New("message text or image is required")
	// ErrInvalidImage rejects an image payload that cannot be decoded.
	ErrInvalidImage = errors.New("invalid image payload")
)

// MessagingService is the follow-gated direct-messaging core.
type MessagingService interface {
	// CanExchange reports whether a and b may exchange messages, i.e.
	// whether each lists the other in their following set. Pure predicate,
	// symmetric in its arguments.
	CanExchange(ctx context.Context, a, b string) (bool, error)

	// SendMessage validates the mutual-follow gate, materializes the
	// conversation for the pair, persists the message, updates the
	// conversation's last-message pointer and attempts best-effort
	// delivery to the receiver's live connection.
	SendMessage(ctx context.Context, senderID, receiverID string, req *domain.SendMessageRequest) (*domain.MessageResponse, error)

	// ListConversations returns the user's conversations sorted by last
	// activity descending, filtered to pairs whose follow relationship is
	// currently mutual.
	ListConversations(ctx context.Context, userID string) ([]*domain.ConversationResponse, error)

	// GetMessages returns the conversation's messages oldest-first.
	// Callers that are not participants are rejected.
	GetMessages(ctx context.Context, userID, conversationID string) ([]*domain.MessageResponse, error)

	// MarkRead transitions isRead to true. Receiver-only, idempotent.
	MarkRead(ctx context.Context, userID, messageID string) error

	// DeleteMessage hard-removes a message. Sender-only.
	DeleteMessage(ctx context.Context, userID, messageID string) error

	// CanMessage exposes the exchange predicate for UI gating.
	CanMessage(ctx context.Context, userID, targetID string) (*domain.CanMessageResponse, error)
}
