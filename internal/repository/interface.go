package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/waynekhien/social-media/internal/domain"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
)

// UserRepository reads profile documents owned by the profile subsystem.
type UserRepository interface {
	// GetByID returns the user or ErrUserNotFound.
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	// GetManyByID returns the found users keyed by hex ID; absent IDs are
	// simply missing from the map.
	GetManyByID(ctx context.Context, ids []primitive.ObjectID) (map[string]*domain.User, error)
}

// ConversationRepository maps unordered participant pairs to their single
// conversation document.
type ConversationRepository interface {
	// GetByID returns the conversation or ErrConversationNotFound.
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Conversation, error)
	// GetOrCreate returns the conversation for the pair, creating it if
	// absent. Uniqueness per unordered pair is guaranteed by the storage
	// index on the normalized pair key, not by this method.
	GetOrCreate(ctx context.Context, a, b primitive.ObjectID) (*domain.Conversation, error)
	// RecordLastMessage points the conversation at its most recent message.
	// This is the only mutation path for lastMessage/lastMessageTime and is
	// idempotent: replaying the same call leaves the same state.
	RecordLastMessage(ctx context.Context, conversationID, messageID primitive.ObjectID, at time.Time) error
	// ListForUser returns the user's conversations sorted by
	// lastMessageTime descending.
	ListForUser(ctx context.Context, userID primitive.ObjectID) ([]*domain.Conversation, error)
}

// MessageRepository stores direct-message documents.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	// GetByID returns the message or ErrMessageNotFound.
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Message, error)
	// ListBetween returns all messages exchanged between the pair in either
	// direction, ordered by creation time ascending.
	ListBetween(ctx context.Context, a, b primitive.ObjectID) ([]*domain.Message, error)
	// GetManyByID returns the found messages keyed by hex ID.
	GetManyByID(ctx context.Context, ids []primitive.ObjectID) (map[string]*domain.Message, error)
	// MarkRead sets isRead on the message. A no-op for already-read messages.
	MarkRead(ctx context.Context, id primitive.ObjectID) error
	// Delete hard-removes the message.
	Delete(ctx context.Context, id primitive.ObjectID) error
}
