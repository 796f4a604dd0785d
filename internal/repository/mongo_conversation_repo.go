package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/waynekhien/social-media/internal/database"
	"github.com/waynekhien/social-media/internal/domain"
)

// MongoConversationRepository implements ConversationRepository backed by
// the conversations collection.
type MongoConversationRepository struct {
	coll *mongo.Collection
}

// NewMongoConversationRepository creates a new MongoConversationRepository.
func NewMongoConversationRepository(db *mongo.Database) *MongoConversationRepository {
	return &MongoConversationRepository{coll: db.Collection(database.CollConversations)}
}

func (r *MongoConversationRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

func (r *MongoConversationRepository) GetOrCreate(ctx context.Context, a, b primitive.ObjectID) (*domain.Conversation, error) {
	key := domain.PairKey(a, b)

	var conv domain.Conversation
	err := r.coll.FindOne(ctx, bson.M{"participantsKey": key}).Decode(&conv)
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to find conversation: %w", err)
	}

	now := time.Now().UTC()
	conv = domain.Conversation{
		Participants:    []primitive.ObjectID{a, b},
		ParticipantsKey: key,
		LastMessageTime: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	res, err := r.coll.InsertOne(ctx, &conv)
	if err != nil {
		// Lost the race on the unique pair index: another first-message
		// created it between our find and insert. Fetch the winner.
		if mongo.IsDuplicateKeyError(err) {
			var existing domain.Conversation
			if ferr := r.coll.FindOne(ctx, bson.M{"participantsKey": key}).Decode(&existing); ferr != nil {
				return nil, fmt.Errorf("failed to fetch conversation after duplicate insert: %w", ferr)
			}
			return &existing, nil
		}
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	conv.ID = res.InsertedID.(primitive.ObjectID)
	return &conv, nil
}

func (r *MongoConversationRepository) RecordLastMessage(ctx context.Context, conversationID, messageID primitive.ObjectID, at time.Time) error {
	res, err := r.coll.UpdateByID(ctx, conversationID, bson.M{
		"$set": bson.M{
			"lastMessage":     messageID,
			"lastMessageTime": at,
			"updatedAt":       at,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to record last message: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrConversationNotFound
	}
	return nil
}

func (r *MongoConversationRepository) ListForUser(ctx context.Context, userID primitive.ObjectID) ([]*domain.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "lastMessageTime", Value: -1}})
	cursor, err := r.coll.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer cursor.Close(ctx)

	var convs []*domain.Conversation
	for cursor.Next(ctx) {
		var conv domain.Conversation
		if err := cursor.Decode(&conv); err != nil {
			return nil, fmt.Errorf("failed to decode conversation: %w", err)
		}
		convs = append(convs, &conv)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversations: %w", err)
	}
	return convs, nil
}

// Ensure interface is satisfied at compile time.
var _ ConversationRepository = (*MongoConversationRepository)(nil)
