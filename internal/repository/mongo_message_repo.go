package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/waynekhien/social-media/internal/database"
	"github.com/waynekhien/social-media/internal/domain"
)

// MongoMessageRepository implements MessageRepository backed by the
// messages collection.
type MongoMessageRepository struct {
	coll *mongo.Collection
}

// NewMongoMessageRepository creates a new MongoMessageRepository.
func NewMongoMessageRepository(db *mongo.Database) *MongoMessageRepository {
	return &MongoMessageRepository{coll: db.Collection(database.CollMessages)}
}

func (r *MongoMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	res, err := r.coll.InsertOne(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	msg.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *MongoMessageRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Message, error) {
	var msg domain.Message
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &msg, nil
}

func (r *MongoMessageRepository) ListBetween(ctx context.Context, a, b primitive.ObjectID) ([]*domain.Message, error) {
	filter := bson.M{
		"$or": bson.A{
			bson.M{"senderId": a, "receiverId": b},
			bson.M{"senderId": b, "receiverId": a},
		},
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer cursor.Close(ctx)

	var msgs []*domain.Message
	for cursor.Next(ctx) {
		var msg domain.Message
		if err := cursor.Decode(&msg); err != nil {
			return nil, fmt.Errorf("failed to decode message: %w", err)
		}
		msgs = append(msgs, &msg)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return msgs, nil
}

func (r *MongoMessageRepository) GetManyByID(ctx context.Context, ids []primitive.ObjectID) (map[string]*domain.Message, error) {
	if len(ids) == 0 {
		return map[string]*domain.Message{}, nil
	}

	cursor, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer cursor.Close(ctx)

	msgs := make(map[string]*domain.Message, len(ids))
	for cursor.Next(ctx) {
		var msg domain.Message
		if err := cursor.Decode(&msg); err != nil {
			return nil, fmt.Errorf("failed to decode message: %w", err)
		}
		msgs[msg.ID.Hex()] = &msg
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return msgs, nil
}

func (r *MongoMessageRepository) MarkRead(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"isRead": true}})
	if err != nil {
		return fmt.Errorf("failed to mark message read: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (r *MongoMessageRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// Ensure interface is satisfied at compile time.
var _ MessageRepository = (*MongoMessageRepository)(nil)
