package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names used by this service.
const (
	CollUsers         = "users"
	CollConversations = "conversations"
	CollMessages      = "messages"
)

// Config holds MongoDB connection configuration.
type Config struct {
	URI      string
	Database string
}

// New connects to MongoDB and verifies the connection with a ping.
// The caller owns the returned client and must Disconnect it on shutdown.
func New(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return client, client.Database(cfg.Database), nil
}

// EnsureIndexes creates the indexes this service relies on. The unique index
// on the normalized participant pair is what makes duplicate conversations
// impossible under concurrent first-messages; application code does not try
// to detect duplicates at read time.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(CollConversations).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "participantsKey", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uidx_participants_pair"),
	})
	if err != nil {
		return fmt.Errorf("failed to create conversations pair index: %w", err)
	}

	_, err = db.Collection(CollMessages).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "senderId", Value: 1}, {Key: "receiverId", Value: 1}, {Key: "createdAt", Value: 1}},
			Options: options.Index().SetName("idx_pair_created"),
		},
		{
			Keys:    bson.D{{Key: "receiverId", Value: 1}, {Key: "isRead", Value: 1}},
			Options: options.Index().SetName("idx_receiver_unread"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create messages indexes: %w", err)
	}

	return nil
}
