package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Conversation ties exactly two users together for history grouping and
// last-activity summarization. Participants keep their supplied order;
// ParticipantsKey is the sorted pair the unique index hangs off, so at most
// one conversation can ever exist per unordered pair.
type Conversation struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty" json:"_id"`
	Participants    []primitive.ObjectID `bson:"participants" json:"participants"`
	ParticipantsKey string               `bson:"participantsKey" json:"-"`
	LastMessage     *primitive.ObjectID  `bson:"lastMessage,omitempty" json:"lastMessage,omitempty"`
	LastMessageTime time.Time            `bson:"lastMessageTime" json:"lastMessageTime"`
	CreatedAt       time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// PairKey normalizes an unordered participant pair into the lookup key.
func PairKey(a, b primitive.ObjectID) string {
	ah, bh := a.Hex(), b.Hex()
	if ah > bh {
		ah, bh = bh, ah
	}
	return ah + ":" + bh
}

// Other returns the participant that is not userID. The second return is
// false when userID is not a participant at all.
func (c *Conversation) Other(userID primitive.ObjectID) (primitive.ObjectID, bool) {
	if len(c.Participants) != 2 {
		return primitive.NilObjectID, false
	}
	switch userID {
	case c.Participants[0]:
		return c.Participants[1], true
	case c.Participants[1]:
		return c.Participants[0], true
	}
	return primitive.NilObjectID, false
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID primitive.ObjectID) bool {
	_, ok := c.Other(userID)
	return ok
}

// ConversationResponse is a conversation as returned by the listing
// endpoint, with participant summaries and the last message populated.
type ConversationResponse struct {
	ID              string           `json:"_id"`
	Participants    []UserSummary    `json:"participants"`
	LastMessage     *MessageResponse `json:"lastMessage,omitempty"`
	LastMessageTime time.Time        `json:"lastMessageTime"`
}
