package domain

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is the profile document as stored by the profile subsystem.
// This service only ever reads it: identity and the following set feed the
// mutual-follow gate, the summary fields feed API responses.
type User struct {
	ID         primitive.ObjectID   `bson:"_id,omitempty" json:"_id"`
	Username   string               `bson:"username" json:"username"`
	FullName   string               `bson:"fullName" json:"fullName"`
	ProfileImg string               `bson:"profileImg" json:"profileImg"`
	Following  []primitive.ObjectID `bson:"following" json:"following"`
}

// Follows reports whether the user's following set contains id.
func (u *User) Follows(id primitive.ObjectID) bool {
	for _, f := range u.Following {
		if f == id {
			return true
		}
	}
	return false
}

// UserSummary is the participant projection embedded in message and
// conversation responses.
type UserSummary struct {
	ID         string `json:"_id"`
	Username   string `json:"username"`
	FullName   string `json:"fullName"`
	ProfileImg string `json:"profileImg"`
}

// Summary converts a User to its response projection.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:         u.ID.Hex(),
		Username:   u.Username,
		FullName:   u.FullName,
		ProfileImg: u.ProfileImg,
	}
}
