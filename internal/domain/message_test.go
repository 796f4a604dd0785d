package domain

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMessageContentValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content MessageContent
		wantErr bool
	}{
		{"text", TextContent("hello"), false},
		{"empty text", TextContent(""), true},
		{"image", ImageContent("https://cdn.example.com/a.png"), false},
		{"image without url", MessageContent{Type: MessageTypeImage}, true},
		{"file", FileContent("https://cdn.example.com/a.pdf"), false},
		{"unknown type", MessageContent{Type: MessageType("video")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.content.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewMessage(t *testing.T) {
	t.Parallel()

	sender := primitive.NewObjectID()
	receiver := primitive.NewObjectID()
	now := time.Now().UTC()

	text := NewMessage(sender, receiver, TextContent("hi"), now)
	if text.Message != "hi" || text.Image != "" || text.MessageType != MessageTypeText {
		t.Errorf("text message = %+v", text)
	}
	if text.IsRead {
		t.Error("new message starts read")
	}
	if !text.CreatedAt.Equal(now) || !text.UpdatedAt.Equal(now) {
		t.Errorf("timestamps = %v / %v, want %v", text.CreatedAt, text.UpdatedAt, now)
	}

	img := NewMessage(sender, receiver, ImageContent("https://cdn.example.com/a.png"), now)
	if img.Message != "" {
		t.Errorf("image message text = %q, want empty", img.Message)
	}
	if img.Image != "https://cdn.example.com/a.png" || img.MessageType != MessageTypeImage {
		t.Errorf("image message = %+v", img)
	}
}

func TestUserFollows(t *testing.T) {
	t.Parallel()

	target := primitive.NewObjectID()
	u := &User{ID: primitive.NewObjectID(), Following: []primitive.ObjectID{target}}

	if !u.Follows(target) {
		t.Error("Follows(target) = false, want true")
	}
	if u.Follows(primitive.NewObjectID()) {
		t.Error("Follows(stranger) = true, want false")
	}
	if (&User{}).Follows(target) {
		t.Error("Follows with empty following = true, want false")
	}
}
