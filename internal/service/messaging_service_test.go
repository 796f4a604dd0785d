package service_test

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/waynekhien/social-media/internal/audit"
	"github.com/waynekhien/social-media/internal/domain"
	"github.com/waynekhien/social-media/internal/repository"
	"github.com/waynekhien/social-media/internal/service"
)

// --- in-memory fakes -------------------------------------------------------

type fakeUserRepo struct {
	users map[string]*domain.User
}

func (f *fakeUserRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	if u, ok := f.users[id.Hex()]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeUserRepo) GetManyByID(_ context.Context, ids []primitive.ObjectID) (map[string]*domain.User, error) {
	out := make(map[string]*domain.User)
	for _, id := range ids {
		if u, ok := f.users[id.Hex()]; ok {
			out[id.Hex()] = u
		}
	}
	return out, nil
}

type fakeConversationRepo struct {
	mu    sync.Mutex
	convs map[string]*domain.Conversation // pair key -> conversation
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{convs: make(map[string]*domain.Conversation)}
}

func (f *fakeConversationRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.convs {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, repository.ErrConversationNotFound
}

func (f *fakeConversationRepo) GetOrCreate(_ context.Context, a, b primitive.ObjectID) (*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := domain.PairKey(a, b)
	if c, ok := f.convs[key]; ok {
		return c, nil
	}
	now := time.Now().UTC()
	c := &domain.Conversation{
		ID:              primitive.NewObjectID(),
		Participants:    []primitive.ObjectID{a, b},
		ParticipantsKey: key,
		LastMessageTime: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	f.convs[key] = c
	return c, nil
}

func (f *fakeConversationRepo) RecordLastMessage(_ context.Context, conversationID, messageID primitive.ObjectID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.convs {
		if c.ID == conversationID {
			id := messageID
			c.LastMessage = &id
			c.LastMessageTime = at
			c.UpdatedAt = at
			return nil
		}
	}
	return repository.ErrConversationNotFound
}

func (f *fakeConversationRepo) ListForUser(_ context.Context, userID primitive.ObjectID) ([]*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Conversation
	for _, c := range f.convs {
		if c.HasParticipant(userID) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessageTime.After(out[j].LastMessageTime)
	})
	return out, nil
}

func (f *fakeConversationRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.convs)
}

type fakeMessageRepo struct {
	mu   sync.Mutex
	msgs []*domain.Message
}

func (f *fakeMessageRepo) Create(_ context.Context, msg *domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg.ID = primitive.NewObjectID()
	stored := *msg
	f.msgs = append(f.msgs, &stored)
	return nil
}

func (f *fakeMessageRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.msgs {
		if m.ID == id {
			cp := *m
			return &cp, nil
		}
	}
	return nil, repository.ErrMessageNotFound
}

func (f *fakeMessageRepo) ListBetween(_ context.Context, a, b primitive.ObjectID) ([]*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Message
	for _, m := range f.msgs {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (f *fakeMessageRepo) GetManyByID(_ context.Context, ids []primitive.ObjectID) (map[string]*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]*domain.Message)
	for _, id := range ids {
		for _, m := range f.msgs {
			if m.ID == id {
				cp := *m
				out[id.Hex()] = &cp
			}
		}
	}
	return out, nil
}

func (f *fakeMessageRepo) MarkRead(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.msgs {
		if m.ID == id {
			m.IsRead = true
			return nil
		}
	}
	return repository.ErrMessageNotFound
}

func (f *fakeMessageRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.msgs {
		if m.ID == id {
			f.msgs = append(f.msgs[:i], f.msgs[i+1:]...)
			return nil
		}
	}
	return repository.ErrMessageNotFound
}

func (f *fakeMessageRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

type stubUploader struct{}

func (stubUploader) Upload(_ context.Context, key string, _ io.Reader, _ int64, _ string) (string, error) {
	return "https://cdn.example.com/" + key, nil
}

func (stubUploader) Delete(context.Context, string) error { return nil }

type fakeNotifier struct {
	mu         sync.Mutex
	deliveries []string // receiver IDs notified
}

func (f *fakeNotifier) NotifyNewMessage(_ context.Context, receiverID string, _ *domain.MessageResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliveries = append(f.deliveries, receiverID)
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deliveries)
}

// --- fixture ---------------------------------------------------------------

type fixture struct {
	svc      service.MessagingService
	users    *fakeUserRepo
	convs    *fakeConversationRepo
	msgs     *fakeMessageRepo
	notifier *fakeNotifier

	alice *domain.User // mutual with bob
	bob   *domain.User
	carol *domain.User // follows alice, not followed back
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	alice := &domain.User{ID: primitive.NewObjectID(), Username: "alice", FullName: "Alice A"}
	bob := &domain.User{ID: primitive.NewObjectID(), Username: "bob", FullName: "Bob B"}
	carol := &domain.User{ID: primitive.NewObjectID(), Username: "carol", FullName: "Carol C"}

	alice.Following = []primitive.ObjectID{bob.ID}
	bob.Following = []primitive.ObjectID{alice.ID}
	carol.Following = []primitive.ObjectID{alice.ID}

	users := &fakeUserRepo{users: map[string]*domain.User{
		alice.ID.Hex(): alice,
		bob.ID.Hex():   bob,
		carol.ID.Hex(): carol,
	}}
	convs := newFakeConversationRepo()
	msgs := &fakeMessageRepo{}
	n := &fakeNotifier{}

	svc := service.NewMessagingService(users, convs, msgs, stubUploader{}, n, audit.NopProducer{})

	return &fixture{
		svc:      svc,
		users:    users,
		convs:    convs,
		msgs:     msgs,
		notifier: n,
		alice:    alice,
		bob:      bob,
		carol:    carol,
	}
}

// --- tests -----------------------------------------------------------------

func TestCanExchange_Symmetry(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	pairs := []struct {
		name string
		a, b string
		want bool
	}{
		{"mutual pair", f.alice.ID.Hex(), f.bob.ID.Hex(), true},
		{"one-way follow", f.carol.ID.Hex(), f.alice.ID.Hex(), false},
		{"no relationship", f.carol.ID.Hex(), f.bob.ID.Hex(), false},
	}

	for _, tt := range pairs {
		t.Run(tt.name, func(t *testing.T) {
			ab, err := f.svc.CanExchange(ctx, tt.a, tt.b)
			if err != nil {
				t.Fatalf("CanExchange(a,b) error: %v", err)
			}
			ba, err := f.svc.CanExchange(ctx, tt.b, tt.a)
			if err != nil {
				t.Fatalf("CanExchange(b,a) error: %v", err)
			}
			if ab != tt.want || ba != tt.want {
				t.Errorf("CanExchange = (%v, %v), want %v both ways", ab, ba, tt.want)
			}
		})
	}
}

func TestCanExchange_UnknownUser(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		a, b string
	}{
		{"unknown target", f.alice.ID.Hex(), primitive.NewObjectID().Hex()},
		{"unknown caller", primitive.NewObjectID().Hex(), f.alice.ID.Hex()},
		{"malformed id", f.alice.ID.Hex(), "not-an-id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.CanExchange(ctx, tt.a, tt.b); err != service.ErrUserNotFound {
				t.Errorf("CanExchange error = %v, want ErrUserNotFound", err)
			}
		})
	}
}

func TestSendMessage_ForbiddenWithoutMutualFollow(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	// Carol follows Alice, but Alice does not follow back.
	_, err := f.svc.SendMessage(ctx, f.carol.ID.Hex(), f.alice.ID.Hex(), &domain.SendMessageRequest{Message: "hey"})
	if err != service.ErrNotMutualFollow {
		t.Fatalf("SendMessage error = %v, want ErrNotMutualFollow", err)
	}

	// A rejected send must leave no trace.
	if f.msgs.count() != 0 {
		t.Errorf("messages created = %d, want 0", f.msgs.count())
	}
	if f.convs.count() != 0 {
		t.Errorf("conversations created = %d, want 0", f.convs.count())
	}
	if f.notifier.count() != 0 {
		t.Errorf("notifications delivered = %d, want 0", f.notifier.count())
	}
}

func TestSendMessage_CreatesThenReusesConversation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.SendMessage(ctx, f.alice.ID.Hex(), f.bob.ID.Hex(), &domain.SendMessageRequest{Message: "hi"})
	if err != nil {
		t.Fatalf("first SendMessage error: %v", err)
	}
	if f.convs.count() != 1 {
		t.Fatalf("conversations after first send = %d, want 1", f.convs.count())
	}

	// A reply from the other side lands in the same conversation.
	if _, err := f.svc.SendMessage(ctx, f.bob.ID.Hex(), f.alice.ID.Hex(), &domain.SendMessageRequest{Message: "hello"}); err != nil {
		t.Fatalf("second SendMessage error: %v", err)
	}
	if f.convs.count() != 1 {
		t.Errorf("conversations after second send = %d, want 1", f.convs.count())
	}

	if first.MessageType != domain.MessageTypeText || first.Message != "hi" {
		t.Errorf("first message = %q type %q, want %q type text", first.Message, first.MessageType, "hi")
	}
	if first.Sender == nil || first.Sender.Username != "alice" {
		t.Errorf("sender summary not populated: %+v", first.Sender)
	}
	if f.notifier.count() != 2 {
		t.Errorf("notifications delivered = %d, want 2", f.notifier.count())
	}
}

func TestSendMessage_ImageTakesPrecedence(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	// base64 of "img-bytes"
	payload := "data:image/png;base64,aW1nLWJ5dGVz"
	msg, err := f.svc.SendMessage(ctx, f.alice.ID.Hex(), f.bob.ID.Hex(), &domain.SendMessageRequest{
		Message: "ignored caption",
		Image:   payload,
	})
	if err != nil {
		t.Fatalf("SendMessage error: %v", err)
	}

	if msg.MessageType != domain.MessageTypeImage {
		t.Errorf("messageType = %q, want image", msg.MessageType)
	}
	if msg.Message != "" {
		t.Errorf("stored text = %q, want empty for image message", msg.Message)
	}
	if msg.Image == "" || !strings.Contains(msg.Image, "message_images/") {
		t.Errorf("image URL = %q, want uploaded message_images URL", msg.Image)
	}
}

func TestSendMessage_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		req     domain.SendMessageRequest
		wantErr error
	}{
		{"empty body", domain.SendMessageRequest{}, service.ErrEmptyMessage},
		{"whitespace only", domain.SendMessageRequest{Message: "   "}, service.ErrEmptyMessage},
		{"undecodable image", domain.SendMessageRequest{Image: "data:image/png;base64,!!!"}, service.ErrInvalidImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SendMessage(ctx, f.alice.ID.Hex(), f.bob.ID.Hex(), &tt.req)
			if err != tt.wantErr {
				t.Errorf("SendMessage error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if f.msgs.count() != 0 {
		t.Errorf("messages created by rejected sends = %d, want 0", f.msgs.count())
	}
}

func TestSendMessage_UnknownReceiver(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SendMessage(ctx, f.alice.ID.Hex(), primitive.NewObjectID().Hex(), &domain.SendMessageRequest{Message: "hi"})
	if err != service.ErrUserNotFound {
		t.Fatalf("SendMessage error = %v, want ErrUserNotFound", err)
	}
}

func TestGetMessages_OrderAndAccess(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	texts := []string{"one", "two", "three"}
	for _, text := range texts {
		if _, err := f.svc.SendMessage(ctx, f.alice.ID.Hex(), f.bob.ID.Hex(), &domain.SendMessageRequest{Message: text}); err != nil {
			t.Fatalf("SendMessage(%q) error: %v", text, err)
		}
	}

	convs, err := f.svc.ListConversations(ctx, f.alice.ID.Hex())
	if err != nil {
		t.Fatalf("ListConversations error: %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("conversations = %d, want 1", len(convs))
	}
	convID := convs[0].ID

	msgs, err := f.svc.GetMessages(ctx, f.bob.ID.Hex(), convID)
	if err != nil {
		t.Fatalf("GetMessages error: %v", err)
	}
	if len(msgs) != len(texts) {
		t.Fatalf("messages = %d, want %d", len(msgs), len(texts))
	}
	for i, m := range msgs {
		if m.Message != texts[i] {
			t.Errorf("message[%d] = %q, want %q", i, m.Message, texts[i])
		}
		if i > 0 && msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt) {
			t.Errorf("messages out of order at index %d", i)
		}
		if m.Sender == nil || m.Receiver == nil {
			t.Errorf("message[%d] participant summaries not populated", i)
		}
	}

	// Carol is not a participant.
	if _, err := f.svc.GetMessages(ctx, f.carol.ID.Hex(), convID); err != service.ErrNotParticipant {
		t.Errorf("GetMessages as outsider error = %v, want ErrNotParticipant", err)
	}

	// Unknown conversation reads the same as a forbidden one.
	if _, err := f.svc.GetMessages(ctx, f.alice.ID.Hex(), primitive.NewObjectID().Hex()); err != service.ErrNotParticipant {
		t.Errorf("GetMessages unknown conversation error = %v, want ErrNotParticipant", err)
	}
}

func TestListConversations_FiltersUnfollowedPairs(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.SendMessage(ctx, f.alice.ID.Hex(), f.bob.ID.Hex(), &domain.SendMessageRequest{Message: "hi"}); err != nil {
		t.Fatalf("SendMessage error: %v", err)
	}

	convs, err := f.svc.ListConversations(ctx, f.alice.ID.Hex())
	if err != nil {
		t.Fatalf("ListConversations error: %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("conversations = %d, want 1", len(convs))
	}
	if convs[0].LastMessage == nil || convs[0].LastMessage.Message != "hi" {
		t.Errorf("last message not populated: %+v", convs[0].LastMessage)
	}

	// Bob unfollows Alice: the conversation disappears from listings but
	// the record itself survives.
	f.bob.Following = nil

	convs, err = f.svc.ListConversations(ctx, f.alice.ID.Hex())
	if err != nil {
		t.Fatalf("ListConversations after unfollow error: %v", err)
	}
	if len(convs) != 0 {
		t.Errorf("conversations after unfollow = %d, want 0", len(convs))
	}
	if f.convs.count() != 1 {
		t.Errorf("stored conversations = %d, want 1 (record is kept)", f.convs.count())
	}
}

func TestMarkRead(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	sent, err := f.svc.SendMessage(ctx, f.alice.ID.Hex(), f.bob.ID.Hex(), &domain.SendMessageRequest{Message: "hi"})
	if err != nil {
		t.Fatalf("SendMessage error: %v", err)
	}

	// The sender may not mark their own message read.
	if err := f.svc.MarkRead(ctx, f.alice.ID.Hex(), sent.ID); err != service.ErrNotReceiver {
		t.Fatalf("MarkRead as sender error = %v, want ErrNotReceiver", err)
	}

	if err := f.svc.MarkRead(ctx, f.bob.ID.Hex(), sent.ID); err != nil {
		t.Fatalf("MarkRead error: %v", err)
	}
	// Idempotent on replay.
	if err := f.svc.MarkRead(ctx, f.bob.ID.Hex(), sent.ID); err != nil {
		t.Fatalf("second MarkRead error: %v", err)
	}

	convs, err := f.svc.ListConversations(ctx, f.bob.ID.Hex())
	if err != nil {
		t.Fatalf("ListConversations error: %v", err)
	}
	if convs[0].LastMessage == nil || !convs[0].LastMessage.IsRead {
		t.Errorf("message not read after MarkRead: %+v", convs[0].LastMessage)
	}

	if err := f.svc.MarkRead(ctx, f.bob.ID.Hex(), primitive.NewObjectID().Hex()); err != service.ErrMessageNotFound {
		t.Errorf("MarkRead unknown message error = %v, want ErrMessageNotFound", err)
	}
}

func TestDeleteMessage(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	sent, err := f.svc.SendMessage(ctx, f.alice.ID.Hex(), f.bob.ID.Hex(), &domain.SendMessageRequest{Message: "hi"})
	if err != nil {
		t.Fatalf("SendMessage error: %v", err)
	}

	// Only the sender may delete.
	if err := f.svc.DeleteMessage(ctx, f.bob.ID.Hex(), sent.ID); err != service.ErrNotSender {
		t.Fatalf("DeleteMessage as receiver error = %v, want ErrNotSender", err)
	}

	if err := f.svc.DeleteMessage(ctx, f.alice.ID.Hex(), sent.ID); err != nil {
		t.Fatalf("DeleteMessage error: %v", err)
	}
	if f.msgs.count() != 0 {
		t.Errorf("messages after delete = %d, want 0", f.msgs.count())
	}

	if err := f.svc.DeleteMessage(ctx, f.alice.ID.Hex(), sent.ID); err != service.ErrMessageNotFound {
		t.Errorf("DeleteMessage replay error = %v, want ErrMessageNotFound", err)
	}

	// The conversation pointer is not repaired and may dangle.
	convs, err := f.convs.ListForUser(ctx, f.alice.ID)
	if err != nil {
		t.Fatalf("ListForUser error: %v", err)
	}
	if len(convs) != 1 || convs[0].LastMessage == nil {
		t.Errorf("conversation lastMessage pointer was repaired, want dangling reference")
	}
}

func TestCanMessage(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	eligible, err := f.svc.CanMessage(ctx, f.alice.ID.Hex(), f.bob.ID.Hex())
	if err != nil {
		t.Fatalf("CanMessage error: %v", err)
	}
	if !eligible.CanMessage {
		t.Errorf("CanMessage(alice, bob) = false, want true")
	}

	blocked, err := f.svc.CanMessage(ctx, f.carol.ID.Hex(), f.alice.ID.Hex())
	if err != nil {
		t.Fatalf("CanMessage error: %v", err)
	}
	if blocked.CanMessage {
		t.Errorf("CanMessage(carol, alice) = true, want false")
	}
	if blocked.Message == "" {
		t.Errorf("CanMessage response carries no explanation")
	}

	if _, err := f.svc.CanMessage(ctx, f.alice.ID.Hex(), primitive.NewObjectID().Hex()); err != service.ErrUserNotFound {
		t.Errorf("CanMessage unknown target error = %v, want ErrUserNotFound", err)
	}
}
