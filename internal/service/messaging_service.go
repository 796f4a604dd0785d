package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/singleflight"

	"github.com/waynekhien/social-media/internal/audit"
	"github.com/waynekhien/social-media/internal/domain"
	"github.com/waynekhien/social-media/internal/notifier"
	"github.com/waynekhien/social-media/internal/repository"
	"github.com/waynekhien/social-media/internal/storage"
	"github.com/waynekhien/social-media/pkg/log"
)

const imageKeyPrefix = "message_images/"

// messagingService implements MessagingService.
type messagingService struct {
	users         repository.UserRepository
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	uploader      storage.Uploader
	notifier      notifier.Notifier
	events        audit.EventProducer
	sf            singleflight.Group
}

// NewMessagingService creates a new MessagingService instance.
func NewMessagingService(
	users repository.UserRepository,
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	uploader storage.Uploader,
	n notifier.Notifier,
	events audit.EventProducer,
) MessagingService {
	return &messagingService{
		users:         users,
		conversations: conversations,
		messages:      messages,
		uploader:      uploader,
		notifier:      n,
		events:        events,
	}
}

// mutualFollow is the authorization gate predicate: each user must list the
// other in their following set. Evaluated literally even for a reflexive
// pair; no special-casing.
func mutualFollow(a, b *domain.User) bool {
	return a.Follows(b.ID) && b.Follows(a.ID)
}

// loadPair resolves both users or fails with ErrUserNotFound.
func (s *messagingService) loadPair(ctx context.Context, aID, bID string) (*domain.User, *domain.User, error) {
	aOID, err := primitive.ObjectIDFromHex(aID)
	if err != nil {
		return nil, nil, ErrUserNotFound
	}
	bOID, err := primitive.ObjectIDFromHex(bID)
	if err != nil {
		return nil, nil, ErrUserNotFound
	}

	a, err := s.users.GetByID(ctx, aOID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, err
	}
	b, err := s.users.GetByID(ctx, bOID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, err
	}
	return a, b, nil
}

func (s *messagingService) CanExchange(ctx context.Context, a, b string) (bool, error) {
	ua, ub, err := s.loadPair(ctx, a, b)
	if err != nil {
		return false, err
	}
	return mutualFollow(ua, ub), nil
}

func (s *messagingService) SendMessage(ctx context.Context, senderID, receiverID string, req *domain.SendMessageRequest) (*domain.MessageResponse, error) {
	l := log.Ctx(ctx)

	sender, receiver, err := s.loadPair(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}

	if !mutualFollow(sender, receiver) {
		return nil, ErrNotMutualFollow
	}

	// Resolve the content variant before any write. An image payload takes
	// precedence over text; the stored text stays empty for image messages.
	content, err := s.resolveContent(ctx, req)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	msg := domain.NewMessage(sender.ID, receiver.ID, content, now)

	// Concurrent first-messages between the same pair collapse onto one
	// lookup here; the unique index on the normalized pair key is what
	// actually guarantees a single conversation.
	conv, err := s.getOrCreateConversation(ctx, sender.ID, receiver.ID)
	if err != nil {
		l.Error().Err(err).Str(log.FieldSenderID, senderID).Str(log.FieldReceiverID, receiverID).Msg("failed to materialize conversation")
		return nil, err
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		l.Error().Err(err).Str(log.FieldConversationID, conv.ID.Hex()).Msg("failed to create message")
		return nil, err
	}

	// Second leg of the dual write. Carries the message's own timestamp, so
	// replaying it after a failure converges on the same state.
	if err := s.conversations.RecordLastMessage(ctx, conv.ID, msg.ID, msg.CreatedAt); err != nil {
		l.Error().Err(err).Str(log.FieldConversationID, conv.ID.Hex()).Str(log.FieldMessageID, msg.ID.Hex()).Msg("failed to record last message")
		return nil, err
	}

	resp := msg.ToResponse()
	senderSummary := sender.Summary()
	resp.Sender = &senderSummary

	s.notifier.NotifyNewMessage(ctx, receiver.ID.Hex(), resp)

	s.produceEvent(ctx, &domain.MessageEvent{
		Action:         domain.ActionMessageSent,
		MessageID:      msg.ID.Hex(),
		ConversationID: conv.ID.Hex(),
		SenderID:       sender.ID.Hex(),
		ReceiverID:     receiver.ID.Hex(),
		MessageType:    string(msg.MessageType),
		OccurredAt:     now,
	})

	return resp, nil
}

// resolveContent turns the request body into a validated content variant,
// uploading image payloads to the storage collaborator first.
func (s *messagingService) resolveContent(ctx context.Context, req *domain.SendMessageRequest) (domain.MessageContent, error) {
	if req.Image != "" {
		raw, contentType, err := storage.DecodePayload(req.Image)
		if err != nil {
			return domain.MessageContent{}, ErrInvalidImage
		}

		key := imageKeyPrefix + uuid.New().String() + storage.ExtensionFor(contentType)
		url, err := s.uploader.Upload(ctx, key, bytes.NewReader(raw), int64(len(raw)), contentType)
		if err != nil {
			return domain.MessageContent{}, fmt.Errorf("failed to upload image: %w", err)
		}
		return domain.ImageContent(url), nil
	}

	content := domain.TextContent(strings.TrimSpace(req.Message))
	if err := content.Validate(); err != nil {
		return domain.MessageContent{}, ErrEmptyMessage
	}
	return content, nil
}

func (s *messagingService) getOrCreateConversation(ctx context.Context, a, b primitive.ObjectID) (*domain.Conversation, error) {
	key := domain.PairKey(a, b)
	v, err, _ := s.sf.Do(key, func() (interface{}, error) {
		return s.conversations.GetOrCreate(ctx, a, b)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Conversation), nil
}

func (s *messagingService) ListConversations(ctx context.Context, userID string) ([]*domain.ConversationResponse, error) {
	l := log.Ctx(ctx)

	userOID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	current, err := s.users.GetByID(ctx, userOID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	convs, err := s.conversations.ListForUser(ctx, userOID)
	if err != nil {
		l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to list conversations")
		return nil, err
	}

	var otherIDs, lastMsgIDs []primitive.ObjectID
	for _, conv := range convs {
		if other, ok := conv.Other(userOID); ok {
			otherIDs = append(otherIDs, other)
		}
		if conv.LastMessage != nil {
			lastMsgIDs = append(lastMsgIDs, *conv.LastMessage)
		}
	}

	others, err := s.users.GetManyByID(ctx, otherIDs)
	if err != nil {
		return nil, err
	}
	lastMsgs, err := s.messages.GetManyByID(ctx, lastMsgIDs)
	if err != nil {
		return nil, err
	}

	currentSummary := current.Summary()
	results := make([]*domain.ConversationResponse, 0, len(convs))
	for _, conv := range convs {
		otherOID, ok := conv.Other(userOID)
		if !ok {
			continue
		}
		other, ok := others[otherOID.Hex()]
		if !ok {
			continue
		}

		// A conversation is listed only while the follow relationship is
		// still mutual; the record itself survives an unfollow.
		if !mutualFollow(current, other) {
			continue
		}

		resp := &domain.ConversationResponse{
			ID:              conv.ID.Hex(),
			Participants:    []domain.UserSummary{currentSummary, other.Summary()},
			LastMessageTime: conv.LastMessageTime,
		}
		if conv.LastMessage != nil {
			if last, ok := lastMsgs[conv.LastMessage.Hex()]; ok {
				resp.LastMessage = last.ToResponse()
			}
		}
		results = append(results, resp)
	}

	return results, nil
}

func (s *messagingService) GetMessages(ctx context.Context, userID, conversationID string) ([]*domain.MessageResponse, error) {
	userOID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, ErrNotParticipant
	}
	convOID, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return nil, ErrNotParticipant
	}

	conv, err := s.conversations.GetByID(ctx, convOID)
	if err != nil {
		// An absent conversation reads the same as one the caller may not
		// see; membership is never disclosed.
		if errors.Is(err, repository.ErrConversationNotFound) {
			return nil, ErrNotParticipant
		}
		return nil, err
	}
	if !conv.HasParticipant(userOID) {
		return nil, ErrNotParticipant
	}

	msgs, err := s.messages.ListBetween(ctx, conv.Participants[0], conv.Participants[1])
	if err != nil {
		return nil, err
	}

	participants, err := s.users.GetManyByID(ctx, conv.Participants)
	if err != nil {
		return nil, err
	}

	results := make([]*domain.MessageResponse, 0, len(msgs))
	for _, msg := range msgs {
		resp := msg.ToResponse()
		if u, ok := participants[msg.SenderID.Hex()]; ok {
			summary := u.Summary()
			resp.Sender = &summary
		}
		if u, ok := participants[msg.ReceiverID.Hex()]; ok {
			summary := u.Summary()
			resp.Receiver = &summary
		}
		results = append(results, resp)
	}

	return results, nil
}

func (s *messagingService) MarkRead(ctx context.Context, userID, messageID string) error {
	msg, err := s.loadMessage(ctx, messageID)
	if err != nil {
		return err
	}

	if msg.ReceiverID.Hex() != userID {
		return ErrNotReceiver
	}

	// Idempotent: marking an already-read message is a successful no-op.
	if msg.IsRead {
		return nil
	}

	if err := s.messages.MarkRead(ctx, msg.ID); err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return ErrMessageNotFound
		}
		return err
	}

	s.produceEvent(ctx, &domain.MessageEvent{
		Action:     domain.ActionMessageRead,
		MessageID:  msg.ID.Hex(),
		SenderID:   msg.SenderID.Hex(),
		ReceiverID: msg.ReceiverID.Hex(),
		OccurredAt: time.Now().UTC(),
	})

	return nil
}

func (s *messagingService) DeleteMessage(ctx context.Context, userID, messageID string) error {
	msg, err := s.loadMessage(ctx, messageID)
	if err != nil {
		return err
	}

	if msg.SenderID.Hex() != userID {
		return ErrNotSender
	}

	// Hard removal. The owning conversation's lastMessage pointer is left
	// alone and may dangle; listings tolerate the missing document.
	if err := s.messages.Delete(ctx, msg.ID); err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return ErrMessageNotFound
		}
		return err
	}

	s.produceEvent(ctx, &domain.MessageEvent{
		Action:     domain.ActionMessageDeleted,
		MessageID:  msg.ID.Hex(),
		SenderID:   msg.SenderID.Hex(),
		ReceiverID: msg.ReceiverID.Hex(),
		OccurredAt: time.Now().UTC(),
	})

	return nil
}

func (s *messagingService) CanMessage(ctx context.Context, userID, targetID string) (*domain.CanMessageResponse, error) {
	ok, err := s.CanExchange(ctx, userID, targetID)
	if err != nil {
		return nil, err
	}

	resp := &domain.CanMessageResponse{CanMessage: ok}
	if ok {
		resp.Message = "You can message this user"
	} else {
		resp.Message = "You can only message users who follow you back"
	}
	return resp, nil
}

func (s *messagingService) loadMessage(ctx context.Context, messageID string) (*domain.Message, error) {
	oid, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return nil, ErrMessageNotFound
	}
	msg, err := s.messages.GetByID(ctx, oid)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return msg, nil
}

func (s *messagingService) produceEvent(ctx context.Context, event *domain.MessageEvent) {
	if err := s.events.Produce(ctx, event); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str("action", event.Action).Str(log.FieldMessageID, event.MessageID).Msg("failed to produce message event")
	}
}

// Ensure interface is satisfied at compile time.
var _ MessagingService = (*messagingService)(nil)
