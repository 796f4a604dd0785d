package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/waynekhien/social-media/internal/domain"
	"github.com/waynekhien/social-media/internal/service"
	"github.com/waynekhien/social-media/pkg/log"
	"github.com/waynekhien/social-media/pkg/middleware"
	"github.com/waynekhien/social-media/pkg/response"
)

// HTTPHandler handles the messaging REST surface.
type HTTPHandler struct {
	svc            service.MessagingService
	authMiddleware *middleware.AuthMiddleware
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(svc service.MessagingService, authMiddleware *middleware.AuthMiddleware) *HTTPHandler {
	return &HTTPHandler{
		svc:            svc,
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers all routes onto the Gin engine.
func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	messages := r.Group("/api/messages", h.authMiddleware.RequireAuth())
	{
		messages.POST("/send/:receiverId", h.SendMessage)
		messages.GET("/conversations", h.GetConversations)
		messages.GET("/can-message/:userId", h.CanMessage)
		messages.GET("/:conversationId", h.GetMessages)
		messages.PATCH("/read/:messageId", h.MarkAsRead)
		messages.DELETE("/:messageId", h.DeleteMessage)
	}
}

// SendMessage handles POST /api/messages/send/:receiverId.
func (h *HTTPHandler) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	senderID := middleware.GetUserID(c)
	if senderID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}
	receiverID := c.Param("receiverId")

	var req domain.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	msg, err := h.svc.SendMessage(ctx, senderID, receiverID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			response.NotFound(c, "User not found")
		case errors.Is(err, service.ErrNotMutualFollow):
			response.Forbidden(c, "You can only message users who follow you back")
		case errors.Is(err, service.ErrEmptyMessage):
			response.BadRequest(c, "message text or image is required")
		case errors.Is(err, service.ErrInvalidImage):
			response.BadRequest(c, "invalid image payload")
		default:
			l.Error().Err(err).Str(log.FieldReceiverID, receiverID).Msg("send message failed")
			response.InternalError(c, "failed to send message")
		}
		return
	}

	response.Created(c, msg)
}

// GetConversations handles GET /api/messages/conversations.
func (h *HTTPHandler) GetConversations(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	userID := middleware.GetUserID(c)
	if userID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	convs, err := h.svc.ListConversations(ctx, userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			response.NotFound(c, "User not found")
		default:
			l.Error().Err(err).Msg("list conversations failed")
			response.InternalError(c, "failed to list conversations")
		}
		return
	}

	response.Success(c, convs)
}

// CanMessage handles GET /api/messages/can-message/:userId.
func (h *HTTPHandler) CanMessage(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	userID := middleware.GetUserID(c)
	if userID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}
	targetID := c.Param("userId")

	result, err := h.svc.CanMessage(ctx, userID, targetID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			response.NotFound(c, "User not found")
		default:
			l.Error().Err(err).Str("target_id", targetID).Msg("can-message check failed")
			response.InternalError(c, "failed to check messaging eligibility")
		}
		return
	}

	response.Success(c, result)
}

// GetMessages handles GET /api/messages/:conversationId.
func (h *HTTPHandler) GetMessages(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	userID := middleware.GetUserID(c)
	if userID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}
	conversationID := c.Param("conversationId")

	msgs, err := h.svc.GetMessages(ctx, userID, conversationID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotParticipant):
			response.Forbidden(c, "Access denied")
		default:
			l.Error().Err(err).Str(log.FieldConversationID, conversationID).Msg("get messages failed")
			response.InternalError(c, "failed to get messages")
		}
		return
	}

	response.Success(c, msgs)
}

// MarkAsRead handles PATCH /api/messages/read/:messageId.
func (h *HTTPHandler) MarkAsRead(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	userID := middleware.GetUserID(c)
	if userID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}
	messageID := c.Param("messageId")

	if err := h.svc.MarkRead(ctx, userID, messageID); err != nil {
		switch {
		case errors.Is(err, service.ErrMessageNotFound):
			response.NotFound(c, "Message not found")
		case errors.Is(err, service.ErrNotReceiver):
			response.Forbidden(c, "Access denied")
		default:
			l.Error().Err(err).Str(log.FieldMessageID, messageID).Msg("mark read failed")
			response.InternalError(c, "failed to mark message as read")
		}
		return
	}

	response.Success(c, gin.H{"message": "Message marked as read"})
}

// DeleteMessage handles DELETE /api/messages/:messageId.
func (h *HTTPHandler) DeleteMessage(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	userID := middleware.GetUserID(c)
	if userID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}
	messageID := c.Param("messageId")

	if err := h.svc.DeleteMessage(ctx, userID, messageID); err != nil {
		switch {
		case errors.Is(err, service.ErrMessageNotFound):
			response.NotFound(c, "Message not found")
		case errors.Is(err, service.ErrNotSender):
			response.Forbidden(c, "Access denied")
		default:
			l.Error().Err(err).Str(log.FieldMessageID, messageID).Msg("delete message failed")
			response.InternalError(c, "failed to delete message")
		}
		return
	}

	response.Success(c, gin.H{"message": "Message deleted successfully"})
}
