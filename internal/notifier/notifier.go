package notifier

import (
	"context"
	"errors"

	"github.com/waynekhien/social-media/internal/domain"
	"github.com/waynekhien/social-media/internal/hub"
	"github.com/waynekhien/social-media/internal/registry"
	"github.com/waynekhien/social-media/pkg/log"
)

// Notifier pushes a newly created message to the receiver's live
// connection, if one exists. Delivery is best-effort: no retry, no queuing,
// no acknowledgment. A receiver with no connection discovers the message on
// the next fetch.
type Notifier interface {
	NotifyNewMessage(ctx context.Context, receiverID string, msg *domain.MessageResponse)
}

// HubNotifier resolves the receiver through the connection registry and
// delivers through the local hub.
type HubNotifier struct {
	registry registry.Registry
	hub      *hub.Hub
}

// NewHubNotifier creates a new HubNotifier.
func NewHubNotifier(reg registry.Registry, h *hub.Hub) *HubNotifier {
	return &HubNotifier{registry: reg, hub: h}
}

func (n *HubNotifier) NotifyNewMessage(ctx context.Context, receiverID string, msg *domain.MessageResponse) {
	l := log.Ctx(ctx)

	clientID, err := n.registry.Lookup(ctx, receiverID)
	if err != nil {
		if !errors.Is(err, registry.ErrNotConnected) {
			l.Warn().Err(err).Str(log.FieldReceiverID, receiverID).Msg("connection lookup failed, notification dropped")
		}
		return
	}

	if !n.hub.SendToClient(clientID, domain.NewMessageEvent(msg)) {
		l.Debug().Str(log.FieldReceiverID, receiverID).Str("client_id", clientID).Msg("notification dropped")
	}
}

// Ensure interface is satisfied at compile time.
var _ Notifier = (*HubNotifier)(nil)
