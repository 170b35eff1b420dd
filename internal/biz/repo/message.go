package repo

import (
	"context"

	"github.com/devricklin/feishu-request-relay/internal/biz/domain"
)

// OutboundMessage is content sent to a chat
type OutboundMessage struct {
	Title string
	Text  string
	Media []domain.MediaRef
}

// MessageRepo is the outbound transport interface.
// Failures are returned, never swallowed.
type MessageRepo interface {
	// Send posts a message to a chat and returns the location assigned to it
	Send(ctx context.Context, chatID string, msg *OutboundMessage) (domain.Location, error)

	// Reply posts a text reply to an existing message
	Reply(ctx context.Context, to domain.Location, text string) (domain.Location, error)

	// AddReaction adds an emoji reaction
	AddReaction(ctx context.Context, msgID, reactionType string) error
}
