package repo

import (
	"context"

	"github.com/devricklin/feishu-request-relay/internal/biz/domain"
)

// NewLink is the input of LinkRepo.Put
type NewLink struct {
	Forward   domain.Location
	Origin    domain.Location
	SenderID  string
	RequestID string
	Tags      []string
}

// LinkRepo is the Link Store interface.
// All operations are atomic per forward location.
type LinkRepo interface {
	// Put creates a pending link; domain.ErrConflict if the forward location exists
	Put(ctx context.Context, link *NewLink) (*domain.Link, error)

	// GetByForward returns domain.ErrNotFound when no link exists
	GetByForward(ctx context.Context, forward domain.Location) (*domain.Link, error)

	// GetByRequestID looks a link up by the short request ID shown to staff
	GetByRequestID(ctx context.Context, requestID string) (*domain.Link, error)

	// Resolve moves a pending link to the outcome's status.
	// Returns domain.ErrAlreadyResolved (with the current link) if not pending.
	Resolve(ctx context.Context, forward domain.Location, outcome domain.Outcome) (*domain.Link, error)

	// ListBySender returns a requester's links, newest first
	ListBySender(ctx context.Context, senderID string, limit int) ([]*domain.Link, error)

	// ListByStatus returns links in a status, newest first
	ListByStatus(ctx context.Context, status domain.LinkStatus, limit int) ([]*domain.Link, error)

	Close() error
}
