package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/devricklin/feishu-request-relay/internal/biz/domain"
	"github.com/devricklin/feishu-request-relay/internal/biz/repo"
)

// Renderer builds the staff-facing copy of a unit
type Renderer func(unit *domain.LogicalUnit, requestID string) *repo.OutboundMessage

// Forwarder sends logical units to the staff destination and records links
type Forwarder struct {
	messageRepo  repo.MessageRepo
	linkRepo     repo.LinkRepo
	render       Renderer
	newRequestID func() string
}

// NewForwarder creates a forwarder with the default renderer
func NewForwarder(messageRepo repo.MessageRepo, linkRepo repo.LinkRepo) *Forwarder {
	return &Forwarder{
		messageRepo:  messageRepo,
		linkRepo:     linkRepo,
		render:       RenderStaffMessage,
		newRequestID: NewRequestID,
	}
}

// SetRenderer overrides how staff copies are rendered
func (f *Forwarder) SetRenderer(r Renderer) {
	f.render = r
}

// Forward sends the unit to destination and persists the link.
// A send failure wraps domain.ErrDelivery. A persistence failure after a
// successful send returns *domain.LinkPersistError.
func (f *Forwarder) Forward(ctx context.Context, unit *domain.LogicalUnit, destination string) (*domain.Link, error) {
	first := unit.First()
	if first == nil {
		return nil, fmt.Errorf("failed to forward: empty unit")
	}

	requestID := f.newRequestID()
	loc, err := f.messageRepo.Send(ctx, destination, f.render(unit, requestID))
	if err != nil {
		return nil, fmt.Errorf("failed to forward request %s: %w: %w", requestID, domain.ErrDelivery, err)
	}

	link, err := f.linkRepo.Put(ctx, &repo.NewLink{
		Forward:   loc,
		Origin:    first.Origin,
		SenderID:  first.SenderID,
		RequestID: requestID,
		Tags:      unit.Tags,
	})
	if err != nil {
		return nil, &domain.LinkPersistError{Forward: loc, Err: err}
	}
	return link, nil
}

const requestIDLen = 10

// NewRequestID returns a short random ID shown to staff
func NewRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:requestIDLen]
}

// IsRequestID reports whether s has the shape of a NewRequestID value
func IsRequestID(s string) bool {
	if len(s) != requestIDLen {
		return false
	}
	for _, c := range s {
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f') {
			return false
		}
	}
	return true
}

// RenderStaffMessage is the default staff copy
func RenderStaffMessage(unit *domain.LogicalUnit, requestID string) *repo.OutboundMessage {
	first := unit.First()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Request ID: %s\n", requestID))
	requester := first.SenderID
	if first.SenderName != "" {
		requester = fmt.Sprintf("%s (%s)", first.SenderName, first.SenderID)
	}
	sb.WriteString(fmt.Sprintf("Requester: %s\n", requester))
	sb.WriteString(fmt.Sprintf("Received: %s\n", first.ReceivedAt.UTC().Format("2006-01-02 15:04:05 UTC")))
	if len(unit.Tags) > 0 {
		sb.WriteString(fmt.Sprintf("Tags: %s\n", strings.Join(unit.Tags, ", ")))
	}
	budget := unit.Budget()
	if budget == "" {
		budget = "(missing)"
	}
	sb.WriteString(fmt.Sprintf("Budget: %s\n", budget))
	if media := unit.Media(); len(media) > 0 {
		sb.WriteString(fmt.Sprintf("Attachments: %d\n", len(media)))
	}

	text := unit.Text()
	if text == "" {
		text = "(no description)"
	}
	sb.WriteString("\n")
	sb.WriteString(text)
	sb.WriteString("\n\nReply /found or /notfound to this message, or reply with text to answer the requester.")

	return &repo.OutboundMessage{
		Title: "New request",
		Text:  sb.String(),
		Media: unit.Media(),
	}
}
