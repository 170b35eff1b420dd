package api

import (
	"time"

	"github.com/devricklin/feishu-request-relay/internal/biz/domain"
	"github.com/devricklin/feishu-request-relay/internal/service"
)

// LinkResponse is the JSON form of a link
type LinkResponse struct {
	RequestID     string     `json:"request_id"`
	SenderID      string     `json:"sender_id"`
	Status        string     `json:"status"`
	Tags          []string   `json:"tags"`
	ForwardChatID string     `json:"forward_chat_id"`
	ForwardMsgID  string     `json:"forward_msg_id"`
	OriginChatID  string     `json:"origin_chat_id"`
	OriginMsgID   string     `json:"origin_msg_id"`
	CreatedAt     time.Time  `json:"created_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}

// LinksResponse wraps a list of links
type LinksResponse struct {
	Links []*LinkResponse `json:"links"`
}

// SubmissionResponse describes a handled submission
type SubmissionResponse struct {
	Status  string        `json:"status"`
	Trigger string        `json:"trigger,omitempty"`
	Link    *LinkResponse `json:"link,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// RoutingResponse describes a routed staff action or reply
type RoutingResponse struct {
	Result        string        `json:"result"`
	Link          *LinkResponse `json:"link,omitempty"`
	Delivered     bool          `json:"delivered"`
	DeliveryError string        `json:"delivery_error,omitempty"`
}

// EventResponse is returned by POST /api/events; one field is set
type EventResponse struct {
	Submission *SubmissionResponse `json:"submission,omitempty"`
	Action     *RoutingResponse    `json:"action,omitempty"`
	Reply      *RoutingResponse    `json:"reply,omitempty"`
}

// ResolveRequest is the body of POST /api/links/:request_id/resolve
type ResolveRequest struct {
	Outcome string `json:"outcome" binding:"required"`
}

// ReplyRequest is the body of POST /api/links/:request_id/reply
type ReplyRequest struct {
	Content string `json:"content" binding:"required"`
}

// ErrorResponse is returned for every non-2xx status
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewLinkResponse converts a domain link
func NewLinkResponse(l *domain.Link) *LinkResponse {
	if l == nil {
		return nil
	}
	tags := l.Tags
	if tags == nil {
		tags = []string{}
	}
	return &LinkResponse{
		RequestID:     l.RequestID,
		SenderID:      l.SenderID,
		Status:        string(l.Status),
		Tags:          tags,
		ForwardChatID: l.Forward.ChatID,
		ForwardMsgID:  l.Forward.MessageID,
		OriginChatID:  l.Origin.ChatID,
		OriginMsgID:   l.Origin.MessageID,
		CreatedAt:     l.CreatedAt,
		ResolvedAt:    l.ResolvedAt,
	}
}

func newSubmissionResponse(r *service.SubmissionResult) *SubmissionResponse {
	if r == nil {
		return nil
	}
	resp := &SubmissionResponse{
		Status:  string(r.Status),
		Trigger: string(r.Trigger),
		Link:    NewLinkResponse(r.Link),
	}
	if r.Err != nil {
		resp.Error = r.Err.Error()
	}
	return resp
}

func newRoutingResponse(routing *domain.RoutingResult, delivered bool, deliveryErr error) *RoutingResponse {
	resp := &RoutingResponse{Delivered: delivered}
	if routing != nil {
		resp.Result = string(routing.Kind)
		resp.Link = NewLinkResponse(routing.Link)
	}
	if deliveryErr != nil {
		resp.DeliveryError = deliveryErr.Error()
	}
	return resp
}

func newActionResponse(r *service.ActionResult) *RoutingResponse {
	if r == nil {
		return nil
	}
	return newRoutingResponse(r.Routing, r.Delivered, r.DeliveryErr)
}

func newReplyResponse(r *service.ReplyResult) *RoutingResponse {
	if r == nil {
		return nil
	}
	return newRoutingResponse(r.Routing, r.Delivered, r.DeliveryErr)
}
