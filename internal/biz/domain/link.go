package domain

import (
	"fmt"
	"strings"
	"time"
)

// LinkStatus is the resolution state of a forwarded request
type LinkStatus string

const (
	LinkPending          LinkStatus = "pending"
	LinkResolvedPositive LinkStatus = "resolved_positive"
	LinkResolvedNegative LinkStatus = "resolved_negative"
)

// IsResolved checks if the status is terminal
func (s LinkStatus) IsResolved() bool {
	return s == LinkResolvedPositive || s == LinkResolvedNegative
}

// ParseLinkStatus parses a status name
func ParseLinkStatus(s string) (LinkStatus, error) {
	switch LinkStatus(strings.ToLower(strings.TrimSpace(s))) {
	case LinkPending:
		return LinkPending, nil
	case LinkResolvedPositive:
		return LinkResolvedPositive, nil
	case LinkResolvedNegative:
		return LinkResolvedNegative, nil
	}
	return "", fmt.Errorf("unknown link status %q", s)
}

// Outcome is a staff decision on a forwarded request
type Outcome string

const (
	OutcomePositive Outcome = "positive"
	OutcomeNegative Outcome = "negative"
)

// Status returns the terminal link status for the outcome
func (o Outcome) Status() LinkStatus {
	if o == OutcomePositive {
		return LinkResolvedPositive
	}
	return LinkResolvedNegative
}

// Valid checks if the outcome is known
func (o Outcome) Valid() bool {
	return o == OutcomePositive || o == OutcomeNegative
}

// ParseOutcome accepts positive/negative and the found/notfound aliases
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive", "found", "trovato":
		return OutcomePositive, nil
	case "negative", "notfound", "not_found", "nontrovato":
		return OutcomeNegative, nil
	}
	return "", fmt.Errorf("unknown outcome %q", s)
}

// Link ties a forwarded copy back to the requester that sent the original
type Link struct {
	Forward    Location
	Origin     Location
	SenderID   string
	RequestID  string
	Tags       []string
	Status     LinkStatus
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// IsPending checks if the link still awaits a staff decision
func (l *Link) IsPending() bool {
	return l.Status == LinkPending
}

// RoutingKind classifies the result of routing a staff action
type RoutingKind string

const (
	Routed         RoutingKind = "routed"
	AlreadyHandled RoutingKind = "already_handled"
	Unrouted       RoutingKind = "unrouted"
)

// RoutingResult is the typed outcome of routing a staff action
type RoutingResult struct {
	Kind    RoutingKind
	Link    *Link // nil when Unrouted
	Outcome Outcome
}

// Origin returns the requester's original location, zero when unrouted
func (r *RoutingResult) Origin() Location {
	if r.Link == nil {
		return Location{}
	}
	return r.Link.Origin
}

// SenderID returns the requester, empty when unrouted
func (r *RoutingResult) SenderID() string {
	if r.Link == nil {
		return ""
	}
	return r.Link.SenderID
}
