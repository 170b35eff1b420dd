package domain

import "time"

// EventKind classifies an inbound event
type EventKind string

const (
	EventText        EventKind = "text"
	EventMedia       EventKind = "media"
	EventPart        EventKind = "part"
	EventStaffAction EventKind = "staff_action"
	EventStaffReply  EventKind = "staff_reply"
)

// RawEvent is an inbound event before normalization.
// Requester events fill Sender/Origin/Text/Media/GroupingKey.
// Staff events address a forwarded copy by Forward or by RequestID.
type RawEvent struct {
	Kind        EventKind  `json:"kind"`
	SenderID    string     `json:"sender_id,omitempty"`
	SenderName  string     `json:"sender_name,omitempty"`
	Origin      Location   `json:"origin"`
	ReceivedAt  time.Time  `json:"received_at"`
	Text        string     `json:"text,omitempty"`
	Media       []MediaRef `json:"media,omitempty"`
	GroupingKey string     `json:"grouping_key,omitempty"`

	Forward   Location `json:"forward"`
	RequestID string   `json:"request_id,omitempty"`
	Outcome   Outcome  `json:"outcome,omitempty"`
}

// IsStaff reports whether the event comes from the staff side
func (e *RawEvent) IsStaff() bool {
	return e.Kind == EventStaffAction || e.Kind == EventStaffReply
}
