package domain

import (
	"strings"
	"time"
)

// Location addresses one message in one chat
type Location struct {
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id"`
}

// IsZero reports whether the location is unset
func (l Location) IsZero() bool {
	return l.ChatID == "" && l.MessageID == ""
}

func (l Location) String() string {
	return l.ChatID + "/" + l.MessageID
}

// MediaRef identifies one media attachment
type MediaRef struct {
	Kind string `json:"kind"` // image, file, video, audio
	Key  string `json:"key"`  // transport handle used to fetch the media

	// MessageID is the message that carries the media
	MessageID string `json:"message_id,omitempty"`

	// ContentID is the stable identity used for fingerprinting.
	// Falls back to Key when the transport has no content hash.
	ContentID string `json:"content_id,omitempty"`
}

// Identity returns the value that identifies the media content
func (m MediaRef) Identity() string {
	if m.ContentID != "" {
		return m.ContentID
	}
	return m.Key
}

// Submission represents one normalized inbound unit from a requester
type Submission struct {
	SenderID    string
	Origin      Location
	ReceivedAt  time.Time
	Fingerprint string
	GroupingKey string // empty unless part of a multi-part burst
	Text        string
	Media       []MediaRef
	Budget      string // budget token found in the text, if any
	SenderName  string

	// Seq is the arrival sequence assigned by the aggregator
	Seq uint64
}

// HasText checks if the submission carries text
func (s *Submission) HasText() bool {
	return strings.TrimSpace(s.Text) != ""
}

// HasMedia checks if the submission carries media
func (s *Submission) HasMedia() bool {
	return len(s.Media) > 0
}

// IsGrouped checks if the submission belongs to a multi-part burst
func (s *Submission) IsGrouped() bool {
	return s.GroupingKey != ""
}

// LogicalUnit is one or more Submissions forwarded as a single item.
// Parts are ordered by arrival and must not be modified after flush.
type LogicalUnit struct {
	Parts []*Submission
	Tags  []string
}

// First returns the canonical submission of the unit
func (u *LogicalUnit) First() *Submission {
	if len(u.Parts) == 0 {
		return nil
	}
	return u.Parts[0]
}

// SenderID returns the requester of the unit
func (u *LogicalUnit) SenderID() string {
	if first := u.First(); first != nil {
		return first.SenderID
	}
	return ""
}

// Text joins the non-empty texts of all parts
func (u *LogicalUnit) Text() string {
	var parts []string
	for _, p := range u.Parts {
		if p.HasText() {
			parts = append(parts, strings.TrimSpace(p.Text))
		}
	}
	return strings.Join(parts, "\n")
}

// Media returns the media of all parts in arrival order
func (u *LogicalUnit) Media() []MediaRef {
	var media []MediaRef
	for _, p := range u.Parts {
		media = append(media, p.Media...)
	}
	return media
}

// Budget returns the first budget found across the parts
func (u *LogicalUnit) Budget() string {
	for _, p := range u.Parts {
		if p.Budget != "" {
			return p.Budget
		}
	}
	return ""
}
