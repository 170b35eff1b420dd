package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/devricklin/feishu-request-relay/internal/biz/domain"
)

// DefaultTextLimit bounds how much text contributes to a fingerprint
const DefaultTextLimit = 4096

var budgetRe = regexp.MustCompile(`(?i)(€\s*\d+[\d.,]*|\d+[\d.,]*\s*€|\b\d{1,6}[\d.,]*\b)`)

// Normalizer converts raw inbound events into Submissions
type Normalizer struct {
	textLimit int
}

// NewNormalizer creates a normalizer; textLimit <= 0 uses DefaultTextLimit
func NewNormalizer(textLimit int) *Normalizer {
	if textLimit <= 0 {
		textLimit = DefaultTextLimit
	}
	return &Normalizer{textLimit: textLimit}
}

// Normalize returns nil for events with neither text nor media.
// now is used when the event carries no receive time.
func (n *Normalizer) Normalize(ev *domain.RawEvent, now time.Time) *domain.Submission {
	if ev == nil {
		return nil
	}

	text := strings.TrimSpace(ev.Text)
	var media []domain.MediaRef
	for _, m := range ev.Media {
		if m.Key == "" {
			continue
		}
		if m.MessageID == "" {
			m.MessageID = ev.Origin.MessageID
		}
		media = append(media, m)
	}

	if text == "" && len(media) == 0 {
		return nil
	}

	receivedAt := ev.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = now
	}

	groupingKey := ""
	if ev.Kind == domain.EventPart {
		groupingKey = ev.GroupingKey
	}

	return &domain.Submission{
		SenderID:    ev.SenderID,
		SenderName:  ev.SenderName,
		Origin:      ev.Origin,
		ReceivedAt:  receivedAt,
		Fingerprint: n.Fingerprint(text, media),
		GroupingKey: groupingKey,
		Text:        text,
		Media:       media,
		Budget:      ExtractBudget(text),
	}
}

// Fingerprint hashes the normalized, truncated text and the media identities
func (n *Normalizer) Fingerprint(text string, media []domain.MediaRef) string {
	h := sha256.New()
	h.Write([]byte(truncateUTF8(normalizeText(text), n.textLimit)))
	h.Write([]byte{0})
	for _, m := range media {
		h.Write([]byte(m.Identity()))
		h.Write([]byte{0x1f})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ExtractBudget returns the first budget-looking token in text, or ""
func ExtractBudget(text string) string {
	if text == "" {
		return ""
	}
	return strings.TrimSpace(budgetRe.FindString(text))
}

// normalizeText lowercases and collapses whitespace
func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// truncateUTF8 cuts s to at most limit bytes without splitting a rune
func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
