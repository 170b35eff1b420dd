package usecase

import "strings"

// DefaultMaxTags caps the tags attached to one request
const DefaultMaxTags = 5

// KeywordTag is one row of the keyword→tag table
type KeywordTag struct {
	Keyword string
	Tag     string
}

// TagInferencer derives category tags from free text
type TagInferencer struct {
	table   []KeywordTag
	maxTags int
}

// NewTagInferencer creates an inferencer over an ordered table
func NewTagInferencer(table []KeywordTag, maxTags int) *TagInferencer {
	if maxTags <= 0 {
		maxTags = DefaultMaxTags
	}
	rows := make([]KeywordTag, 0, len(table))
	for _, row := range table {
		kw := strings.ToLower(strings.TrimSpace(row.Keyword))
		if kw == "" || row.Tag == "" {
			continue
		}
		rows = append(rows, KeywordTag{Keyword: kw, Tag: row.Tag})
	}
	return &TagInferencer{table: rows, maxTags: maxTags}
}

// Infer matches keywords case-insensitively as substrings.
// Tags come out in table order, without duplicates, at most maxTags.
func (t *TagInferencer) Infer(text string) []string {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)

	var tags []string
	seen := make(map[string]bool)
	for _, row := range t.table {
		if len(tags) >= t.maxTags {
			break
		}
		if seen[row.Tag] {
			continue
		}
		if strings.Contains(lower, row.Keyword) {
			seen[row.Tag] = true
			tags = append(tags, row.Tag)
		}
	}
	return tags
}
