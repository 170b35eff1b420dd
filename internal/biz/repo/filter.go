package repo

import "context"

// FilterRepo is the relevance filtering interface
type FilterRepo interface {
	// IsRequest determines whether the text is a genuine request worth forwarding
	IsRequest(ctx context.Context, text string) (bool, error)
}
