package data

import (
	"context"

	"github.com/devricklin/feishu-request-relay/internal/biz/repo"
)

// requestClassifier is implemented by the OpenAI-compatible client
type requestClassifier interface {
	IsRequest(ctx context.Context, message string) (bool, error)
}

// filterRepo implements the relevance filter repository
type filterRepo struct {
	client requestClassifier
}

// NewFilterRepo creates a filter repository; a nil client disables filtering
func NewFilterRepo(client requestClassifier) repo.FilterRepo {
	if client == nil {
		return nil
	}
	return &filterRepo{client: client}
}

// IsRequest determines whether the text is a request worth forwarding
func (r *filterRepo) IsRequest(ctx context.Context, text string) (bool, error) {
	return r.client.IsRequest(ctx, text)
}
