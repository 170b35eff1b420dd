package usecase

import (
	"context"

	"github.com/devricklin/feishu-request-relay/internal/biz/repo"
	"github.com/devricklin/feishu-request-relay/internal/logging"
)

// FilterUsecase handles relevance filtering
type FilterUsecase struct {
	filterRepo repo.FilterRepo
	log        logging.Logger
}

// NewFilterUsecase creates a new filter usecase; filterRepo may be nil
func NewFilterUsecase(filterRepo repo.FilterRepo, log logging.Logger) *FilterUsecase {
	return &FilterUsecase{filterRepo: filterRepo, log: log}
}

// ShouldForward reports whether text should reach staff.
// Without a filter, or when the filter errors, it forwards.
func (uc *FilterUsecase) ShouldForward(ctx context.Context, text string) bool {
	if uc.filterRepo == nil || text == "" {
		return true
	}

	ok, err := uc.filterRepo.IsRequest(ctx, text)
	if err != nil {
		uc.log.WithError(err).Warn("Relevance filter failed, forwarding anyway")
		return true
	}
	return ok
}

// IsFilterEnabled returns whether filter is enabled
func (uc *FilterUsecase) IsFilterEnabled() bool {
	return uc.filterRepo != nil
}
