package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/devricklin/feishu-request-relay/internal/biz/domain"
	"github.com/devricklin/feishu-request-relay/internal/biz/repo"
)

// Router routes staff actions back to requesters through the Link Store
type Router struct {
	linkRepo repo.LinkRepo
}

// NewRouter creates a router
func NewRouter(linkRepo repo.LinkRepo) *Router {
	return &Router{linkRepo: linkRepo}
}

// RouteOutcome resolves the link at forward.
// Unknown forward locations are Unrouted; links that were already
// resolved are AlreadyHandled and must not be delivered again.
func (r *Router) RouteOutcome(ctx context.Context, forward domain.Location, outcome domain.Outcome) (*domain.RoutingResult, error) {
	if !outcome.Valid() {
		return nil, fmt.Errorf("invalid outcome %q", outcome)
	}

	link, err := r.linkRepo.Resolve(ctx, forward, outcome)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return &domain.RoutingResult{Kind: domain.Unrouted, Outcome: outcome}, nil
	case errors.Is(err, domain.ErrAlreadyResolved):
		return &domain.RoutingResult{Kind: domain.AlreadyHandled, Link: link, Outcome: outcome}, nil
	case err != nil:
		return nil, fmt.Errorf("failed to resolve link %s: %w", forward, err)
	}

	return &domain.RoutingResult{Kind: domain.Routed, Link: link, Outcome: outcome}, nil
}

// RouteOutcomeByRequest resolves the link with the given request ID
func (r *Router) RouteOutcomeByRequest(ctx context.Context, requestID string, outcome domain.Outcome) (*domain.RoutingResult, error) {
	link, err := r.linkRepo.GetByRequestID(ctx, requestID)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.RoutingResult{Kind: domain.Unrouted, Outcome: outcome}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up request %s: %w", requestID, err)
	}
	return r.RouteOutcome(ctx, link.Forward, outcome)
}

// RouteReply finds the requester behind a forwarded copy without
// changing its status
func (r *Router) RouteReply(ctx context.Context, forward domain.Location) (*domain.RoutingResult, error) {
	link, err := r.linkRepo.GetByForward(ctx, forward)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.RoutingResult{Kind: domain.Unrouted}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up link %s: %w", forward, err)
	}
	return &domain.RoutingResult{Kind: domain.Routed, Link: link}, nil
}
