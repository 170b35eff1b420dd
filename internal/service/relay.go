package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/devricklin/feishu-request-relay/internal/biz/domain"
	"github.com/devricklin/feishu-request-relay/internal/biz/repo"
	"github.com/devricklin/feishu-request-relay/internal/biz/usecase"
	"github.com/devricklin/feishu-request-relay/internal/clock"
	"github.com/devricklin/feishu-request-relay/internal/logging"
)

const (
	reactionResolved  = "DONE"
	reactionDelivered = "OK"

	// flushTimeout bounds the forward of a timer-driven album flush
	flushTimeout = 30 * time.Second
)

// SubmissionStatus is the outcome of one inbound submission
type SubmissionStatus string

const (
	SubmissionIgnored       SubmissionStatus = "ignored"
	SubmissionRateLimited   SubmissionStatus = "rate_limited"
	SubmissionDuplicate     SubmissionStatus = "duplicate"
	SubmissionBuffered      SubmissionStatus = "buffered"
	SubmissionFiltered      SubmissionStatus = "filtered"
	SubmissionMissingBudget SubmissionStatus = "missing_budget"
	SubmissionForwarded     SubmissionStatus = "forwarded"
	SubmissionFailed        SubmissionStatus = "failed"
)

// SubmissionResult describes what happened to a submission
type SubmissionResult struct {
	Status  SubmissionStatus
	Trigger usecase.FlushTrigger // set when a unit was processed
	Link    *domain.Link         // set when forwarded
	Err     error                // forward failure, when Failed
}

// ActionResult describes a routed staff action
type ActionResult struct {
	Routing     *domain.RoutingResult
	Delivered   bool
	DeliveryErr error
}

// ReplyResult describes a relayed staff reply
type ReplyResult struct {
	Routing     *domain.RoutingResult
	Delivered   bool
	DeliveryErr error
}

// EventResult is the result of HandleEvent; exactly one field is set
type EventResult struct {
	Submission *SubmissionResult `json:"submission,omitempty"`
	Action     *ActionResult     `json:"action,omitempty"`
	Reply      *ReplyResult      `json:"reply,omitempty"`
}

// RelayOptions configures the relay pipeline
type RelayOptions struct {
	StaffChatID     string
	RequireBudget   bool
	TextLimit       int
	MinInterval     time.Duration
	DedupWindow     time.Duration
	DedupMaxEntries int
	Album           usecase.AlbumConfig
	Tags            []usecase.KeywordTag
	MaxTags         int

	// CaptionGroupingKey, when set, makes a text-only submission join the
	// sender's open album under this key as its caption
	CaptionGroupingKey string
}

// RelayService runs inbound submissions through the relay pipeline and
// routes staff actions back to requesters
type RelayService struct {
	normalizer *usecase.Normalizer
	limiter    *usecase.RateLimiter
	dedup      *usecase.DedupCache
	albums     *usecase.AlbumAggregator
	tagger     *usecase.TagInferencer
	filterUC   *usecase.FilterUsecase
	forwarder  *usecase.Forwarder
	router     *usecase.Router

	messageRepo repo.MessageRepo
	linkRepo    repo.LinkRepo

	clock   clock.Clock
	metrics *Metrics
	log     logging.Logger

	staffChatID   string
	requireBudget bool
	captionKey    string
}

// NewRelayService creates the relay service. filterUC and metrics may be nil.
func NewRelayService(
	opts RelayOptions,
	messageRepo repo.MessageRepo,
	linkRepo repo.LinkRepo,
	filterUC *usecase.FilterUsecase,
	clk clock.Clock,
	metrics *Metrics,
	log logging.Logger,
) *RelayService {
	if clk == nil {
		clk = clock.System()
	}
	if filterUC == nil {
		filterUC = usecase.NewFilterUsecase(nil, log)
	}

	s := &RelayService{
		normalizer:    usecase.NewNormalizer(opts.TextLimit),
		limiter:       usecase.NewRateLimiter(opts.MinInterval),
		dedup:         usecase.NewDedupCache(opts.DedupWindow, opts.DedupMaxEntries),
		albums:        usecase.NewAlbumAggregator(clk, opts.Album),
		tagger:        usecase.NewTagInferencer(opts.Tags, opts.MaxTags),
		filterUC:      filterUC,
		forwarder:     usecase.NewForwarder(messageRepo, linkRepo),
		router:        usecase.NewRouter(linkRepo),
		messageRepo:   messageRepo,
		linkRepo:      linkRepo,
		clock:         clk,
		metrics:       metrics,
		log:           log,
		staffChatID:   opts.StaffChatID,
		requireBudget: opts.RequireBudget,
		captionKey:    opts.CaptionGroupingKey,
	}
	s.albums.OnFlush(s.onAlbumFlush)
	return s
}

// HandleEvent dispatches an inbound event by kind
func (s *RelayService) HandleEvent(ctx context.Context, ev *domain.RawEvent) (*EventResult, error) {
	switch ev.Kind {
	case domain.EventText, domain.EventMedia, domain.EventPart:
		res, err := s.HandleSubmission(ctx, ev)
		return &EventResult{Submission: res}, err

	case domain.EventStaffAction:
		var res *ActionResult
		var err error
		if ev.Forward.IsZero() {
			res, err = s.HandleStaffActionByRequest(ctx, ev.RequestID, ev.Outcome, ev.Origin)
		} else {
			res, err = s.HandleStaffAction(ctx, ev.Forward, ev.Outcome, ev.Origin)
		}
		return &EventResult{Action: res}, err

	case domain.EventStaffReply:
		var res *ReplyResult
		var err error
		if ev.Forward.IsZero() {
			res, err = s.HandleStaffReplyByRequest(ctx, ev.RequestID, ev.Text, ev.Origin)
		} else {
			res, err = s.HandleStaffReply(ctx, ev.Forward, ev.Text, ev.Origin)
		}
		return &EventResult{Reply: res}, err
	}
	return nil, fmt.Errorf("unknown event kind %q", ev.Kind)
}

// HandleSubmission gates a requester event, aggregates it and forwards the
// resulting unit. Parts of an open album are buffered and forwarded later
// by the album timer.
func (s *RelayService) HandleSubmission(ctx context.Context, ev *domain.RawEvent) (*SubmissionResult, error) {
	now := s.clock.Now()
	sub := s.normalizer.Normalize(ev, now)
	if sub == nil {
		s.metrics.IncSubmission(string(SubmissionIgnored))
		return &SubmissionResult{Status: SubmissionIgnored}, nil
	}

	logger := s.log.WithFields(logging.Fields{
		"sender_id": sub.SenderID,
		"msg_id":    sub.Origin.MessageID,
	})

	if s.isCaption(sub) {
		sub.GroupingKey = s.captionKey
		logger.Debug("Text joins open album as caption")
	}

	// Later parts of an open album are not rate limited
	albumOpen := sub.IsGrouped() && s.albums.Pending(sub.SenderID, sub.GroupingKey) > 0
	if !albumOpen && !s.limiter.Allow(sub.SenderID, now) {
		logger.Info("Submission rate limited")
		s.metrics.IncSubmission(string(SubmissionRateLimited))
		s.notify(ctx, "slow_down", sub.Origin, textSlowDown)
		return &SubmissionResult{Status: SubmissionRateLimited}, nil
	}

	if s.dedup.IsDuplicate(sub.SenderID, sub.Fingerprint, now) {
		logger.Debug("Duplicate submission dropped")
		s.metrics.IncSubmission(string(SubmissionDuplicate))
		return &SubmissionResult{Status: SubmissionDuplicate}, nil
	}

	unit, trigger, ready := s.albums.Ingest(sub)
	if !ready {
		logger.WithField("grouping_key", sub.GroupingKey).Debug("Album part buffered")
		s.metrics.IncSubmission(string(SubmissionBuffered))
		return &SubmissionResult{Status: SubmissionBuffered}, nil
	}

	s.metrics.IncSubmission("accepted")
	return s.processUnit(ctx, unit, trigger), nil
}

// isCaption reports whether sub is text sent while the sender's album is open
func (s *RelayService) isCaption(sub *domain.Submission) bool {
	if s.captionKey == "" || sub.IsGrouped() || sub.HasMedia() || !sub.HasText() {
		return false
	}
	return s.albums.Pending(sub.SenderID, s.captionKey) > 0
}

// onAlbumFlush runs on the album timer
func (s *RelayService) onAlbumFlush(unit *domain.LogicalUnit, trigger usecase.FlushTrigger) {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	s.processUnit(ctx, unit, trigger)
}

// processUnit tags, filters and forwards one logical unit, then tells the
// requester the result exactly once
func (s *RelayService) processUnit(ctx context.Context, unit *domain.LogicalUnit, trigger usecase.FlushTrigger) *SubmissionResult {
	first := unit.First()
	logger := s.log.WithFields(logging.Fields{
		"sender_id": first.SenderID,
		"parts":     len(unit.Parts),
		"trigger":   string(trigger),
	})
	if trigger != usecase.FlushSingle {
		s.metrics.ObserveAlbum(string(trigger), len(unit.Parts))
	}

	text := unit.Text()
	unit.Tags = s.tagger.Infer(text)

	if !s.filterUC.ShouldForward(ctx, text) {
		logger.Info("Unit rejected by relevance filter")
		s.metrics.IncForward("filtered")
		return &SubmissionResult{Status: SubmissionFiltered, Trigger: trigger}
	}

	if s.requireBudget && unit.Budget() == "" {
		logger.Info("Unit has no budget")
		s.metrics.IncForward("missing_budget")
		s.notify(ctx, "budget", first.Origin, textBudgetMissing)
		return &SubmissionResult{Status: SubmissionMissingBudget, Trigger: trigger}
	}

	link, err := s.forwarder.Forward(ctx, unit, s.staffChatID)
	if err != nil {
		var persistErr *domain.LinkPersistError
		if errors.As(err, &persistErr) {
			logger.WithError(err).WithField("forward", persistErr.Forward.String()).
				Error("Forwarded copy has no link, staff actions on it will be unrouted")
			s.metrics.IncForward("link_failed")
		} else {
			logger.WithError(err).Warn("Failed to forward unit")
			s.metrics.IncForward("send_failed")
		}
		s.notify(ctx, "apology", first.Origin, textApology)
		return &SubmissionResult{Status: SubmissionFailed, Trigger: trigger, Err: err}
	}

	logger.WithFields(logging.Fields{
		"request_id": link.RequestID,
		"forward":    link.Forward.String(),
		"tags":       link.Tags,
	}).Info("Unit forwarded")
	s.metrics.IncForward("ok")
	s.notify(ctx, "confirmation", first.Origin, textConfirmation(link.RequestID))

	return &SubmissionResult{Status: SubmissionForwarded, Trigger: trigger, Link: link}
}

// HandleStaffAction resolves the link behind a forwarded copy and delivers
// the outcome to the requester. ackTo, when set, receives a short
// acknowledgment for staff.
func (s *RelayService) HandleStaffAction(ctx context.Context, forward domain.Location, outcome domain.Outcome, ackTo domain.Location) (*ActionResult, error) {
	res, err := s.router.RouteOutcome(ctx, forward, outcome)
	if err != nil {
		return nil, err
	}
	return s.finishAction(ctx, res, ackTo), nil
}

// HandleStaffActionByRequest is HandleStaffAction addressed by request ID
func (s *RelayService) HandleStaffActionByRequest(ctx context.Context, requestID string, outcome domain.Outcome, ackTo domain.Location) (*ActionResult, error) {
	res, err := s.router.RouteOutcomeByRequest(ctx, requestID, outcome)
	if err != nil {
		return nil, err
	}
	return s.finishAction(ctx, res, ackTo), nil
}

func (s *RelayService) finishAction(ctx context.Context, res *domain.RoutingResult, ackTo domain.Location) *ActionResult {
	result := &ActionResult{Routing: res}
	s.metrics.IncRouting("action", string(res.Kind))

	switch res.Kind {
	case domain.Unrouted:
		s.log.WithField("outcome", string(res.Outcome)).Info("Staff action for unknown request")
		s.ack(ctx, ackTo, textUnknown)

	case domain.AlreadyHandled:
		s.log.WithField("request_id", res.Link.RequestID).Info("Staff action on already handled request")
		s.ack(ctx, ackTo, textAckAlreadyHandled(res.Link.RequestID, string(res.Link.Status)))

	case domain.Routed:
		link := res.Link
		text := textOutcome(res.Outcome == domain.OutcomePositive, link.RequestID)
		if _, err := s.messageRepo.Reply(ctx, link.Origin, text); err != nil {
			// The link stays resolved; delivery is not retried here
			result.DeliveryErr = fmt.Errorf("%w: %w", domain.ErrDelivery, err)
			s.log.WithError(err).WithField("request_id", link.RequestID).Warn("Failed to deliver outcome")
			s.metrics.IncDelivery("outcome", "failed")
			s.ack(ctx, ackTo, textAckNotDelivered(link.RequestID, err))
		} else {
			result.Delivered = true
			s.metrics.IncDelivery("outcome", "ok")
			s.ack(ctx, ackTo, textAckNotified(link.RequestID))
		}
		if err := s.messageRepo.AddReaction(ctx, link.Forward.MessageID, reactionResolved); err != nil {
			s.log.WithError(err).Debug("Failed to mark forwarded copy")
		}
		s.log.WithFields(logging.Fields{
			"request_id": link.RequestID,
			"status":     string(link.Status),
			"delivered":  result.Delivered,
		}).Info("Staff action routed")
	}
	return result
}

// HandleStaffReply relays staff text to the requester behind a forwarded
// copy. The link status is not changed. Replies to messages that are not
// forwarded copies are ignored.
func (s *RelayService) HandleStaffReply(ctx context.Context, forward domain.Location, content string, ackTo domain.Location) (*ReplyResult, error) {
	res, err := s.router.RouteReply(ctx, forward)
	if err != nil {
		return nil, err
	}
	s.metrics.IncRouting("reply", string(res.Kind))

	result := &ReplyResult{Routing: res}
	if res.Kind != domain.Routed {
		s.log.WithField("forward", forward.String()).Debug("Staff reply is not on a forwarded copy")
		return result, nil
	}

	link := res.Link
	if _, err := s.messageRepo.Reply(ctx, link.Origin, textStaffMessage(link.RequestID, content)); err != nil {
		result.DeliveryErr = fmt.Errorf("%w: %w", domain.ErrDelivery, err)
		s.log.WithError(err).WithField("request_id", link.RequestID).Warn("Failed to relay staff reply")
		s.metrics.IncDelivery("reply", "failed")
		s.ack(ctx, ackTo, textAckReplyFailed(link.RequestID, err))
		return result, nil
	}

	result.Delivered = true
	s.metrics.IncDelivery("reply", "ok")
	if !ackTo.IsZero() {
		if err := s.messageRepo.AddReaction(ctx, ackTo.MessageID, reactionDelivered); err != nil {
			s.log.WithError(err).Debug("Failed to mark staff reply")
		}
	}
	return result, nil
}

// HandleStaffReplyByRequest is HandleStaffReply addressed by request ID
func (s *RelayService) HandleStaffReplyByRequest(ctx context.Context, requestID, content string, ackTo domain.Location) (*ReplyResult, error) {
	link, err := s.linkRepo.GetByRequestID(ctx, requestID)
	if errors.Is(err, domain.ErrNotFound) {
		s.metrics.IncRouting("reply", string(domain.Unrouted))
		return &ReplyResult{Routing: &domain.RoutingResult{Kind: domain.Unrouted}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up request %s: %w", requestID, err)
	}
	return s.HandleStaffReply(ctx, link.Forward, content, ackTo)
}

// GetLink returns the link for a request ID
func (s *RelayService) GetLink(ctx context.Context, requestID string) (*domain.Link, error) {
	return s.linkRepo.GetByRequestID(ctx, requestID)
}

// ListLinks lists links by sender, or by status when senderID is empty
func (s *RelayService) ListLinks(ctx context.Context, senderID string, status domain.LinkStatus, limit int) ([]*domain.Link, error) {
	if senderID != "" {
		return s.linkRepo.ListBySender(ctx, senderID, limit)
	}
	if status == "" {
		status = domain.LinkPending
	}
	return s.linkRepo.ListByStatus(ctx, status, limit)
}

// StaffChatID returns the chat that receives forwarded requests
func (s *RelayService) StaffChatID() string {
	return s.staffChatID
}

// Sweep purges idle rate limiter and dedup state
func (s *RelayService) Sweep() (limiter, dedup int) {
	now := s.clock.Now()
	return s.limiter.Sweep(now), s.dedup.Sweep(now)
}

// Close flushes open albums. Call before closing the link store.
func (s *RelayService) Close() {
	s.albums.Close()
}

// notify tells the requester something. Failures are logged only.
func (s *RelayService) notify(ctx context.Context, kind string, origin domain.Location, text string) {
	if _, err := s.messageRepo.Reply(ctx, origin, text); err != nil {
		s.log.WithError(err).WithField("kind", kind).Warn("Failed to notify requester")
		s.metrics.IncDelivery(kind, "failed")
		return
	}
	s.metrics.IncDelivery(kind, "ok")
}

func (s *RelayService) ack(ctx context.Context, to domain.Location, text string) {
	if to.IsZero() {
		return
	}
	if _, err := s.messageRepo.Reply(ctx, to, text); err != nil {
		s.log.WithError(err).Debug("Failed to acknowledge staff")
	}
}
