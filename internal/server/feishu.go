package server

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/devricklin/feishu-request-relay/internal/biz/domain"
	"github.com/devricklin/feishu-request-relay/internal/biz/usecase"
	"github.com/devricklin/feishu-request-relay/internal/infra/feishu"
	"github.com/devricklin/feishu-request-relay/internal/logging"
	"github.com/devricklin/feishu-request-relay/internal/service"
)

const (
	// ImageGroupingKey groups consecutive image messages from one sender.
	// Text sent while that group is open joins it as a caption.
	ImageGroupingKey = "images"

	// seenTTL is how long a message ID is remembered against redelivery
	seenTTL = 5 * time.Minute

	// handleTimeout bounds the processing of one inbound message
	handleTimeout = time.Minute
)

// EventHandler consumes classified relay events
type EventHandler interface {
	HandleEvent(ctx context.Context, ev *domain.RawEvent) (*service.EventResult, error)
}

// FeishuServer turns Feishu messages into relay events
type FeishuServer struct {
	feishuClient *feishu.Client
	handler      EventHandler
	staffChatID  string
	log          *logrus.Entry

	// Redelivered messages are dropped by ID
	seenMsgsMu sync.Mutex
	seenMsgs   map[string]time.Time // msgID -> timestamp
	now        func() time.Time

	// Dispatch stops before the link store is closed
	stateMu  sync.Mutex
	stopped  bool
	inflight sync.WaitGroup
}

// NewFeishuServer creates a new Feishu server
func NewFeishuServer(feishuClient *feishu.Client, handler EventHandler, staffChatID string, log logging.Logger) *FeishuServer {
	return &FeishuServer{
		feishuClient: feishuClient,
		handler:      handler,
		staffChatID:  staffChatID,
		log:          log.WithField("component", "feishu_server"),
		seenMsgs:     make(map[string]time.Time),
		now:          time.Now,
	}
}

// Start registers the message handler and blocks on the Feishu connection
func (s *FeishuServer) Start(ctx context.Context) error {
	s.feishuClient.OnMessage(s.handleMessage)
	return s.feishuClient.Start(ctx)
}

// Stop makes the server drop new messages and waits for the ones being
// handled. The WebSocket connection itself stays open until exit.
func (s *FeishuServer) Stop() {
	s.stateMu.Lock()
	s.stopped = true
	s.stateMu.Unlock()

	s.inflight.Wait()
}

// begin registers an in-flight message, or reports false once stopped
func (s *FeishuServer) begin() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.stopped {
		return false
	}
	s.inflight.Add(1)
	return true
}

// handleMessage handles Feishu messages
func (s *FeishuServer) handleMessage(msg *feishu.Message) {
	logger := s.log.WithFields(logging.Fields{
		"chat_id":  msg.ChatID,
		"msg_id":   msg.MsgID,
		"msg_type": msg.MsgType,
	})

	if !s.begin() {
		logger.Debug("Server stopped, message dropped")
		return
	}
	defer s.inflight.Done()

	if !s.markMessageSeen(msg.MsgID) {
		logger.Debug("Redelivered message ignored")
		return
	}

	ev := s.Classify(msg)
	if ev == nil {
		logger.Debug("Message not relevant to the relay")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	res, err := s.handler.HandleEvent(ctx, ev)
	if err != nil {
		logger.WithError(err).WithField("kind", string(ev.Kind)).Error("Failed to handle event")
		return
	}
	if res != nil && res.Submission != nil {
		logger.WithField("status", string(res.Submission.Status)).Debug("Submission handled")
	}
}

// Classify maps a Feishu message to a relay event, or nil when the
// message is not for the relay. Private chats carry requester submissions.
// The staff chat carries outcome commands and replies to forwarded copies.
func (s *FeishuServer) Classify(msg *feishu.Message) *domain.RawEvent {
	if msg == nil || msg.Sender == nil {
		return nil
	}
	origin := domain.Location{ChatID: msg.ChatID, MessageID: msg.MsgID}

	if s.staffChatID != "" && msg.ChatID == s.staffChatID {
		return s.classifyStaff(msg, origin)
	}
	if msg.ChatType != "p2p" {
		return nil
	}

	ev := &domain.RawEvent{
		Kind:     domain.EventText,
		SenderID: msg.Sender.SenderID,
		Origin:   origin,
		Text:     msg.Content,
	}
	if msg.CreateTime > 0 {
		ev.ReceivedAt = time.UnixMilli(msg.CreateTime)
	}
	for _, key := range msg.ImageKeys {
		ev.Media = append(ev.Media, domain.MediaRef{Kind: "image", Key: key, MessageID: msg.MsgID})
	}

	switch {
	case msg.MsgType == "image":
		// Feishu sends each picture of a burst as its own message
		ev.Kind = domain.EventPart
		ev.GroupingKey = ImageGroupingKey
	case len(ev.Media) > 0:
		ev.Kind = domain.EventMedia
	}
	return ev
}

func (s *FeishuServer) classifyStaff(msg *feishu.Message, origin domain.Location) *domain.RawEvent {
	outcome, arg, isCommand := parseCommand(msg.Content)

	if isCommand {
		ev := &domain.RawEvent{
			Kind:     domain.EventStaffAction,
			SenderID: msg.Sender.SenderID,
			Origin:   origin,
			Outcome:  outcome,
		}
		// A reply targets the copy it answers; trailing words are only a
		// request ID when they have the request ID shape
		switch {
		case msg.IsReply() && !usecase.IsRequestID(arg):
			ev.Forward = domain.Location{ChatID: msg.ChatID, MessageID: msg.ParentID}
		case arg != "":
			ev.RequestID = arg
		default:
			return nil
		}
		return ev
	}

	if !msg.IsReply() || strings.TrimSpace(msg.Content) == "" {
		return nil
	}
	return &domain.RawEvent{
		Kind:     domain.EventStaffReply,
		SenderID: msg.Sender.SenderID,
		Origin:   origin,
		Forward:  domain.Location{ChatID: msg.ChatID, MessageID: msg.ParentID},
		Text:     strings.TrimSpace(msg.Content),
	}
}

// parseCommand finds a /found or /notfound command anywhere in the text,
// so a leading @mention of the bot does not hide it. The word after the
// command is returned as its argument.
func parseCommand(content string) (domain.Outcome, string, bool) {
	fields := strings.Fields(content)
	for i, f := range fields {
		if !strings.HasPrefix(f, "/") {
			continue
		}
		outcome, err := domain.ParseOutcome(strings.TrimPrefix(f, "/"))
		if err != nil {
			continue
		}
		arg := ""
		if i+1 < len(fields) {
			arg = fields[i+1]
		}
		return outcome, arg, true
	}
	return "", "", false
}

// markMessageSeen records msgID and reports whether it was new
func (s *FeishuServer) markMessageSeen(msgID string) bool {
	s.seenMsgsMu.Lock()
	defer s.seenMsgsMu.Unlock()

	now := s.now()
	if ts, ok := s.seenMsgs[msgID]; ok && now.Sub(ts) < seenTTL {
		return false
	}
	s.seenMsgs[msgID] = now

	cutoff := now.Add(-seenTTL)
	for id, ts := range s.seenMsgs {
		if ts.Before(cutoff) {
			delete(s.seenMsgs, id)
		}
	}
	return true
}
