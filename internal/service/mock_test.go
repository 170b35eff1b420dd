package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/devricklin/feishu-request-relay/internal/biz/domain"
	"github.com/devricklin/feishu-request-relay/internal/biz/repo"
)

// Mock implementations

type sentMessage struct {
	chatID string
	msg    *repo.OutboundMessage
}

type sentReply struct {
	to   domain.Location
	text string
}

type mockMessageRepo struct {
	mu        sync.Mutex
	sent      []sentMessage
	replies   []sentReply
	reactions []string
	sendErr   error
	replyErr  error
	nextID    int
}

func (m *mockMessageRepo) Send(ctx context.Context, chatID string, msg *repo.OutboundMessage) (domain.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return domain.Location{}, m.sendErr
	}
	m.nextID++
	m.sent = append(m.sent, sentMessage{chatID: chatID, msg: msg})
	return domain.Location{ChatID: chatID, MessageID: fmt.Sprintf("F%d", m.nextID)}, nil
}

func (m *mockMessageRepo) Reply(ctx context.Context, to domain.Location, text string) (domain.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replyErr != nil {
		return domain.Location{}, m.replyErr
	}
	m.replies = append(m.replies, sentReply{to: to, text: text})
	return domain.Location{ChatID: to.ChatID, MessageID: fmt.Sprintf("R%d", len(m.replies))}, nil
}

func (m *mockMessageRepo) AddReaction(ctx context.Context, msgID, reactionType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reactions = append(m.reactions, msgID+":"+reactionType)
	return nil
}

// repliesTo returns the texts replied to a location
func (m *mockMessageRepo) repliesTo(loc domain.Location) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var texts []string
	for _, r := range m.replies {
		if r.to == loc {
			texts = append(texts, r.text)
		}
	}
	return texts
}

type mockLinkRepo struct {
	mu     sync.Mutex
	links  map[domain.Location]*domain.Link
	putErr error
}

func newMockLinkRepo() *mockLinkRepo {
	return &mockLinkRepo{links: make(map[domain.Location]*domain.Link)}
}

func (m *mockLinkRepo) Put(ctx context.Context, nl *repo.NewLink) (*domain.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return nil, m.putErr
	}
	if _, ok := m.links[nl.Forward]; ok {
		return nil, domain.ErrConflict
	}
	link := &domain.Link{
		Forward:   nl.Forward,
		Origin:    nl.Origin,
		SenderID:  nl.SenderID,
		RequestID: nl.RequestID,
		Tags:      nl.Tags,
		Status:    domain.LinkPending,
		CreatedAt: time.Now(),
	}
	m.links[nl.Forward] = link
	cp := *link
	return &cp, nil
}

func (m *mockLinkRepo) GetByForward(ctx context.Context, forward domain.Location) (*domain.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.links[forward]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *link
	return &cp, nil
}

func (m *mockLinkRepo) GetByRequestID(ctx context.Context, requestID string) (*domain.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, link := range m.links {
		if link.RequestID == requestID {
			cp := *link
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockLinkRepo) Resolve(ctx context.Context, forward domain.Location, outcome domain.Outcome) (*domain.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.links[forward]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !link.IsPending() {
		cp := *link
		return &cp, domain.ErrAlreadyResolved
	}
	now := time.Now()
	link.Status = outcome.Status()
	link.ResolvedAt = &now
	cp := *link
	return &cp, nil
}

func (m *mockLinkRepo) ListBySender(ctx context.Context, senderID string, limit int) ([]*domain.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Link
	for _, link := range m.links {
		if link.SenderID == senderID {
			cp := *link
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockLinkRepo) ListByStatus(ctx context.Context, status domain.LinkStatus, limit int) ([]*domain.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Link
	for _, link := range m.links {
		if link.Status == status {
			cp := *link
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockLinkRepo) Close() error { return nil }

type mockFilterRepo struct {
	isRequest bool
}

func (m *mockFilterRepo) IsRequest(ctx context.Context, text string) (bool, error) {
	return m.isRequest, nil
}
