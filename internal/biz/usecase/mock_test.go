package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/devricklin/feishu-request-relay/internal/biz/domain"
	"github.com/devricklin/feishu-request-relay/internal/biz/repo"
)

// Mock implementations

type mockLinkRepo struct {
	mu      sync.Mutex
	links   map[domain.Location]*domain.Link
	putErr  error
	lastPut *repo.NewLink
}

func newMockLinkRepo() *mockLinkRepo {
	return &mockLinkRepo{links: make(map[domain.Location]*domain.Link)}
}

func (m *mockLinkRepo) Put(ctx context.Context, nl *repo.NewLink) (*domain.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPut = nl
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
	return nil, nil
}

func (m *mockLinkRepo) ListByStatus(ctx context.Context, status domain.LinkStatus, limit int) ([]*domain.Link, error) {
	return nil, nil
}

func (m *mockLinkRepo) Close() error { return nil }

type mockMessageRepo struct {
	mu      sync.Mutex
	sent    []*repo.OutboundMessage
	sendErr error
	nextID  int
}

func (m *mockMessageRepo) Send(ctx context.Context, chatID string, msg *repo.OutboundMessage) (domain.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return domain.Location{}, m.sendErr
	}
	m.nextID++
	m.sent = append(m.sent, msg)
	return domain.Location{ChatID: chatID, MessageID: fmt.Sprintf("F%d", m.nextID)}, nil
}

func (m *mockMessageRepo) Reply(ctx context.Context, to domain.Location, text string) (domain.Location, error) {
	return domain.Location{}, errors.New("not implemented")
}

func (m *mockMessageRepo) AddReaction(ctx context.Context, msgID, reactionType string) error {
	return nil
}

type mockFilterRepo struct {
	isRequest bool
	err       error
	calls     int
}

func (m *mockFilterRepo) IsRequest(ctx context.Context, text string) (bool, error) {
	m.calls++
	return m.isRequest, m.err
}
