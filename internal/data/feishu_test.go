package data

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/devricklin/feishu-request-relay/internal/biz/domain"
	"github.com/devricklin/feishu-request-relay/internal/biz/repo"
	"github.com/devricklin/feishu-request-relay/internal/logging"
)

type mockFeishuAPI struct {
	mu          sync.Mutex
	texts       []string
	posts       [][][]map[string]interface{}
	replies     map[string]string
	reactions   []string
	downloadErr map[string]error
	sendErr     error
}

func (m *mockFeishuAPI) SendText(ctx context.Context, chatID, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return "", m.sendErr
	}
	m.texts = append(m.texts, text)
	return "om_text", nil
}

func (m *mockFeishuAPI) SendRichText(ctx context.Context, chatID, title string, content [][]map[string]interface{}) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return "", m.sendErr
	}
	m.posts = append(m.posts, content)
	return "om_post", nil
}

func (m *mockFeishuAPI) ReplyText(ctx context.Context, messageID, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replies == nil {
		m.replies = make(map[string]string)
	}
	m.replies[messageID] = text
	return "om_reply", nil
}

func (m *mockFeishuAPI) AddReaction(ctx context.Context, messageID, emojiType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reactions = append(m.reactions, messageID+":"+emojiType)
	return nil
}

func (m *mockFeishuAPI) DownloadImage(ctx context.Context, messageID, imageKey string) ([]byte, error) {
	if err := m.downloadErr[imageKey]; err != nil {
		return nil, err
	}
	return []byte(imageKey), nil
}

func (m *mockFeishuAPI) UploadImage(ctx context.Context, data []byte) (string, error) {
	return "bot_" + string(data), nil
}

func TestFeishuRepo_SendText(t *testing.T) {
	api := &mockFeishuAPI{}
	r := NewFeishuRepo(api, logging.Discard())

	loc, err := r.Send(context.Background(), "oc_staff", &repo.OutboundMessage{Title: "t", Text: "hello"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if loc != (domain.Location{ChatID: "oc_staff", MessageID: "om_text"}) {
		t.Errorf("Unexpected location %v", loc)
	}
	if len(api.texts) != 1 || api.texts[0] != "hello" {
		t.Errorf("Expected plain text send, got %v", api.texts)
	}
}

func TestFeishuRepo_SendWithImages(t *testing.T) {
	api := &mockFeishuAPI{downloadErr: map[string]error{"img_bad": errors.New("gone")}}
	r := NewFeishuRepo(api, logging.Discard())

	msg := &repo.OutboundMessage{
		Title: "New request",
		Text:  "line one\nline two",
		Media: []domain.MediaRef{
			{Kind: "image", Key: "img_1", MessageID: "om_1"},
			{Kind: "image", Key: "img_bad", MessageID: "om_2"},
			{Kind: "image", Key: "img_3", MessageID: "om_3"},
		},
	}
	loc, err := r.Send(context.Background(), "oc_staff", msg)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if loc.MessageID != "om_post" {
		t.Errorf("Expected post message ID, got %s", loc.MessageID)
	}

	if len(api.posts) != 1 {
		t.Fatalf("Expected 1 post, got %d", len(api.posts))
	}
	post := api.posts[0]
	if len(post) != 5 {
		t.Fatalf("Expected 2 text lines and 3 attachment lines, got %d", len(post))
	}
	if post[2][0]["image_key"] != "bot_img_1" || post[4][0]["image_key"] != "bot_img_3" {
		t.Errorf("Expected re-uploaded keys in order, got %v / %v", post[2], post[4])
	}
	if post[3][0]["text"] != "[image unavailable]" {
		t.Errorf("Expected placeholder for failed image, got %v", post[3])
	}
}

func TestFeishuRepo_SendError(t *testing.T) {
	api := &mockFeishuAPI{sendErr: errors.New("rate limited")}
	r := NewFeishuRepo(api, logging.Discard())

	if _, err := r.Send(context.Background(), "oc_staff", &repo.OutboundMessage{Text: "x"}); err == nil {
		t.Error("Expected send error to be returned")
	}
}

func TestFeishuRepo_Reply(t *testing.T) {
	api := &mockFeishuAPI{}
	r := NewFeishuRepo(api, logging.Discard())

	loc, err := r.Reply(context.Background(), domain.Location{ChatID: "p2p_u", MessageID: "om_1"}, "found it")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if loc != (domain.Location{ChatID: "p2p_u", MessageID: "om_reply"}) {
		t.Errorf("Unexpected location %v", loc)
	}
	if api.replies["om_1"] != "found it" {
		t.Errorf("Expected reply to om_1, got %v", api.replies)
	}
}
