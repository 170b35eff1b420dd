package data

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/devricklin/feishu-request-relay/internal/biz/domain"
	"github.com/devricklin/feishu-request-relay/internal/biz/repo"
	"github.com/devricklin/feishu-request-relay/internal/logging"
)

// feishuAPI is the part of the Feishu client the repository needs
type feishuAPI interface {
	SendText(ctx context.Context, chatID, text string) (string, error)
	SendRichText(ctx context.Context, chatID, title string, content [][]map[string]interface{}) (string, error)
	ReplyText(ctx context.Context, messageID, text string) (string, error)
	AddReaction(ctx context.Context, messageID, emojiType string) error
	DownloadImage(ctx context.Context, messageID, imageKey string) ([]byte, error)
	UploadImage(ctx context.Context, data []byte) (string, error)
}

// maxConcurrentUploads bounds image re-uploads per message
const maxConcurrentUploads = 4

// feishuRepo implements the Feishu message repository
type feishuRepo struct {
	client feishuAPI
	log    logging.Logger
}

// NewFeishuRepo creates a new Feishu repository
func NewFeishuRepo(client feishuAPI, log logging.Logger) repo.MessageRepo {
	return &feishuRepo{client: client, log: log}
}

// Send posts a message. Plain text goes out as a text message; messages
// with media are sent as a post with the images re-uploaded by the bot.
func (r *feishuRepo) Send(ctx context.Context, chatID string, msg *repo.OutboundMessage) (domain.Location, error) {
	var msgID string
	var err error
	if len(msg.Media) == 0 {
		msgID, err = r.client.SendText(ctx, chatID, msg.Text)
	} else {
		msgID, err = r.client.SendRichText(ctx, chatID, msg.Title, r.buildPost(ctx, msg))
	}
	if err != nil {
		return domain.Location{}, err
	}
	return domain.Location{ChatID: chatID, MessageID: msgID}, nil
}

// Reply posts a text reply to an existing message
func (r *feishuRepo) Reply(ctx context.Context, to domain.Location, text string) (domain.Location, error) {
	msgID, err := r.client.ReplyText(ctx, to.MessageID, text)
	if err != nil {
		return domain.Location{}, err
	}
	return domain.Location{ChatID: to.ChatID, MessageID: msgID}, nil
}

// AddReaction adds an emoji reaction
func (r *feishuRepo) AddReaction(ctx context.Context, msgID, reactionType string) error {
	return r.client.AddReaction(ctx, msgID, reactionType)
}

// buildPost renders text lines followed by one line per attachment
func (r *feishuRepo) buildPost(ctx context.Context, msg *repo.OutboundMessage) [][]map[string]interface{} {
	var content [][]map[string]interface{}
	for _, line := range strings.Split(msg.Text, "\n") {
		content = append(content, []map[string]interface{}{
			{"tag": "text", "text": line},
		})
	}

	keys := r.reuploadImages(ctx, msg.Media)
	for i, m := range msg.Media {
		if keys[i] != "" {
			content = append(content, []map[string]interface{}{
				{"tag": "img", "image_key": keys[i]},
			})
			continue
		}
		content = append(content, []map[string]interface{}{
			{"tag": "text", "text": "[" + m.Kind + " unavailable]"},
		})
	}
	return content
}

// reuploadImages copies inbound images so the bot can post them.
// Failed copies leave an empty key; the forward still goes out.
func (r *feishuRepo) reuploadImages(ctx context.Context, media []domain.MediaRef) []string {
	keys := make([]string, len(media))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentUploads)
	for i, m := range media {
		if m.Kind != "image" || m.MessageID == "" {
			continue
		}
		g.Go(func() error {
			data, err := r.client.DownloadImage(gctx, m.MessageID, m.Key)
			if err != nil {
				r.log.WithError(err).WithField("image_key", m.Key).Warn("Failed to download image")
				return nil
			}
			key, err := r.client.UploadImage(gctx, data)
			if err != nil {
				r.log.WithError(err).WithField("image_key", m.Key).Warn("Failed to upload image")
				return nil
			}
			keys[i] = key
			return nil
		})
	}
	_ = g.Wait()
	return keys
}
