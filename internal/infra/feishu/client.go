package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
	"github.com/sirupsen/logrus"

	"github.com/devricklin/feishu-request-relay/internal/logging"
)

// Message represents a received Feishu message
type Message struct {
	ChatID     string
	MsgID      string
	MsgType    string            // text, image, post
	ChatType   string            // p2p (private), group
	Content    string            // Text content (extracted from all message types)
	ImageKeys  []string          // Image keys for downloading
	Sender     *Sender           // Message sender info
	MentionMap map[string]string // Map from mention key (@_user_1) to real name
	ParentID   string            // Message this one replies to, if any
	RootID     string
	CreateTime int64 // Message creation time (milliseconds Unix timestamp from Feishu)
}

// IsReply checks if the message quotes another message
func (m *Message) IsReply() bool {
	return m.ParentID != ""
}

// Sender represents the message sender
type Sender struct {
	SenderID   string // open_id
	SenderType string // user, app
	TenantKey  string
}

// MessageHandler is the callback for received messages
type MessageHandler func(msg *Message)

// Client is the Feishu API client
type Client struct {
	appID     string
	appSecret string
	larkCli   *lark.Client
	wsCli     *larkws.Client
	onMessage MessageHandler
	log       *logrus.Entry
}

// NewClient creates a new Feishu client
func NewClient(appID, appSecret string, log logging.Logger) *Client {
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		larkCli:   lark.NewClient(appID, appSecret),
		log:       log.WithField("component", "feishu"),
	}
}

// OnMessage sets the message handler
func (c *Client) OnMessage(handler MessageHandler) {
	c.onMessage = handler
}

// Start connects to Feishu via WebSocket and blocks until ctx is done
func (c *Client) Start(ctx context.Context) error {
	// Must return quickly so the SDK can ACK, otherwise Feishu redelivers
	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(_ context.Context, event *larkim.P2MessageReceiveV1) error {
			go c.handleMessage(event)
			return nil
		})

	c.wsCli = larkws.NewClient(c.appID, c.appSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	c.log.Info("Starting WebSocket connection")
	return c.wsCli.Start(ctx)
}

// handleMessage converts an incoming event and passes it to the handler
func (c *Client) handleMessage(event *larkim.P2MessageReceiveV1) {
	if event.Event == nil || event.Event.Message == nil {
		return
	}
	msg := ParseEvent(event)
	if msg == nil {
		return
	}

	c.log.WithFields(logging.Fields{
		"msg_type":  msg.MsgType,
		"chat_type": msg.ChatType,
		"chat_id":   msg.ChatID,
		"msg_id":    msg.MsgID,
	}).Debug("Received message")

	if c.onMessage != nil {
		c.onMessage(msg)
	}
}

// ParseEvent extracts a Message from a receive event.
// Messages sent by apps (including this bot) and unsupported types yield nil.
func ParseEvent(event *larkim.P2MessageReceiveV1) *Message {
	rawMsg := event.Event.Message

	// Ignore our own messages to prevent loops
	if event.Event.Sender != nil && deref(event.Event.Sender.SenderType) == "app" {
		return nil
	}

	msg := &Message{
		ChatID:     deref(rawMsg.ChatId),
		MsgID:      deref(rawMsg.MessageId),
		MsgType:    deref(rawMsg.MessageType),
		ChatType:   deref(rawMsg.ChatType),
		ParentID:   deref(rawMsg.ParentId),
		RootID:     deref(rawMsg.RootId),
		MentionMap: make(map[string]string),
	}

	if ts, err := strconv.ParseInt(deref(rawMsg.CreateTime), 10, 64); err == nil {
		msg.CreateTime = ts
	}

	if event.Event.Sender != nil {
		msg.Sender = &Sender{
			SenderType: deref(event.Event.Sender.SenderType),
			TenantKey:  deref(event.Event.Sender.TenantKey),
		}
		if event.Event.Sender.SenderId != nil {
			msg.Sender.SenderID = deref(event.Event.Sender.SenderId.OpenId)
		}
	}

	for _, mention := range rawMsg.Mentions {
		if mention.Key != nil && mention.Name != nil {
			msg.MentionMap[*mention.Key] = *mention.Name
		}
	}

	content := deref(rawMsg.Content)
	switch msg.MsgType {
	case "text":
		msg.Content = parseTextContent(content, msg.MentionMap)
	case "image":
		msg.ImageKeys = parseImageContent(content)
	case "post":
		msg.Content, msg.ImageKeys = parsePostContent(content, msg.MentionMap)
	default:
		return nil
	}
	return msg
}

// parseTextContent extracts text from a text message.
// Mention placeholders (@_user_1) are replaced with real names.
func parseTextContent(content string, mentionMap map[string]string) string {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}
	return replaceMentions(parsed.Text, mentionMap)
}

// parseImageContent extracts the image key from an image message
func parseImageContent(content string) []string {
	var parsed struct {
		ImageKey string `json:"image_key"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil
	}
	if parsed.ImageKey == "" {
		return nil
	}
	return []string{parsed.ImageKey}
}

// parsePostContent extracts text and images from a rich text message
func parsePostContent(content string, mentionMap map[string]string) (string, []string) {
	var parsed struct {
		Title   string `json:"title"`
		Content [][]struct {
			Tag      string `json:"tag"`
			Text     string `json:"text,omitempty"`
			ImageKey string `json:"image_key,omitempty"`
			UserID   string `json:"user_id,omitempty"` // for "at" tags
		} `json:"content"`
	}

	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return "", nil
	}

	var textParts []string
	var imageKeys []string

	if parsed.Title != "" {
		textParts = append(textParts, parsed.Title)
	}

	for _, line := range parsed.Content {
		var lineParts []string
		for _, elem := range line {
			switch elem.Tag {
			case "text":
				if elem.Text != "" {
					lineParts = append(lineParts, elem.Text)
				}
			case "at":
				if elem.UserID != "" {
					if name, ok := mentionMap[elem.UserID]; ok {
						lineParts = append(lineParts, "@"+name)
					} else {
						lineParts = append(lineParts, "@"+elem.UserID)
					}
				}
			case "img":
				if elem.ImageKey != "" {
					imageKeys = append(imageKeys, elem.ImageKey)
				}
			}
		}
		if len(lineParts) > 0 {
			textParts = append(textParts, strings.Join(lineParts, ""))
		}
	}

	return replaceMentions(strings.Join(textParts, "\n"), mentionMap), imageKeys
}

// replaceMentions replaces mention placeholders with real names
func replaceMentions(text string, mentionMap map[string]string) string {
	for key, name := range mentionMap {
		text = strings.ReplaceAll(text, key, "@"+name)
	}
	return text
}

// DownloadImage fetches the bytes of an image attached to a message
func (c *Client) DownloadImage(ctx context.Context, messageID, imageKey string) ([]byte, error) {
	req := larkim.NewGetMessageResourceReqBuilder().
		MessageId(messageID).
		FileKey(imageKey).
		Type("image").
		Build()

	resp, err := c.larkCli.Im.MessageResource.Get(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	if !resp.Success() {
		return nil, fmt.Errorf("get image error: %s", resp.Msg)
	}

	data, err := io.ReadAll(resp.File)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return data, nil
}

// UploadImage uploads image bytes and returns a key the bot may send
func (c *Client) UploadImage(ctx context.Context, data []byte) (string, error) {
	req := larkim.NewCreateImageReqBuilder().
		Body(larkim.NewCreateImageReqBodyBuilder().
			ImageType(larkim.ImageTypeMessage).
			Image(bytes.NewReader(data)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Image.Create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("upload image failed: %w", err)
	}
	if !resp.Success() {
		return "", fmt.Errorf("upload image error: %s", resp.Msg)
	}
	return deref(resp.Data.ImageKey), nil
}

// SendText sends a text message to a chat and returns the new message ID
func (c *Client) SendText(ctx context.Context, chatID, text string) (string, error) {
	contentJSON, _ := json.Marshal(map[string]string{"text": text})
	return c.create(ctx, chatID, larkim.MsgTypeText, string(contentJSON))
}

// SendRichText sends a rich text (post) message to a chat
func (c *Client) SendRichText(ctx context.Context, chatID, title string, content [][]map[string]interface{}) (string, error) {
	post := map[string]interface{}{
		"zh_cn": map[string]interface{}{
			"title":   title,
			"content": content,
		},
	}
	contentJSON, _ := json.Marshal(post)
	return c.create(ctx, chatID, larkim.MsgTypePost, string(contentJSON))
}

func (c *Client) create(ctx context.Context, chatID, msgType, content string) (string, error) {
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(msgType).
			Content(content).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("send %s failed: %w", msgType, err)
	}
	if !resp.Success() {
		return "", fmt.Errorf("send %s error: %s", msgType, resp.Msg)
	}

	msgID := ""
	if resp.Data != nil {
		msgID = deref(resp.Data.MessageId)
	}
	c.log.WithFields(logging.Fields{"chat_id": chatID, "msg_id": msgID}).Debug("Message sent")
	return msgID, nil
}

// ReplyText replies to a message in its own chat
func (c *Client) ReplyText(ctx context.Context, messageID, text string) (string, error) {
	contentJSON, _ := json.Marshal(map[string]string{"text": text})

	req := larkim.NewReplyMessageReqBuilder().
		MessageId(messageID).
		Body(larkim.NewReplyMessageReqBodyBuilder().
			MsgType(larkim.MsgTypeText).
			Content(string(contentJSON)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Reply(ctx, req)
	if err != nil {
		return "", fmt.Errorf("reply failed: %w", err)
	}
	if !resp.Success() {
		return "", fmt.Errorf("reply error: %s", resp.Msg)
	}

	if resp.Data == nil {
		return "", nil
	}
	return deref(resp.Data.MessageId), nil
}

// AddReaction adds an emoji reaction to a message
func (c *Client) AddReaction(ctx context.Context, messageID, emojiType string) error {
	req := larkim.NewCreateMessageReactionReqBuilder().
		MessageId(messageID).
		Body(larkim.NewCreateMessageReactionReqBodyBuilder().
			ReactionType(larkim.NewEmojiBuilder().EmojiType(emojiType).Build()).
			Build()).
		Build()

	resp, err := c.larkCli.Im.MessageReaction.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("add reaction failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("add reaction error: %s", resp.Msg)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
